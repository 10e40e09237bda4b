// Command reprocess sweeps the record store for documents whose extraction
// output is still empty and runs them through the pipeline again, reusing
// their stored classification. Intended as a single-run operator tool; it is
// not serialized against live uploads.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/billflow/billflow/internal/common"
	"github.com/billflow/billflow/internal/llm/ollama"
	"github.com/billflow/billflow/internal/notify"
	"github.com/billflow/billflow/internal/ocr"
	"github.com/billflow/billflow/internal/pipeline"
	"github.com/billflow/billflow/internal/repository"
	"github.com/billflow/billflow/internal/storage"
)

func main() {
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
		DialTimeout:     cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	store, err := storage.NewMinioStore(ctx, storage.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		UseSSL:    cfg.Storage.UseSSL,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to image store", "error", err)
		os.Exit(1)
	}

	extractor := ocr.NewExtractor(ocr.Config{
		Tesseract:   cfg.OCR.Tesseract,
		Lang:        cfg.OCR.Lang,
		TessdataDir: cfg.OCR.TessdataDir,
	}, logger)

	generator := ollama.NewClient(ollama.Config{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	notifier := notify.New(cfg.Notify.DashboardURL, cfg.Notify.Timeout, logger)
	repo := repository.NewDocumentRepository(pool, logger)
	orch := pipeline.NewOrchestrator(logger, store, extractor, generator, repo, notifier)

	stats, err := orch.Reprocess(ctx)
	if err != nil {
		logger.Error("reprocess sweep aborted", "error", err,
			"scanned", stats.Scanned, "succeeded", stats.Succeeded, "failed", stats.Failed)
		os.Exit(1)
	}
	logger.Info("reprocess sweep finished",
		"scanned", stats.Scanned, "succeeded", stats.Succeeded, "failed", stats.Failed)
}
