// Command billexport writes the document ledger to an XLSX workbook.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/billflow/billflow/internal/common"
	"github.com/billflow/billflow/internal/export"
	"github.com/billflow/billflow/internal/repository"
)

func main() {
	out := flag.String("o", "documents.xlsx", "output file path")
	flag.Parse()

	cfg := common.LoadConfig()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

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

	repo := repository.NewDocumentRepository(pool, logger)
	svc := export.NewService(repo, logger)

	data, err := svc.ExportDocumentsXLSX(ctx)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("write output", "path", *out, "error", err)
		os.Exit(1)
	}
	logger.Info("export written", "path", *out, "bytes", len(data))
}
