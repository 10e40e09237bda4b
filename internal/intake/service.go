// Package intake receives uploads, runs the synchronous half of the
// pipeline (store → OCR → classify → insert), and defers the rest to the
// background worker queue.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/billflow/billflow/internal/async"
	"github.com/billflow/billflow/internal/common"
	"github.com/billflow/billflow/internal/entity"
	"github.com/billflow/billflow/internal/pipeline"
	"github.com/billflow/billflow/internal/repository"
	"github.com/billflow/billflow/internal/storage"
)

type Controller struct {
	logger *slog.Logger
	store  storage.ObjectStore
	ocr    pipeline.TextExtractor
	orch   *pipeline.Orchestrator
	repo   repository.DocumentRepository
	queue  async.Queue
}

func NewController(
	logger *slog.Logger,
	store storage.ObjectStore,
	ocr pipeline.TextExtractor,
	orch *pipeline.Orchestrator,
	repo repository.DocumentRepository,
	queue async.Queue,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		logger: logger,
		store:  store,
		ocr:    ocr,
		orch:   orch,
		repo:   repo,
		queue:  queue,
	}
}

// Upload is the synchronous portion of intake. On success the returned
// document is Classified: id, timestamps, storage key and classification
// labels are set, extraction fields are still absent. Exactly one object
// write and at most one scheduled background run per call; every failure
// before scheduling aborts the request and persists nothing further.
func (c *Controller) Upload(ctx context.Context, filename, contentType string, data []byte) (*entity.Document, error) {
	if len(data) == 0 {
		return nil, common.NewAppError("UPLOAD_EMPTY", "empty upload body", common.ErrInvalidInput)
	}
	if filename == "" {
		filename = "upload"
	}

	id := uuid.New()
	createdAt := time.Now().UTC()
	objectKey := fmt.Sprintf("%s/%s", id, filename)
	doc := entity.NewDocument(id, filename, contentType, objectKey, createdAt)

	c.logger.Info("intake.upload.start",
		"document_id", id, "filename", filename, "content_type", contentType, "bytes", len(data))

	if err := c.store.Put(ctx, objectKey, data, contentType); err != nil {
		return nil, common.NewAppError("UPLOAD_STORE", "image store write failed", err)
	}

	ocrText, err := c.ocr.Extract(ctx, data)
	if err != nil {
		return nil, common.NewAppError("UPLOAD_OCR", "text extraction failed", err)
	}
	c.logger.Info("intake.ocr.ok", "document_id", id, "text_bytes", len(ocrText))

	cls, err := c.orch.Classify(ctx, ocrText)
	if err != nil {
		return nil, common.NewAppError("UPLOAD_CLASSIFY", "classification failed", err)
	}
	if err := doc.SetClassification(cls.BillType, cls.BillSubtype); err != nil {
		return nil, common.NewAppError("UPLOAD_CLASSIFY", "classification state error", err)
	}

	// Insert the in-progress record so the listing endpoint and the
	// reprocessing sweep can see it before the background run completes.
	if err := c.repo.Insert(ctx, doc); err != nil {
		return nil, common.NewAppError("UPLOAD_PERSIST", "record insert failed", err)
	}

	// The worker gets its own copy; the caller's response serializes the
	// original concurrently.
	job := async.Job{
		Doc:         doc.Clone(),
		OCRText:     ocrText,
		SubmittedAt: time.Now().UTC(),
		TraceID:     uuid.New().String(),
	}
	if err := c.queue.Enqueue(ctx, job); err != nil {
		// The record is durable in Classified state; the sweep recovers it.
		c.logger.Error("intake.enqueue.failed", "document_id", id, "error", err)
	}

	c.logger.Info("intake.upload.ok",
		"document_id", id, "bill_type", doc.BillType, "bill_subtype", doc.BillSubtype)
	return doc, nil
}
