package pipeline

import (
	"context"
	"fmt"

	"github.com/billflow/billflow/internal/entity"
)

// SweepStats summarizes one reprocessing pass.
type SweepStats struct {
	Scanned   int
	Succeeded int
	Failed    int
}

// Reprocess scans the record store for documents whose extraction output is
// still empty, refetches their image bytes, and re-enters the pipeline at
// the extraction stage, reusing the stored classification. Each document is
// handled independently: a failure is logged and the sweep moves on.
func (o *Orchestrator) Reprocess(ctx context.Context) (SweepStats, error) {
	docs, err := o.repo.ListUnprocessed(ctx)
	if err != nil {
		return SweepStats{}, fmt.Errorf("list unprocessed documents: %w", err)
	}

	stats := SweepStats{Scanned: len(docs)}
	o.logger.Info("reprocess.sweep.start", "documents", len(docs))

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := o.reprocessOne(ctx, doc); err != nil {
			stats.Failed++
			o.logger.Error("reprocess.document.failed",
				"document_id", doc.ID,
				"bill_type", doc.BillType,
				"stage", FailedStage(err),
				"error", err,
			)
			continue
		}
		stats.Succeeded++
		o.logger.Info("reprocess.document.ok", "document_id", doc.ID)
	}

	o.logger.Info("reprocess.sweep.done",
		"scanned", stats.Scanned, "succeeded", stats.Succeeded, "failed", stats.Failed)
	return stats, nil
}

func (o *Orchestrator) reprocessOne(ctx context.Context, doc *entity.Document) error {
	if err := doc.ResetForReprocess(); err != nil {
		return &StageError{Stage: StageExtraction, Err: err}
	}

	data, err := o.store.Get(ctx, doc.ObjectKey)
	if err != nil {
		return fmt.Errorf("fetch image %s: %w", doc.ObjectKey, err)
	}
	ocrText, err := o.ocr.Extract(ctx, data)
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}

	// Classification is reused, not redone; Finalize picks up at extraction
	// and updates the existing record in place.
	return o.Finalize(ctx, doc, ocrText)
}
