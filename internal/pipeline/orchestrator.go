// Package pipeline sequences classification → extraction → transformation →
// persistence → notification for one document, and owns the prompt
// composition and model-output parsing between stages.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/billflow/billflow/internal/entity"
	"github.com/billflow/billflow/internal/llm"
	"github.com/billflow/billflow/internal/notify"
	"github.com/billflow/billflow/internal/repository"
	"github.com/billflow/billflow/internal/storage"
)

// TextExtractor converts raw image bytes to unstructured text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Pusher delivers the canonical payload to the dashboard, best-effort.
type Pusher interface {
	Push(ctx context.Context, p notify.Payload) error
}

// Orchestrator wires the pipeline stages to their collaborators. All
// collaborators are injected; prompt templates are composed at call time
// from read-only package data.
type Orchestrator struct {
	logger   *slog.Logger
	store    storage.ObjectStore
	ocr      TextExtractor
	gen      llm.Generator
	repo     repository.DocumentRepository
	notifier Pusher
}

func NewOrchestrator(
	logger *slog.Logger,
	store storage.ObjectStore,
	ocr TextExtractor,
	gen llm.Generator,
	repo repository.DocumentRepository,
	notifier Pusher,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		logger:   logger,
		store:    store,
		ocr:      ocr,
		gen:      gen,
		repo:     repo,
		notifier: notifier,
	}
}

// Classify runs the classification prompt over OCR text. Transport failures
// and non-object output fail the stage; missing or empty labels degrade to
// "Unknown" so downstream stages still receive a value.
func (o *Orchestrator) Classify(ctx context.Context, ocrText string) (llm.Classification, error) {
	raw, err := o.gen.Generate(ctx, llm.ClassificationPrompt(ocrText), true)
	if err != nil {
		return llm.Classification{}, &StageError{Stage: StageClassification, Err: err}
	}
	cls, err := llm.ParseClassification(raw)
	if err != nil {
		return llm.Classification{}, &StageError{Stage: StageClassification, Err: err}
	}
	if cls.BillType == "" {
		cls.BillType = entity.BillTypeUnknown
	}
	if cls.BillSubtype == "" {
		cls.BillSubtype = entity.BillTypeUnknown
	}
	o.logger.Info("pipeline.classify.ok", "bill_type", cls.BillType, "bill_subtype", cls.BillSubtype)
	return cls, nil
}

// ExtractFields runs structured extraction for the document's bill type.
// Unrecognized types fail the stage; unparsable model output degrades to the
// single-field raw-response record so the run still completes.
func (o *Orchestrator) ExtractFields(ctx context.Context, billType, ocrText string) (entity.Fields, error) {
	family, ok := llm.ResolveFamily(billType)
	if !ok {
		return nil, &StageError{
			Stage: StageExtraction,
			Err:   fmt.Errorf("%w: %q", ErrUnsupportedBillType, billType),
		}
	}
	raw, err := o.gen.Generate(ctx, llm.ExtractionPrompt(family, ocrText), true)
	if err != nil {
		return nil, &StageError{Stage: StageExtraction, Err: err}
	}
	fields, err := llm.DecodeObject(raw)
	if err != nil {
		o.logger.Warn("pipeline.extract.unparsable", "bill_type", billType, "error", err)
		return llm.FallbackRecord(raw), nil
	}
	if len(fields) == 0 {
		fields = llm.FallbackRecord(raw)
	}
	return fields, nil
}

// Transform maps extracted fields to the downstream accounting payload,
// keyed by the same bill-type family, with the same fallback rule.
func (o *Orchestrator) Transform(ctx context.Context, billType string, extracted entity.Fields) (entity.Fields, error) {
	if len(extracted) == 0 {
		return nil, &StageError{
			Stage: StageTransformation,
			Err:   fmt.Errorf("no extracted data to transform"),
		}
	}
	family, ok := llm.ResolveFamily(billType)
	if !ok {
		return nil, &StageError{
			Stage: StageTransformation,
			Err:   fmt.Errorf("%w: %q", ErrUnsupportedBillType, billType),
		}
	}
	serialized, err := json.Marshal(extracted)
	if err != nil {
		return nil, &StageError{Stage: StageTransformation, Err: fmt.Errorf("serialize extracted data: %w", err)}
	}
	raw, err := o.gen.Generate(ctx, llm.TransformationPrompt(family, string(serialized)), true)
	if err != nil {
		return nil, &StageError{Stage: StageTransformation, Err: err}
	}
	payload, err := llm.DecodeObject(raw)
	if err != nil {
		o.logger.Warn("pipeline.transform.unparsable", "bill_type", billType, "error", err)
		return llm.FallbackRecord(raw), nil
	}
	if len(payload) == 0 {
		payload = llm.FallbackRecord(raw)
	}
	return payload, nil
}

// Finalize runs the deferred stages for a classified document: extraction,
// transformation, the in-place record update, then the best-effort
// notification. Stage order is strict; a StageError stops the run where it
// happened and the persisted record keeps whatever was already durable.
func (o *Orchestrator) Finalize(ctx context.Context, doc *entity.Document, ocrText string) error {
	extracted, err := o.ExtractFields(ctx, doc.BillType, ocrText)
	if err != nil {
		o.logger.Error("pipeline.extract.failed", "document_id", doc.ID, "stage", FailedStage(err), "error", err)
		return err
	}
	if err := doc.SetExtraction(extracted); err != nil {
		return &StageError{Stage: StageExtraction, Err: err}
	}

	payload, err := o.Transform(ctx, doc.BillType, doc.ExtractedData)
	if err != nil {
		o.logger.Error("pipeline.transform.failed", "document_id", doc.ID, "stage", FailedStage(err), "error", err)
		return err
	}
	if err := doc.SetTransformation(payload); err != nil {
		return &StageError{Stage: StageTransformation, Err: err}
	}

	if err := o.repo.UpdateExtraction(ctx, doc.ID, doc.ExtractedData, doc.NetsuiteData); err != nil {
		o.logger.Error("pipeline.persist.failed", "document_id", doc.ID, "error", err)
		return &StageError{Stage: StagePersist, Err: err}
	}
	if err := doc.MarkPersisted(); err != nil {
		return &StageError{Stage: StagePersist, Err: err}
	}

	// The run is complete here. Notification failures are logged by the
	// notifier and dropped.
	if err := o.notifier.Push(ctx, notify.PayloadFor(doc)); err != nil {
		o.logger.Warn("pipeline.notify.dropped", "document_id", doc.ID, "error", err)
	} else {
		doc.MarkNotified()
	}

	o.logger.Info("pipeline.run.ok", "document_id", doc.ID, "stage", string(doc.Stage()))
	return nil
}
