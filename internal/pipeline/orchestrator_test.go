package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/billflow/billflow/internal/entity"
	"github.com/billflow/billflow/internal/llm"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func classifiedDoc(t *testing.T, billType, billSubtype string) *entity.Document {
	t.Helper()
	doc := entity.NewDocument(uuid.New(), "bill.png", "image/png", "key/bill.png", time.Now().UTC())
	if err := doc.SetClassification(billType, billSubtype); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		resp        string
		respErr     error
		wantType    string
		wantSubtype string
		wantErr     bool
	}{
		{
			name:        "clean labels",
			resp:        `{"bill_type": "invoice", "bill_subtype": "utility"}`,
			wantType:    "invoice",
			wantSubtype: "utility",
		},
		{
			name:        "list labels use first element",
			resp:        `{"bill_type": ["expense"], "bill_subtype": ["food", "dining"]}`,
			wantType:    "expense",
			wantSubtype: "food",
		},
		{
			name:        "missing labels degrade to Unknown",
			resp:        `{}`,
			wantType:    entity.BillTypeUnknown,
			wantSubtype: entity.BillTypeUnknown,
		},
		{
			name:    "non-object output fails the stage",
			resp:    "it looks like an invoice",
			wantErr: true,
		},
		{
			name:    "transport error fails the stage",
			respErr: errors.New("connection refused"),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{classifyResp: tt.resp, classifyErr: tt.respErr}
			o := NewOrchestrator(discardLogger(), newFakeStore(), &fakeOCR{}, gen, newFakeRepo(), &fakePusher{})

			cls, err := o.Classify(context.Background(), "some ocr text")
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Classify = %+v, want error", cls)
				}
				if FailedStage(err) != StageClassification {
					t.Errorf("failed stage = %q, want %q", FailedStage(err), StageClassification)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if cls.BillType != tt.wantType || cls.BillSubtype != tt.wantSubtype {
				t.Errorf("got %q/%q, want %q/%q", cls.BillType, cls.BillSubtype, tt.wantType, tt.wantSubtype)
			}
		})
	}
}

func TestFinalizeHappyPath(t *testing.T) {
	gen := &fakeGenerator{
		extractResp:   `{"vendor": "ACME Power", "total": "42.17", "currency": "USD"}`,
		transformResp: `{"record_type": "vendorbill", "entity": "ACME Power"}`,
	}
	repo := newFakeRepo()
	pusher := &fakePusher{}
	o := NewOrchestrator(discardLogger(), newFakeStore(), &fakeOCR{}, gen, repo, pusher)

	doc := classifiedDoc(t, "invoice", "utility")
	if err := repo.Insert(context.Background(), doc); err != nil {
		t.Fatal(err)
	}

	if err := o.Finalize(context.Background(), doc, "ACME POWER CO TOTAL 42.17"); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if doc.Stage() != entity.StageNotified {
		t.Errorf("stage = %s, want %s", doc.Stage(), entity.StageNotified)
	}

	stored, err := repo.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ExtractedData["vendor"] != "ACME Power" {
		t.Errorf("stored extracted data = %v", stored.ExtractedData)
	}
	if stored.NetsuiteData["record_type"] != "vendorbill" {
		t.Errorf("stored netsuite data = %v", stored.NetsuiteData)
	}
	if stored.BillType != "invoice" || stored.BillSubtype != "utility" {
		t.Errorf("classification lost: %q/%q", stored.BillType, stored.BillSubtype)
	}

	if pusher.count() != 1 {
		t.Fatalf("notifications = %d, want 1", pusher.count())
	}
	p := pusher.payloads[0]
	if p.DocumentID != doc.ID.String() || p.BillType != "invoice" {
		t.Errorf("payload = %+v", p)
	}
}

func TestFinalizeUnparsableExtractionStoresRawResponse(t *testing.T) {
	const gibberish = "I see a receipt but cannot make out the numbers."
	gen := &fakeGenerator{
		extractResp:   gibberish,
		transformResp: `{"record_type": "expensereport"}`,
	}
	repo := newFakeRepo()
	o := NewOrchestrator(discardLogger(), newFakeStore(), &fakeOCR{}, gen, repo, &fakePusher{})

	doc := classifiedDoc(t, "expense", "food")
	if err := repo.Insert(context.Background(), doc); err != nil {
		t.Fatal(err)
	}

	if err := o.Finalize(context.Background(), doc, "blurry text"); err != nil {
		t.Fatalf("Finalize should complete via the fallback record: %v", err)
	}

	stored, err := repo.Get(context.Background(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.ExtractedData[llm.RawResponseKey] != gibberish {
		t.Errorf("extracted data = %v, want raw-response fallback", stored.ExtractedData)
	}
	if len(stored.NetsuiteData) == 0 {
		t.Error("transformation output missing")
	}
}

func TestFinalizeUnsupportedBillType(t *testing.T) {
	gen := &fakeGenerator{}
	repo := newFakeRepo()
	pusher := &fakePusher{}
	o := NewOrchestrator(discardLogger(), newFakeStore(), &fakeOCR{}, gen, repo, pusher)

	doc := classifiedDoc(t, entity.BillTypeUnknown, entity.BillTypeUnknown)
	if err := repo.Insert(context.Background(), doc); err != nil {
		t.Fatal(err)
	}

	err := o.Finalize(context.Background(), doc, "text")
	if err == nil {
		t.Fatal("expected failure for unsupported bill type")
	}
	if !errors.Is(err, ErrUnsupportedBillType) {
		t.Errorf("error = %v, want ErrUnsupportedBillType", err)
	}
	if FailedStage(err) != StageExtraction {
		t.Errorf("failed stage = %q, want %q", FailedStage(err), StageExtraction)
	}
	if gen.extractCalls != 0 || gen.transformCalls != 0 {
		t.Errorf("model called %d/%d times for unsupported type", gen.extractCalls, gen.transformCalls)
	}
	if pusher.count() != 0 {
		t.Error("notification sent for failed run")
	}

	// The record keeps only the classification.
	stored, _ := repo.Get(context.Background(), doc.ID)
	if stored.ExtractedData != nil || stored.NetsuiteData != nil {
		t.Errorf("partial fields persisted: %v / %v", stored.ExtractedData, stored.NetsuiteData)
	}
}

func TestFinalizeTransformErrorLeavesRecordUntouched(t *testing.T) {
	gen := &fakeGenerator{
		extractResp:  `{"total": "10"}`,
		transformErr: errors.New("model timeout"),
	}
	repo := newFakeRepo()
	o := NewOrchestrator(discardLogger(), newFakeStore(), &fakeOCR{}, gen, repo, &fakePusher{})

	doc := classifiedDoc(t, "invoice", "utility")
	if err := repo.Insert(context.Background(), doc); err != nil {
		t.Fatal(err)
	}

	err := o.Finalize(context.Background(), doc, "text")
	if err == nil {
		t.Fatal("expected transformation failure")
	}
	if FailedStage(err) != StageTransformation {
		t.Errorf("failed stage = %q, want %q", FailedStage(err), StageTransformation)
	}

	stored, _ := repo.Get(context.Background(), doc.ID)
	if stored.ExtractedData != nil || stored.NetsuiteData != nil {
		t.Errorf("fields written without both present: %v / %v", stored.ExtractedData, stored.NetsuiteData)
	}
}

func TestFinalizePersistFailure(t *testing.T) {
	gen := &fakeGenerator{
		extractResp:   `{"total": "10"}`,
		transformResp: `{"record_type": "vendorbill"}`,
	}
	repo := newFakeRepo()
	repo.updateErr = errors.New("connection reset")
	pusher := &fakePusher{}
	o := NewOrchestrator(discardLogger(), newFakeStore(), &fakeOCR{}, gen, repo, pusher)

	doc := classifiedDoc(t, "invoice", "utility")
	err := o.Finalize(context.Background(), doc, "text")
	if err == nil {
		t.Fatal("expected persist failure")
	}
	if FailedStage(err) != StagePersist {
		t.Errorf("failed stage = %q, want %q", FailedStage(err), StagePersist)
	}
	if pusher.count() != 0 {
		t.Error("notification sent although persistence failed")
	}
}

func TestFinalizeNotifierFailureIsDropped(t *testing.T) {
	gen := &fakeGenerator{
		extractResp:   `{"merchant": "Cafe"}`,
		transformResp: `{"record_type": "expensereport"}`,
	}
	repo := newFakeRepo()
	pusher := &fakePusher{err: errors.New("dashboard down")}
	o := NewOrchestrator(discardLogger(), newFakeStore(), &fakeOCR{}, gen, repo, pusher)

	doc := classifiedDoc(t, "receipt", "food")
	if err := repo.Insert(context.Background(), doc); err != nil {
		t.Fatal(err)
	}

	if err := o.Finalize(context.Background(), doc, "text"); err != nil {
		t.Fatalf("notification failure must not fail the run: %v", err)
	}
	if doc.Stage() != entity.StagePersisted {
		t.Errorf("stage = %s, want %s", doc.Stage(), entity.StagePersisted)
	}

	stored, _ := repo.Get(context.Background(), doc.ID)
	if len(stored.ExtractedData) == 0 || len(stored.NetsuiteData) == 0 {
		t.Error("record lost its fields on notification failure")
	}
}

func TestTransformRequiresExtractedData(t *testing.T) {
	o := NewOrchestrator(discardLogger(), newFakeStore(), &fakeOCR{}, &fakeGenerator{}, newFakeRepo(), &fakePusher{})
	_, err := o.Transform(context.Background(), "invoice", nil)
	if err == nil {
		t.Fatal("expected error transforming empty extraction")
	}
	if FailedStage(err) != StageTransformation {
		t.Errorf("failed stage = %q, want %q", FailedStage(err), StageTransformation)
	}
}
