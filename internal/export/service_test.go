package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/billflow/billflow/internal/entity"
)

type listRepo struct {
	docs []*entity.Document
	err  error
}

func (r *listRepo) Insert(context.Context, *entity.Document) error { return nil }
func (r *listRepo) UpdateExtraction(context.Context, uuid.UUID, entity.Fields, entity.Fields) error {
	return nil
}
func (r *listRepo) Get(context.Context, uuid.UUID) (*entity.Document, error) { return nil, nil }
func (r *listRepo) List(context.Context) ([]*entity.Document, error)         { return r.docs, r.err }
func (r *listRepo) ListUnprocessed(context.Context) ([]*entity.Document, error) {
	return nil, nil
}

func TestExportDocumentsXLSX(t *testing.T) {
	doc := entity.Rehydrate(uuid.New(), "bill.png", "image/png", "k/bill.png",
		time.Now().UTC(), "invoice", "utility",
		entity.Fields{"total": "42.17"}, entity.Fields{"record_type": "vendorbill"})
	svc := NewService(&listRepo{docs: []*entity.Document{doc}}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	data, err := svc.ExportDocumentsXLSX(context.Background())
	if err != nil {
		t.Fatalf("ExportDocumentsXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a readable workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Documents")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1 record", len(rows))
	}
	if rows[0][0] != "Document ID" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != doc.ID.String() {
		t.Errorf("first cell = %q, want document id", rows[1][0])
	}
	if rows[1][3] != "invoice" {
		t.Errorf("bill type cell = %q", rows[1][3])
	}
}

func TestExportPropagatesListError(t *testing.T) {
	svc := NewService(&listRepo{err: errors.New("connection refused")}, nil)
	if _, err := svc.ExportDocumentsXLSX(context.Background()); err == nil {
		t.Fatal("expected error when listing fails")
	}
}

func TestExportEmptyLedger(t *testing.T) {
	svc := NewService(&listRepo{}, nil)
	data, err := svc.ExportDocumentsXLSX(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("empty workbook bytes")
	}
}
