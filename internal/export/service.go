package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/billflow/billflow/internal/entity"
	"github.com/billflow/billflow/internal/repository"
)

// Service is a tiny façade over the document repository that produces XLSX
// bytes for operator exports.
type Service struct {
	repo   repository.DocumentRepository
	logger *slog.Logger
}

func NewService(repo repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ExportDocumentsXLSX returns an XLSX workbook (as bytes) listing every
// document record, newest first.
func (s *Service) ExportDocumentsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Documents"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headers := []string{
		"Document ID",
		"Created At",
		"Filename",
		"Bill Type",
		"Bill Subtype",
		"Extracted Data",
		"NetSuite Payload",
		"Object Key",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, d := range docs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, d.ID.String())
		write(2, d.CreatedAt.UTC().Format(time.RFC3339))
		write(3, d.Filename)
		write(4, d.BillType)
		write(5, d.BillSubtype)
		write(6, truncate(fieldsJSON(d.ExtractedData), 512))
		write(7, truncate(fieldsJSON(d.NetsuiteData), 512))
		write(8, d.ObjectKey)
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 38) // uuid
	_ = f.SetColWidth(sheet, "B", "B", 22) // timestamp
	_ = f.SetColWidth(sheet, "C", "C", 28) // filename
	_ = f.SetColWidth(sheet, "D", "E", 14) // classification
	_ = f.SetColWidth(sheet, "F", "G", 60) // payloads
	_ = f.SetColWidth(sheet, "H", "H", 50) // key

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func fieldsJSON(f entity.Fields) string {
	if len(f) == 0 {
		return ""
	}
	b, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	return string(b)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
