package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billflow/billflow/internal/common"
	"github.com/billflow/billflow/internal/entity"
)

// DocumentRepository is the single durable owner of Document records.
// Writes keyed by document_id are the unit of atomicity: replaying a write
// with the same identifier overwrites, never duplicates.
type DocumentRepository interface {
	// Insert upserts the document. created_at is only written on first
	// insert; replays keep the original value.
	Insert(ctx context.Context, doc *entity.Document) error
	// UpdateExtraction sets both extraction fields in place. They are
	// written together, never one without the other.
	UpdateExtraction(ctx context.Context, id uuid.UUID, extracted, netsuite entity.Fields) error
	// Get returns one document or common.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	// List returns all documents, newest first.
	List(ctx context.Context) ([]*entity.Document, error)
	// ListUnprocessed returns documents whose extracted_data or
	// netsuite_data is still empty, oldest first.
	ListUnprocessed(ctx context.Context) ([]*entity.Document, error)
}

type pgDocumentRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewDocumentRepository(pool *pgxpool.Pool, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &pgDocumentRepository{pool: pool, logger: logger}
}

func (r *pgDocumentRepository) Insert(ctx context.Context, doc *entity.Document) error {
	extracted, netsuite, err := marshalFields(doc)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO documents
	(document_id, filename, content_type, object_key, bill_type, bill_subtype,
	 extracted_data, netsuite_data, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (document_id) DO UPDATE SET
	filename       = EXCLUDED.filename,
	content_type   = EXCLUDED.content_type,
	object_key     = EXCLUDED.object_key,
	bill_type      = EXCLUDED.bill_type,
	bill_subtype   = EXCLUDED.bill_subtype,
	extracted_data = EXCLUDED.extracted_data,
	netsuite_data  = EXCLUDED.netsuite_data`

	_, err = r.pool.Exec(ctx, q,
		doc.ID, doc.Filename, doc.ContentType, doc.ObjectKey,
		nullable(doc.BillType), nullable(doc.BillSubtype),
		extracted, netsuite, doc.CreatedAt)
	if err != nil {
		r.logger.Error("repository.insert.failed", "document_id", doc.ID, "error", err)
		return fmt.Errorf("insert document %s: %w", doc.ID, err)
	}
	r.logger.Info("repository.insert.ok", "document_id", doc.ID, "bill_type", doc.BillType)
	return nil
}

func (r *pgDocumentRepository) UpdateExtraction(ctx context.Context, id uuid.UUID, extracted, netsuite entity.Fields) error {
	if len(extracted) == 0 || len(netsuite) == 0 {
		return fmt.Errorf("update document %s: extracted and netsuite data must both be present", id)
	}
	eb, err := json.Marshal(extracted)
	if err != nil {
		return fmt.Errorf("marshal extracted_data: %w", err)
	}
	nb, err := json.Marshal(netsuite)
	if err != nil {
		return fmt.Errorf("marshal netsuite_data: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE documents SET extracted_data = $2, netsuite_data = $3 WHERE document_id = $1`,
		id, eb, nb)
	if err != nil {
		r.logger.Error("repository.update.failed", "document_id", id, "error", err)
		return fmt.Errorf("update document %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update document %s: %w", id, common.ErrNotFound)
	}
	r.logger.Info("repository.update.ok", "document_id", id)
	return nil
}

const selectColumns = `document_id, filename, content_type, object_key,
	COALESCE(bill_type, ''), COALESCE(bill_subtype, ''),
	extracted_data, netsuite_data, created_at`

func (r *pgDocumentRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM documents WHERE document_id = $1`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("repository.get.failed", "document_id", id, "error", err)
		return nil, err
	}
	return doc, nil
}

func (r *pgDocumentRepository) List(ctx context.Context) ([]*entity.Document, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM documents ORDER BY created_at DESC`)
}

func (r *pgDocumentRepository) ListUnprocessed(ctx context.Context) ([]*entity.Document, error) {
	return r.list(ctx, `SELECT `+selectColumns+` FROM documents
		WHERE extracted_data IS NULL OR netsuite_data IS NULL
		ORDER BY created_at ASC`)
}

func (r *pgDocumentRepository) list(ctx context.Context, query string) ([]*entity.Document, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error("repository.list.failed", "error", err)
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		id                    uuid.UUID
		filename, contentType string
		objectKey             string
		billType, billSubtype string
		extractedRaw          []byte
		netsuiteRaw           []byte
		createdAt             time.Time
	)
	if err := row.Scan(&id, &filename, &contentType, &objectKey,
		&billType, &billSubtype, &extractedRaw, &netsuiteRaw, &createdAt); err != nil {
		return nil, err
	}

	extracted, err := unmarshalFields(extractedRaw)
	if err != nil {
		return nil, fmt.Errorf("document %s: decode extracted_data: %w", id, err)
	}
	netsuite, err := unmarshalFields(netsuiteRaw)
	if err != nil {
		return nil, fmt.Errorf("document %s: decode netsuite_data: %w", id, err)
	}

	return entity.Rehydrate(id, filename, contentType, objectKey, createdAt,
		billType, billSubtype, extracted, netsuite), nil
}

func marshalFields(doc *entity.Document) (extracted, netsuite []byte, err error) {
	if len(doc.ExtractedData) > 0 {
		if extracted, err = json.Marshal(doc.ExtractedData); err != nil {
			return nil, nil, fmt.Errorf("marshal extracted_data: %w", err)
		}
	}
	if len(doc.NetsuiteData) > 0 {
		if netsuite, err = json.Marshal(doc.NetsuiteData); err != nil {
			return nil, nil, fmt.Errorf("marshal netsuite_data: %w", err)
		}
	}
	return extracted, netsuite, nil
}

func unmarshalFields(raw []byte) (entity.Fields, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var f entity.Fields
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
