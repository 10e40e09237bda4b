package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/billflow/billflow/internal/common"
	"github.com/billflow/billflow/internal/entity"
)

// maxUploadBytes caps multipart upload size.
const maxUploadBytes = 32 << 20

// documentResponse is the wire shape for /upload, /all and /document/{id}.
// On /upload the extraction fields are null: the background run fills them
// in, observable by polling the read endpoints.
type documentResponse struct {
	DocumentID    string        `json:"document_id"`
	CreatedAt     time.Time     `json:"created_at"`
	BillType      string        `json:"bill_type,omitempty"`
	BillSubtype   string        `json:"bill_subtype,omitempty"`
	ExtractedData entity.Fields `json:"extracted_data"`
	NetsuiteData  entity.Fields `json:"netsuite_data"`
	UploadedImg   string        `json:"uploaded_img"`
}

func toResponse(doc *entity.Document, imageRef string) documentResponse {
	return documentResponse{
		DocumentID:    doc.ID.String(),
		CreatedAt:     doc.CreatedAt,
		BillType:      doc.BillType,
		BillSubtype:   doc.BillSubtype,
		ExtractedData: doc.ExtractedData,
		NetsuiteData:  doc.NetsuiteData,
		UploadedImg:   imageRef,
	}
}

// handleUpload accepts a multipart file, runs the synchronous half of the
// pipeline, and answers with classification fields; extraction fields are
// null while the background run is in flight.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.logger.Warn("http.upload.bad_request", "error", err)
		s.writeError(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Warn("http.upload.read_failed", "error", err)
		s.writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	contentType := header.Header.Get("Content-Type")
	doc, err := s.intake.Upload(r.Context(), header.Filename, contentType, data)
	if err != nil {
		s.logger.Error("http.upload.failed", "filename", header.Filename, "error", err)
		if errors.Is(err, common.ErrInvalidInput) {
			s.writeError(w, http.StatusBadRequest, "invalid upload")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "document upload failed")
		return
	}

	s.writeJSON(w, http.StatusOK, toResponse(doc, doc.ObjectKey))
}

// handleListDocuments returns every persisted record, newest first, each
// with a fresh time-limited view URL in place of the raw storage key.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.repo.List(r.Context())
	if err != nil {
		s.logger.Error("http.list.failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not retrieve data")
		return
	}

	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		url, err := s.store.PresignedURL(r.Context(), doc.ObjectKey, s.urlTTL)
		if err != nil {
			s.logger.Warn("http.list.presign_failed", "document_id", doc.ID, "error", err)
			url = ""
		}
		out = append(out, toResponse(doc, url))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "document id must be a UUID")
		return
	}

	doc, err := s.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("http.get.failed", "document_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not retrieve data")
		return
	}

	url, err := s.store.PresignedURL(r.Context(), doc.ObjectKey, s.urlTTL)
	if err != nil {
		s.logger.Warn("http.get.presign_failed", "document_id", id, "error", err)
		url = ""
	}
	s.writeJSON(w, http.StatusOK, toResponse(doc, url))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.exporter.ExportDocumentsXLSX(r.Context())
	if err != nil {
		s.logger.Error("http.export.failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="documents.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
