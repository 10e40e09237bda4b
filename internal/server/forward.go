package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/billflow/billflow/internal/common"
	"github.com/billflow/billflow/internal/entity"
)

type forwardRequest struct {
	DocumentID string `json:"document_id"`
	TargetURL  string `json:"target_url,omitempty"`
}

type forwardPayload struct {
	DocumentID    string        `json:"document_id"`
	BillType      string        `json:"bill_type"`
	BillSubtype   string        `json:"bill_subtype"`
	ExtractedData entity.Fields `json:"extracted_data"`
}

// handleForward pushes a document's extraction payload to a destination URL
// (falling back to the configured default) and acknowledges immediately —
// never the forwarding result.
func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	var req forwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := uuid.Parse(req.DocumentID)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "document_id must be a UUID")
		return
	}

	target := req.TargetURL
	if target == "" {
		target = s.forwardURL
	}
	if target == "" {
		s.writeError(w, http.StatusBadRequest, "no target_url given and no default configured")
		return
	}

	doc, err := s.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.logger.Error("http.forward.load_failed", "document_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not retrieve data")
		return
	}

	payload := forwardPayload{
		DocumentID:    doc.ID.String(),
		BillType:      doc.BillType,
		BillSubtype:   doc.BillSubtype,
		ExtractedData: doc.ExtractedData,
	}

	// Detached from the request: the push outcome is observable in logs only.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.notifier.PushTo(ctx, target, payload); err != nil {
			s.logger.Error("http.forward.push_failed", "document_id", id, "target", target, "error", err)
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":      "scheduled",
		"document_id": doc.ID.String(),
	})
}
