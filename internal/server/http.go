// Package server exposes the REST surface: upload intake, document listing
// and retrieval, manual forwarding, and the XLSX export.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/billflow/billflow/internal/export"
	"github.com/billflow/billflow/internal/intake"
	"github.com/billflow/billflow/internal/notify"
	"github.com/billflow/billflow/internal/repository"
	"github.com/billflow/billflow/internal/storage"
)

type Server struct {
	logger     *slog.Logger
	intake     *intake.Controller
	repo       repository.DocumentRepository
	store      storage.ObjectStore
	notifier   *notify.Notifier
	exporter   *export.Service
	forwardURL string
	urlTTL     time.Duration
}

func New(
	logger *slog.Logger,
	controller *intake.Controller,
	repo repository.DocumentRepository,
	store storage.ObjectStore,
	notifier *notify.Notifier,
	exporter *export.Service,
	forwardURL string,
	urlTTL time.Duration,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if urlTTL <= 0 {
		urlTTL = time.Hour
	}
	return &Server{
		logger:     logger,
		intake:     controller,
		repo:       repo,
		store:      store,
		notifier:   notifier,
		exporter:   exporter,
		forwardURL: forwardURL,
		urlTTL:     urlTTL,
	}
}

// Routes builds the chi router for the service.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/healthz", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Get("/all", s.handleListDocuments)
	r.Get("/document/{id}", s.handleGetDocument)
	r.Post("/forward", s.handleForward)
	r.Get("/export", s.handleExport)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "bill processing service is running"})
}

type errorBody struct {
	Detail string `json:"detail"`
}

// writeError sends a generic error body; internal detail stays in the logs.
func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorBody{Detail: detail})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("http.encode_response_failed", "error", err)
	}
}
