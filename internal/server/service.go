// Package server exposes the document processing backend over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/anthill1650-eng/Medscan/internal/common"
	"github.com/anthill1650-eng/Medscan/internal/export"
	"github.com/anthill1650-eng/Medscan/internal/labs"
	"github.com/anthill1650-eng/Medscan/internal/repository"
	"github.com/anthill1650-eng/Medscan/internal/worker"
)

// Service wires repositories, the worker queue and the lab domain into HTTP
// handlers.
type Service struct {
	docs       repository.DocumentRepository
	queue      *worker.Queue
	labs       *labs.Extractor
	exporter   *export.Service
	uploadsDir string
	logger     *slog.Logger
}

func NewService(docs repository.DocumentRepository, queue *worker.Queue, lx *labs.Extractor, exporter *export.Service, uploadsDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if lx == nil {
		lx = labs.NewExtractor(nil)
	}
	return &Service{
		docs:       docs,
		queue:      queue,
		labs:       lx,
		exporter:   exporter,
		uploadsDir: uploadsDir,
		logger:     logger,
	}
}

// Router builds the HTTP surface.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Post("/upload", s.handleUpload)
	r.Get("/documents/{docID}", s.handleDocumentStatus)
	r.Get("/scans", s.handleListScans)
	r.Get("/scans/{docID}", s.handleGetScan)
	r.Get("/export", s.handleExport)
	r.Post("/parse-labs", s.handleParseLabs)
	r.Post("/explain-labs", s.handleExplainLabs)

	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestID attaches an id to every request, honoring one supplied by the
// client.
func (s *Service) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(common.WithRequestID(r.Context(), reqID)))
	})
}

func (s *Service) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("http.request",
			"req_id", common.RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Service) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response failed", "error", err)
	}
}

func (s *Service) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

// httpStatusFor maps repository errors onto response codes.
func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
