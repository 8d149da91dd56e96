package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/anthill1650-eng/Medscan/internal/common"
	"github.com/anthill1650-eng/Medscan/internal/entity"
)

const ocrPreviewChars = 800

type scanSummary struct {
	ID             string `json:"id"`
	CreatedAt      string `json:"created_at"`
	Filename       string `json:"filename"`
	Status         string `json:"status"`
	LabCount       int    `json:"lab_count"`
	OverallSummary string `json:"overall_summary,omitempty"`
}

// handleListScans returns recent scan history, newest first.
func (s *Service) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	docs, err := s.docs.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, httpStatusFor(err), "failed to list scans")
		return
	}

	results := make([]scanSummary, 0, len(docs))
	for _, doc := range docs {
		results = append(results, summarizeScan(doc))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

// handleGetScan returns the full stored record for one document.
func (s *Service) handleGetScan(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	doc, err := s.docs.Get(r.Context(), docID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		s.writeError(w, httpStatusFor(err), "failed to load scan")
		return
	}

	preview := doc.OCRText
	if len(preview) > ocrPreviewChars {
		cut := ocrPreviewChars
		// back off to a rune boundary so the preview stays valid UTF-8
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut]
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":               doc.ID,
		"created_at":       doc.CreatedAt.Format(time.RFC3339),
		"filename":         doc.Filename,
		"status":           doc.Status,
		"error":            doc.ErrorMsg,
		"ocr_text_preview": preview,
		"result":           doc.Result,
	})
}

// handleExport streams the scan history as an XLSX workbook.
func (s *Service) handleExport(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateWindow(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := s.exporter.ExportScansXLSX(r.Context(), from, to)
	if err != nil {
		s.writeError(w, httpStatusFor(err), "failed to build export")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="medscan-history.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write export failed", "error", err)
	}
}

func parseDateWindow(r *http.Request) (from, to *time.Time, err error) {
	parse := func(name string) (*time.Time, error) {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be YYYY-MM-DD", name)
		}
		return &t, nil
	}
	if from, err = parse("from"); err != nil {
		return nil, nil, err
	}
	if to, err = parse("to"); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func summarizeScan(doc *entity.Document) scanSummary {
	out := scanSummary{
		ID:        doc.ID,
		CreatedAt: doc.CreatedAt.Format(time.RFC3339),
		Filename:  doc.Filename,
		Status:    string(doc.Status),
	}
	if doc.Result != nil && doc.Result.Labs != nil {
		out.LabCount = doc.Result.Labs.Count
		out.OverallSummary = doc.Result.Labs.OverallSummary
	}
	return out
}
