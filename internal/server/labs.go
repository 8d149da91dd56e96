package server

import (
	"encoding/json"
	"net/http"
)

type parseRequest struct {
	Text string `json:"text"`
}

// handleParseLabs extracts raw lab values from text without explanation.
func (s *Service) handleParseLabs(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "body must be JSON with a 'text' field")
		return
	}

	results := s.labs.Find(req.Text)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(results),
		"results": results,
	})
}

// handleExplainLabs returns the full plain-English report for a piece of
// text.
func (s *Service) handleExplainLabs(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "body must be JSON with a 'text' field")
		return
	}

	s.writeJSON(w, http.StatusOK, s.labs.Explain(req.Text))
}
