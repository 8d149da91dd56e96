package scanapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/anthill1650-eng/Medscan/internal/entity"
)

// ScanSummary is one row of the backend's scan history listing.
type ScanSummary struct {
	ID             string `json:"id"`
	CreatedAt      string `json:"created_at"`
	Filename       string `json:"filename"`
	Status         string `json:"status"`
	LabCount       int    `json:"lab_count"`
	OverallSummary string `json:"overall_summary"`
}

// ExplainLabs asks the backend to explain a piece of text without uploading
// a document.
func (c *Client) ExplainLabs(ctx context.Context, text string) (*entity.LabReport, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.StatusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/explain-labs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	raw, _, err := c.do(req, uuid.New().String())
	if err != nil {
		return nil, err
	}
	var report entity.LabReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &report, nil
}

// ListScans fetches recent scan history.
func (c *Client) ListScans(ctx context.Context, limit int) ([]ScanSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.StatusTimeout)
	defer cancel()

	u := c.cfg.BaseURL + "/scans"
	if limit > 0 {
		u += "?limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	raw, _, err := c.do(req, uuid.New().String())
	if err != nil {
		return nil, err
	}
	var out struct {
		Results []ScanSummary `json:"results"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return out.Results, nil
}

// ExportXLSX downloads the scan history workbook.
func (c *Client) ExportXLSX(ctx context.Context, from, to string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	u := c.cfg.BaseURL + "/export"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	raw, _, err := c.do(req, uuid.New().String())
	if err != nil {
		return nil, err
	}
	c.logger.Info("scanapi.export.ok", "bytes", len(raw), "elapsed_ms", time.Since(start).Milliseconds())
	return raw, nil
}
