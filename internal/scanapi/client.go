package scanapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anthill1650-eng/Medscan/internal/entity"
)

// UploadFile is one image payload for submission.
type UploadFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// APIError is a non-2xx response from the backend, carrying the server's
// error envelope detail when one was supplied.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// Config holds client settings. Zero values fall back to the defaults the
// mobile client shipped with.
type Config struct {
	BaseURL       string
	UploadTimeout time.Duration // per submission request
	StatusTimeout time.Duration // per status poll
}

// Client talks to the document processing backend. It does not assume a
// deployment: callers decide the base URL at construction.
type Client struct {
	cfg    Config
	httpc  *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 180 * time.Second
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, httpc: &http.Client{}, logger: logger}
}

// Upload submits one or more page images as multipart form data under the
// "files" field and returns the initial document snapshot.
func (c *Client) Upload(ctx context.Context, files []UploadFile) (*entity.DocResult, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to upload")
	}

	reqID := uuid.New().String()
	start := time.Now()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Filename)
		if err != nil {
			return nil, fmt.Errorf("build multipart: %w", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, fmt.Errorf("write multipart: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.UploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	c.logger.Info("scanapi.upload.request",
		"req_id", reqID,
		"files", len(files),
		"bytes", buf.Len(),
	)

	raw, status, err := c.do(req, reqID)
	if err != nil {
		c.logger.Error("scanapi.upload.error", "req_id", reqID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	var out entity.DocResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	c.logger.Info("scanapi.upload.response",
		"req_id", reqID,
		"status", status,
		"doc_id", out.DocID,
		"pages", len(out.Pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &out, nil
}

// Status fetches the current state of one document job.
func (c *Client) Status(ctx context.Context, docID string) (*entity.StatusResponse, error) {
	if docID == "" {
		return nil, fmt.Errorf("doc id is required")
	}

	reqID := uuid.New().String()
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.StatusTimeout)
	defer cancel()

	u := c.cfg.BaseURL + "/documents/" + url.PathEscape(docID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	raw, status, err := c.do(req, reqID)
	if err != nil {
		c.logger.Warn("scanapi.status.error", "req_id", reqID, "doc_id", docID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	var out entity.StatusResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}

	c.logger.Debug("scanapi.status.response",
		"req_id", reqID,
		"doc_id", docID,
		"status", status,
		"job_status", out.Status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &out, nil
}

// do executes the request and turns non-2xx responses into *APIError.
func (c *Client) do(req *http.Request, reqID string) ([]byte, int, error) {
	req.Header.Set("X-Request-Id", reqID)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.logger.Warn("scanapi.body_close_error", "req_id", reqID, "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode/100 != 2 {
		detail := ""
		var envelope struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			detail = envelope.Error
		}
		return raw, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Detail: detail}
	}
	return raw, resp.StatusCode, nil
}
