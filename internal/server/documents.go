package server

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/anthill1650-eng/Medscan/constants"
	"github.com/anthill1650-eng/Medscan/internal/common"
	"github.com/anthill1650-eng/Medscan/internal/entity"
	"github.com/anthill1650-eng/Medscan/internal/worker"
)

// maxUploadBytes bounds one submission (all pages together).
const maxUploadBytes = 32 << 20

// handleUpload accepts one or more page images as multipart form data under
// the "files" field, persists them, and queues the document for processing.
// The response is the immediate, still-unprocessed snapshot.
func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart request: %v", err))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	parts := r.MultipartForm.File["files"]
	if len(parts) == 0 {
		s.writeError(w, http.StatusBadRequest, "no files uploaded; send images under the 'files' field")
		return
	}

	docID := uuid.New().String()
	docDir := filepath.Join(s.uploadsDir, docID)
	if err := os.MkdirAll(docDir, 0o755); err != nil {
		s.logger.Error("create upload directory failed", "doc_id", docID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	// A rejected submission must not leave page files behind that no
	// document row will ever reference.
	discard := func() {
		if err := os.RemoveAll(docDir); err != nil {
			s.logger.Warn("discard upload directory failed", "doc_id", docID, "error", err)
		}
	}

	pages := make([]entity.Page, 0, len(parts))
	for idx, fh := range parts {
		filename := fh.Filename
		if filename == "" {
			filename = fmt.Sprintf("page_%d.jpg", idx)
		}
		ext := constants.NormalizeExt(filepath.Ext(filename))
		if ext == "" {
			ext = "jpg"
		}
		if !constants.IsAllowedExt(ext) {
			discard()
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q; upload an image", ext))
			return
		}

		src, err := fh.Open()
		if err != nil {
			discard()
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unreadable upload part %d", idx))
			return
		}
		data, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			discard()
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unreadable upload part %d", idx))
			return
		}

		key := filepath.Join(docID, fmt.Sprintf("page_%d.%s", idx, ext))
		if err := os.WriteFile(filepath.Join(s.uploadsDir, key), data, 0o644); err != nil {
			s.logger.Error("store page failed", "doc_id", docID, "page", idx, "error", err)
			discard()
			s.writeError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}

		width, height := imageDims(data)
		pages = append(pages, entity.Page{
			ID:     fmt.Sprintf("page_%d", idx),
			URI:    filepath.ToSlash(key),
			Width:  width,
			Height: height,
			Page:   idx,
		})
	}

	result := &entity.DocResult{
		DocID:  docID,
		Status: constants.StatusQueued,
		Pages:  pages,
	}
	doc := &entity.Document{
		ID:       docID,
		Status:   constants.StatusQueued,
		Filename: parts[0].Filename,
		Result:   result,
	}
	if err := s.docs.Create(r.Context(), doc); err != nil {
		discard()
		s.writeError(w, httpStatusFor(err), "failed to record document")
		return
	}

	if err := s.queue.Enqueue(r.Context(), worker.Job{DocID: docID}); err != nil {
		s.logger.Error("enqueue failed", "doc_id", docID, "error", err)
	}

	s.logger.Info("document accepted",
		"req_id", common.RequestIDFromContext(r.Context()),
		"doc_id", docID,
		"pages", len(pages),
	)
	s.writeJSON(w, http.StatusOK, result)
}

// handleDocumentStatus reports the current job state. The result field stays
// null until the document reaches done.
func (s *Service) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")

	doc, err := s.docs.Get(r.Context(), docID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "document not found")
			return
		}
		s.writeError(w, httpStatusFor(err), "failed to load document")
		return
	}

	resp := entity.StatusResponse{
		DocID:  doc.ID,
		Status: doc.Status,
	}
	if doc.Status == constants.StatusDone {
		resp.Result = doc.Result
	}
	if doc.Status == constants.StatusError && doc.ErrorMsg != "" {
		msg := doc.ErrorMsg
		resp.Error = &msg
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// imageDims decodes just the image header. Unknown formats fall back to 0x0,
// matching what the capture client tolerates.
func imageDims(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
