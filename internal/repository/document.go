package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthill1650-eng/Medscan/constants"
	"github.com/anthill1650-eng/Medscan/internal/common"
	"github.com/anthill1650-eng/Medscan/internal/entity"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) error
	MarkProcessing(ctx context.Context, id string) error
	FinishSuccess(ctx context.Context, id, ocrText string, result *entity.DocResult) error
	FinishFailure(ctx context.Context, id, message string) error
	Get(ctx context.Context, id string) (*entity.Document, error)
	List(ctx context.Context, limit int) ([]*entity.Document, error)
}

type documentRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewDocumentRepository(db *sql.DB, log *slog.Logger) DocumentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &documentRepo{db: db, log: log}
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = constants.StatusQueued
	}

	var resultJSON sql.NullString
	if doc.Result != nil {
		b, err := json.Marshal(doc.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		resultJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO documents (id, status, filename, error_message, ocr_text, result_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID,
		string(doc.Status),
		doc.Filename,
		doc.ErrorMsg,
		doc.OCRText,
		resultJSON,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		r.log.Error("document create failed", "doc_id", doc.ID, "error", err)
		return common.WrapError(err, "create document")
	}
	r.log.Info("document created", "doc_id", doc.ID, "status", doc.Status, "filename", doc.Filename)
	return nil
}

// MarkProcessing moves a queued document to processing. Terminal rows are
// never moved back: the transition silently loses to a finished job.
func (r *documentRepo) MarkProcessing(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(constants.StatusProcessing),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		string(constants.StatusDone),
		string(constants.StatusError),
	)
	if err != nil {
		r.log.Error("document mark processing failed", "doc_id", id, "error", err)
		return common.WrapError(err, "mark processing")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missingOrTerminal(ctx, id)
	}
	r.log.Info("document processing", "doc_id", id)
	return nil
}

func (r *documentRepo) FinishSuccess(ctx context.Context, id, ocrText string, result *entity.DocResult) error {
	b, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, ocr_text = ?, result_json = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(constants.StatusDone),
		ocrText,
		string(b),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		string(constants.StatusDone),
		string(constants.StatusError),
	)
	if err != nil {
		r.log.Error("document finish(done) failed", "doc_id", id, "error", err)
		return common.WrapError(err, "finish document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missingOrTerminal(ctx, id)
	}
	r.log.Info("document finished (done)", "doc_id", id, "pages", len(result.Pages))
	return nil
}

func (r *documentRepo) FinishFailure(ctx context.Context, id, message string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(constants.StatusError),
		message,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		string(constants.StatusDone),
		string(constants.StatusError),
	)
	if err != nil {
		r.log.Error("document finish(error) failed", "doc_id", id, "error", err)
		return common.WrapError(err, "fail document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.missingOrTerminal(ctx, id)
	}
	r.log.Warn("document finished (error)", "doc_id", id, "error", message)
	return nil
}

func (r *documentRepo) Get(ctx context.Context, id string) (*entity.Document, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, status, filename, error_message, ocr_text, result_json, created_at, updated_at
		FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.log.Error("document get failed", "doc_id", id, "error", err)
		return nil, common.WrapError(err, "get document")
	}
	return doc, nil
}

func (r *documentRepo) List(ctx context.Context, limit int) ([]*entity.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, status, filename, error_message, ocr_text, result_json, created_at, updated_at
		FROM documents ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		r.log.Error("document list failed", "error", err)
		return nil, common.WrapError(err, "list documents")
	}
	defer rows.Close()

	var docs []*entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan document")
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// missingOrTerminal classifies a zero-row update.
func (r *documentRepo) missingOrTerminal(ctx context.Context, id string) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM documents WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	if err != nil {
		return common.WrapError(err, "lookup document")
	}
	return fmt.Errorf("document %s already terminal (%s): %w", id, status, common.ErrConflict)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc        entity.Document
		status     string
		resultJSON sql.NullString
		createdAt  string
		updatedAt  string
	)
	if err := row.Scan(&doc.ID, &status, &doc.Filename, &doc.ErrorMsg, &doc.OCRText, &resultJSON, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Status = constants.DocStatus(status)
	if resultJSON.Valid && resultJSON.String != "" {
		var result entity.DocResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		doc.Result = &result
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		doc.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		doc.UpdatedAt = t
	}
	return &doc, nil
}
