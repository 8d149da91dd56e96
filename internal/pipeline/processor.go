package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/anthill1650-eng/Medscan/constants"
	"github.com/anthill1650-eng/Medscan/internal/entity"
	"github.com/anthill1650-eng/Medscan/internal/labs"
	"github.com/anthill1650-eng/Medscan/internal/ocr"
	"github.com/anthill1650-eng/Medscan/internal/repository"
)

// TextExtractor is the OCR stage: page image file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

const (
	summaryMaxLines = 8
	summaryMaxChars = 700
)

// Processor runs one document through OCR and lab explanation and persists
// the outcome.
type Processor struct {
	docs       repository.DocumentRepository
	extractor  TextExtractor
	labs       *labs.Extractor
	uploadsDir string
	logger     *slog.Logger
}

func NewProcessor(docs repository.DocumentRepository, tx TextExtractor, lx *labs.Extractor, uploadsDir string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if lx == nil {
		lx = labs.NewExtractor(nil)
	}
	return &Processor{docs: docs, extractor: tx, labs: lx, uploadsDir: uploadsDir, logger: logger}
}

// ProcessDocument drives one stored document to a terminal status. Any stage
// error marks the document failed; the error is also returned for logging.
func (p *Processor) ProcessDocument(ctx context.Context, docID string) error {
	doc, err := p.docs.Get(ctx, docID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if doc.Status.IsTerminal() {
		p.logger.Warn("document already terminal, skipping", "doc_id", docID, "status", doc.Status)
		return nil
	}
	if doc.Result == nil || len(doc.Result.Pages) == 0 {
		msg := "document has no pages to process"
		_ = p.docs.FinishFailure(ctx, docID, msg)
		return fmt.Errorf("%s: %s", msg, docID)
	}

	if err := p.docs.MarkProcessing(ctx, docID); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	// OCR pages in document order; each page keeps its own text.
	pages := make([]entity.Page, len(doc.Result.Pages))
	copy(pages, doc.Result.Pages)

	var fullText strings.Builder
	for i := range pages {
		res, err := p.extractor.Extract(ctx, filepath.Join(p.uploadsDir, pages[i].URI))
		if err != nil {
			msg := fmt.Sprintf("ocr failed on page %d: %v", pages[i].Page, err)
			_ = p.docs.FinishFailure(ctx, docID, msg)
			p.logger.Error("processing failed", "doc_id", docID, "page", pages[i].Page, "error", err)
			return fmt.Errorf("extract page %d: %w", pages[i].Page, err)
		}
		pages[i].Text = res.Text
		if fullText.Len() > 0 {
			fullText.WriteString("\n\n")
		}
		fullText.WriteString(res.Text)
		p.logger.Debug("page extracted",
			"doc_id", docID,
			"page", pages[i].Page,
			"bytes", len(res.Text),
			"confidence", res.Confidence,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}

	text := fullText.String()
	result := &entity.DocResult{
		DocID:   docID,
		Status:  constants.StatusDone,
		Pages:   pages,
		Summary: Summarize(text),
		Labs:    p.labs.Explain(text),
	}

	if err := p.docs.FinishSuccess(ctx, docID, text, result); err != nil {
		return fmt.Errorf("persist result: %w", err)
	}

	p.logger.Info("document processed",
		"doc_id", docID,
		"pages", len(pages),
		"labs", result.Labs.Count,
	)
	return nil
}

// Summarize produces a short plain preview of the document: the first few
// non-empty lines, capped.
func Summarize(text string) string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return ""
	}
	var lines []string
	for _, ln := range strings.Split(cleaned, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
		if len(lines) == summaryMaxLines {
			break
		}
	}
	summary := strings.Join(lines, " ")
	if len(summary) > summaryMaxChars {
		cut := summaryMaxChars
		// back off to a rune boundary so the cap never splits a character
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = strings.TrimRight(summary[:cut], " ") + "..."
	}
	return summary
}
