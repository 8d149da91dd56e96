package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/anthill1650-eng/Medscan/internal/repository"
)

// listLimit caps how much history one export pulls.
const listLimit = 1000

// Service is a tiny façade over the document repository that produces XLSX
// bytes for history exports.
type Service struct {
	docs   repository.DocumentRepository
	logger *slog.Logger
}

func NewService(docs repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, logger: logger}
}

// ExportScansXLSX returns an XLSX workbook (as bytes) for the scan history.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all recorded scans.
func (s *Service) ExportScansXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	// Normalize dates (date-only, UTC)
	var fromDate, toDate *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		today := time.Now().UTC()
		t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
		toDate = &t
	}

	docs, err := s.docs.List(ctx, listLimit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}

	f := excelize.NewFile()
	const sheet = "Scans"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defIdx, _ := f.GetSheetIndex("Sheet1"); defIdx != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Scan Date",
		"Filename",
		"Status",
		"Pages",
		"Labs Found",
		"Summary",
		"Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	written := 0
	for _, doc := range docs {
		day := time.Date(doc.CreatedAt.Year(), doc.CreatedAt.Month(), doc.CreatedAt.Day(), 0, 0, 0, 0, time.UTC)
		if fromDate != nil && day.Before(*fromDate) {
			continue
		}
		if toDate != nil && day.After(*toDate) {
			continue
		}

		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, doc.CreatedAt.Format("2006-01-02"))
		write(2, doc.Filename)
		write(3, string(doc.Status))
		if doc.Result != nil {
			write(4, len(doc.Result.Pages))
			if doc.Result.Labs != nil {
				write(5, doc.Result.Labs.Count)
				write(6, truncate(doc.Result.Labs.OverallSummary, 140))
			}
		}
		write(7, truncate(doc.ErrorMsg, 140))

		row++
		written++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 14) // date
	_ = f.SetColWidth(sheet, "B", "B", 28) // filename
	_ = f.SetColWidth(sheet, "C", "C", 12) // status
	_ = f.SetColWidth(sheet, "D", "E", 12) // counts
	_ = f.SetColWidth(sheet, "F", "F", 48) // summary
	_ = f.SetColWidth(sheet, "G", "G", 48) // error

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", written,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	// back off to a rune boundary so the cell stays valid UTF-8
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
