package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/anthill1650-eng/Medscan/constants"
)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	TessdataDir   string

	PSM int // 6 works well for a uniform block of text (lab report tables)
	OEM int // 1 = LSTM; leave 0 to use default
}

type ExtractionResult struct {
	Text       string
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float32
}

// Extractor turns a page image into text by shelling out to tesseract.
type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.PSM <= 0 {
		cfg.PSM = 6
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner swaps the command runner; tests use it to stub the binary.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	if r != nil {
		e.runner = r
	}
	return e
}

// Extract OCRs a single page image.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "ext", ext)

	if !constants.IsAllowedExt(ext) {
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}

	txt, warn, err := e.tesseractOCR(ctx, path)
	if err != nil {
		return ExtractionResult{Warnings: warn}, err
	}
	txt = Normalize(txt)

	return ExtractionResult{
		Text:       txt,
		Language:   e.cfg.TesseractLang,
		Duration:   time.Since(start),
		Warnings:   warn,
		Confidence: heuristicConfidence(txt),
	}, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang> --psm <n>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", []string{string(errb)}, fmt.Errorf("tesseract: %w", err)
	}

	txt := reBoxNoise.ReplaceAllString(string(out), "")
	return txt, nil, nil
}
