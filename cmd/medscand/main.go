package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/anthill1650-eng/Medscan/internal/common"
	"github.com/anthill1650-eng/Medscan/internal/export"
	"github.com/anthill1650-eng/Medscan/internal/labs"
	"github.com/anthill1650-eng/Medscan/internal/ocr"
	"github.com/anthill1650-eng/Medscan/internal/pipeline"
	"github.com/anthill1650-eng/Medscan/internal/repository"
	"github.com/anthill1650-eng/Medscan/internal/server"
	"github.com/anthill1650-eng/Medscan/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Storage.DataDir, logger)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)

	if err := repository.HealthCheck(ctx, db, 3*time.Second, logger); err != nil {
		logger.Error("database health failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database health OK")

	docs := repository.NewDocumentRepository(db, logger)

	// Lab explanation catalog, with optional overrides from disk.
	var labCatalog *labs.Catalog
	if path := os.Getenv("LAB_CATALOG"); path != "" {
		labCatalog, err = labs.LoadCatalog(path)
		if err != nil {
			logger.Error("load lab catalog", "path", path, "error", err)
			os.Exit(1)
		}
		logger.Info("lab catalog loaded", "path", path)
	}
	labExtractor := labs.NewExtractor(labCatalog)

	extractor := ocr.NewExtractor(ocr.Config{
		Tesseract:     cfg.OCR.Tesseract,
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		PSM:           cfg.OCR.PSM,
	}, logger)

	uploadsDir := filepath.Join(cfg.Storage.DataDir, "uploads")
	proc := pipeline.NewProcessor(docs, extractor, labExtractor, uploadsDir, logger)

	queue := worker.NewQueue(proc, logger,
		worker.WithWorkers(cfg.Worker.Workers),
		worker.WithQueueSize(cfg.Worker.QueueSize),
		worker.WithProcessTimeout(cfg.Worker.ProcessTimeout),
	)

	exporter := export.NewService(docs, logger)
	svc := server.NewService(docs, queue, labExtractor, exporter, uploadsDir, logger)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
