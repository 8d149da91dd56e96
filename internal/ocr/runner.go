package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"time"
)

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner shells out, reporting each invocation through the extractor's
// logger.
type execRunner struct {
	logger *slog.Logger
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	logger := r.logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()

	if err != nil {
		logger.Error("ocr command failed",
			"cmd", name,
			"args", args,
			"elapsed_ms", time.Since(start).Milliseconds(),
			"error", err,
			"stderr", clipStderr(errb.Bytes(), 8<<10),
		)
		return out.Bytes(), errb.Bytes(), err
	}

	logger.Debug("ocr command completed",
		"cmd", name,
		"elapsed_ms", time.Since(start).Milliseconds(),
		"stdout_bytes", out.Len(),
		"stderr_bytes", errb.Len(),
	)
	return out.Bytes(), errb.Bytes(), nil
}

// clipStderr bounds how much of a failing command's stderr lands in one log
// record.
func clipStderr(b []byte, max int) string {
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + " [clipped]"
}
