package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthill1650-eng/Medscan/internal/coordinator"
)

func TestLoadCLIConfigDefaults(t *testing.T) {
	cfg, err := loadCLIConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8000", cfg.Server)
	assert.Equal(t, 2*time.Second, time.Duration(cfg.PollInterval))
	assert.Equal(t, 60, cfg.MaxAttempts)
	assert.Equal(t, 180*time.Second, time.Duration(cfg.UploadTimeout))
	assert.Equal(t, 30*time.Second, time.Duration(cfg.StatusTimeout))
}

func TestLoadCLIConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadCLIConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.MaxAttempts)
}

func TestLoadCLIConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server: http://scanner.internal:8000
poll_interval: 500ms
max_attempts: 10
poll_error_policy: free
`), 0o644))

	cfg, err := loadCLIConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://scanner.internal:8000", cfg.Server)
	assert.Equal(t, 500*time.Millisecond, time.Duration(cfg.PollInterval))
	assert.Equal(t, 10, cfg.MaxAttempts)
	// Untouched keys keep their defaults.
	assert.Equal(t, 180*time.Second, time.Duration(cfg.UploadTimeout))

	policy, err := cfg.errorPolicy()
	require.NoError(t, err)
	assert.Equal(t, coordinator.PollErrorFreeRetry, policy)
}

func TestLoadCLIConfigRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll_interval: soon\n"), 0o644))

	_, err := loadCLIConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestErrorPolicyParsing(t *testing.T) {
	cfg := defaultCLIConfig()

	policy, err := cfg.errorPolicy()
	require.NoError(t, err)
	assert.Equal(t, coordinator.PollErrorCountsAttempt, policy)

	cfg.PollErrorPolicy = "sometimes"
	_, err = cfg.errorPolicy()
	require.Error(t, err)
}
