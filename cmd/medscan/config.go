package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anthill1650-eng/Medscan/internal/coordinator"
)

// duration lets yaml carry values like "2s" or "500ms".
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = duration(v)
	return nil
}

// cliConfig holds client settings, loadable from a yaml file.
type cliConfig struct {
	Server          string   `yaml:"server"`
	PollInterval    duration `yaml:"poll_interval"`
	MaxAttempts     int      `yaml:"max_attempts"`
	UploadTimeout   duration `yaml:"upload_timeout"`
	StatusTimeout   duration `yaml:"status_timeout"`
	PollErrorPolicy string   `yaml:"poll_error_policy"` // "count" | "free"
}

func defaultCLIConfig() cliConfig {
	return cliConfig{
		Server:          "http://127.0.0.1:8000",
		PollInterval:    duration(2 * time.Second),
		MaxAttempts:     60,
		UploadTimeout:   duration(180 * time.Second),
		StatusTimeout:   duration(30 * time.Second),
		PollErrorPolicy: "count",
	}
}

// loadCLIConfig merges a yaml config file (when present) over the defaults.
func loadCLIConfig(path string) (cliConfig, error) {
	cfg := defaultCLIConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c cliConfig) errorPolicy() (coordinator.PollErrorPolicy, error) {
	switch c.PollErrorPolicy {
	case "", "count":
		return coordinator.PollErrorCountsAttempt, nil
	case "free":
		return coordinator.PollErrorFreeRetry, nil
	}
	return 0, fmt.Errorf("poll_error_policy must be 'count' or 'free', got %q", c.PollErrorPolicy)
}
