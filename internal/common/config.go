package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all server-side configuration
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	OCR     OCRConfig
	Worker  WorkerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// StorageConfig holds persistence configuration
type StorageConfig struct {
	DataDir string
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string
	TesseractLang string
	TessdataDir   string
	PSM           int
}

// WorkerConfig holds background worker configuration
type WorkerConfig struct {
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("HTTP_ADDR", ":8000"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			DataDir: getEnv("DATA_DIR", "./data"),
		},
		OCR: OCRConfig{
			Tesseract:     getEnv("TESSERACT_BIN", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			PSM:           getEnvAsInt("TESSERACT_PSM", 6),
		},
		Worker: WorkerConfig{
			Workers:        getEnvAsInt("WORKERS", 2),
			QueueSize:      getEnvAsInt("QUEUE_SIZE", 64),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Storage.DataDir == "" {
		return NewAppError("CONFIG_ERROR", "DATA_DIR is required", ErrInvalidInput)
	}
	if c.Worker.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
