package config

import (
	"fmt"
	"os"
	"strconv"

	"docscan/internal/logger"
	"docscan/internal/ocr"
)

// Config carries process-level configuration read from the environment.
// Per-call user preferences (script mode, fallback flags, threshold) live in
// Settings instead, which re-reads them on every recognition call.
type Config struct {
	// Google Cloud Configuration (remote OCR providers)
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// Remote provider selection: "vision" or "documentai"
	RemoteProvider string

	// Image normalization
	MaxImageDimension int
	ContentRoot       string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	maxDim, err := strconv.Atoi(getEnv("DOCSCAN_MAX_DIMENSION", "4096"))
	if err != nil {
		return nil, fmt.Errorf("config validation failed: DOCSCAN_MAX_DIMENSION: %w", err)
	}

	config := &Config{
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		RemoteProvider:        getEnv("DOCSCAN_REMOTE_PROVIDER", "vision"),
		MaxImageDimension:     maxDim,
		ContentRoot:           getEnv("DOCSCAN_CONTENT_ROOT", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.RemoteProvider != "vision" && c.RemoteProvider != "documentai" {
		return fmt.Errorf("DOCSCAN_REMOTE_PROVIDER must be \"vision\" or \"documentai\", got %q", c.RemoteProvider)
	}
	if c.MaxImageDimension < 1 {
		return fmt.Errorf("DOCSCAN_MAX_DIMENSION must be positive, got %d", c.MaxImageDimension)
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

// Settings is the environment-backed store of per-call user preferences.
// Values are re-read on every call so external changes take effect without
// a restart. Reads fail on malformed values; the orchestrator substitutes
// documented defaults on failure rather than propagating the error.
type Settings struct{}

// PreferredScriptMode returns the user's script preference (default auto).
func (Settings) PreferredScriptMode() (ocr.ScriptMode, error) {
	raw := getEnv("DOCSCAN_SCRIPT", "auto")
	return ocr.ParseScriptMode(raw)
}

// FallbackEnabled reports whether remote fallback is allowed (default true).
func (Settings) FallbackEnabled() (bool, error) {
	return strconv.ParseBool(getEnv("DOCSCAN_FALLBACK_ENABLED", "true"))
}

// ConfidenceThreshold returns the user's minimum acceptable local
// confidence in [0,1] (default 0.5).
func (Settings) ConfidenceThreshold() (float64, error) {
	v, err := strconv.ParseFloat(getEnv("DOCSCAN_CONFIDENCE_THRESHOLD", "0.5"), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("confidence threshold out of range: %v", v)
	}
	return v, nil
}

// AlwaysUseRemote reports whether the local pipeline should be skipped
// entirely (default false).
func (Settings) AlwaysUseRemote() (bool, error) {
	return strconv.ParseBool(getEnv("DOCSCAN_ALWAYS_REMOTE", "false"))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
