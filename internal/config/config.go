// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gitlab.com/nandar/payquest/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	DatabaseURL  string
	GeminiAPIKey string
	OCRBaseURL   string
	OCRAPIKey    string
	ListenAddr   string
	ReceiptDir   string
	LogLevel     string
	LogFormat    string
	DailyCap     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		OCRBaseURL:   os.Getenv("OCR_BASE_URL"),
		OCRAPIKey:    os.Getenv("OCR_API_KEY"),
		ListenAddr:   os.Getenv("LISTEN_ADDR"),
		ReceiptDir:   os.Getenv("RECEIPT_DIR"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		LogFormat:    os.Getenv("LOG_FORMAT"),
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.ReceiptDir == "" {
		cfg.ReceiptDir = "receipts"
	}

	cfg.DailyCap = models.DailySubmissionCap
	if capStr := os.Getenv("DAILY_SUBMISSION_CAP"); capStr != "" {
		if c, err := strconv.Atoi(capStr); err == nil && c > 0 {
			cfg.DailyCap = c
		}
	}

	// Validate required configuration.
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present. Extractor
// credentials are deliberately not required here: a missing key surfaces
// as a configuration error at the capability boundary instead, so the
// rest of the service (leaderboards, health) keeps running.
func (c *Config) validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
