// Package config loads runtime settings from YAML, .env files and the
// process environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Config is the root configuration of the NOI analyzer.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Validation ValidationConfig `yaml:"validation"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"min=0"`
	MaxUploadMB     int64         `yaml:"max_upload_mb" validate:"min=1,max=512"`
	Concurrency     int           `yaml:"concurrency" validate:"min=1,max=16"`
}

// ExtractionConfig describes the remote extraction service.
type ExtractionConfig struct {
	URL            string        `yaml:"url" validate:"omitempty,url"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout" validate:"min=0"`
	MaxRetries     int           `yaml:"max_retries" validate:"min=0,max=10"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" validate:"min=0"`
	RatePerSecond  float64       `yaml:"rate_per_second" validate:"min=0"`
}

// GeminiConfig enables the LLM-backed extractor when APIKey is set.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type StorageConfig struct {
	DatabaseURL string `yaml:"database_url"`
	ReportsDir  string `yaml:"reports_dir"`
}

type LoggingConfig struct {
	Level  string   `yaml:"level" validate:"oneof=trace debug info warn error"`
	Output []string `yaml:"output" validate:"dive,oneof=console stdout file"`
	File   string   `yaml:"file"`
}

// ValidationConfig holds the reconciliation tolerances in currency units.
type ValidationConfig struct {
	Tolerance          float64 `yaml:"tolerance" validate:"gt=0"`
	ComponentTolerance float64 `yaml:"component_tolerance" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			MaxUploadMB:     32,
			Concurrency:     4,
		},
		Extraction: ExtractionConfig{
			Timeout:        60 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
			RatePerSecond:  2,
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.0-flash",
		},
		Storage: StorageConfig{
			ReportsDir: "data/reports",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"console"},
			File:   "logs/noi.log",
		},
		Validation: ValidationConfig{
			Tolerance:          1.0,
			ComponentTolerance: 0.1,
		},
	}
}

// Load reads the YAML file at path (optional when empty or missing), loads
// .env if present, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			fmt.Printf("[CONFIG] %s not found, using defaults\n", path)
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}

	str(&c.Server.Addr, "NOI_ADDR")
	str(&c.Extraction.URL, "NOI_EXTRACTION_URL", "EXTRACTION_API_URL")
	str(&c.Extraction.APIKey, "NOI_EXTRACTION_API_KEY", "EXTRACTION_API_KEY")
	str(&c.Gemini.APIKey, "GEMINI_API_KEY")
	str(&c.Gemini.Model, "GEMINI_MODEL")
	str(&c.Storage.DatabaseURL, "NOI_DATABASE_URL", "DATABASE_URL")
	str(&c.Storage.ReportsDir, "NOI_REPORTS_DIR")
	str(&c.Logging.Level, "NOI_LOG_LEVEL")

	if v, ok := lookup("API_TIMEOUT"); ok {
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("API_TIMEOUT: %w", err)
		}
		c.Extraction.Timeout = time.Duration(secs) * time.Second
	}
	if v, ok := lookup("API_MAX_RETRIES"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("API_MAX_RETRIES: %w", err)
		}
		c.Extraction.MaxRetries = n
	}
	return nil
}
