package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"autocloud.com/car-insurance-estimator/internal/apperr"
)

const (
	SourceBigQuery = "bigquery"
	SourceSQLite   = "sqlite"
	SourceNone     = "none"
)

// Config is built once at startup and shared read-only by every component.
type Config struct {
	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`

	ReferenceSource   string `env:"REFERENCE_SOURCE" envDefault:"bigquery"`
	BigQueryProjectID string `env:"BIGQUERY_PROJECT_ID" envDefault:"autocloud-gcp"`
	BigQueryTable     string `env:"BIGQUERY_TABLE" envDefault:"autocloud-gcp.car_insurance_demo.vehicle_table"`
	GoogleCredentials string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	DatabaseURL       string `env:"DATABASE_URL" envDefault:"reference_costs.db"`
	SystemPromptFile  string `env:"SYSTEM_PROMPT_FILE"`
	HTTPPort          string `env:"HTTP_PORT" envDefault:"8080"`
	MaxUploadMB       int64  `env:"MAX_UPLOAD_MB" envDefault:"10"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"INFO"`

	// DotEnvLoaded reports whether a .env file was found.
	DotEnvLoaded bool
}

// Load reads an optional .env file and then the process environment.
// A missing API key or an invalid value is a configuration error.
func Load(files ...string) (*Config, error) {
	cfg := &Config{}
	cfg.DotEnvLoaded = godotenv.Load(files...) == nil

	if err := env.Parse(cfg); err != nil {
		return nil, apperr.New(apperr.KindConfiguration, "parse environment", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, apperr.New(apperr.KindConfiguration, "validate config", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.GoogleAPIKey) == "" {
		return errors.New("GOOGLE_API_KEY environment variable is required")
	}

	c.ReferenceSource = strings.ToLower(strings.TrimSpace(c.ReferenceSource))
	switch c.ReferenceSource {
	case SourceBigQuery:
		if c.BigQueryProjectID == "" || c.BigQueryTable == "" {
			return errors.New("BIGQUERY_PROJECT_ID and BIGQUERY_TABLE are required for the bigquery source")
		}
	case SourceSQLite:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the sqlite source")
		}
	case SourceNone:
	default:
		return fmt.Errorf("unknown REFERENCE_SOURCE %q (want bigquery, sqlite or none)", c.ReferenceSource)
	}

	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("unknown LOG_LEVEL %q", c.LogLevel)
	}

	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

// MaxUploadBytes is the multipart size limit for image uploads.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// SystemTemplate returns the instruction template override, or fallback when none is configured.
func (c *Config) SystemTemplate(fallback string) (string, error) {
	if c.SystemPromptFile == "" {
		return fallback, nil
	}
	b, err := os.ReadFile(c.SystemPromptFile)
	if err != nil {
		return "", apperr.New(apperr.KindConfiguration, "read system prompt", err)
	}
	return string(b), nil
}
