// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, engine) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Extraction provider selectors recognized by LLM_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// # Configuration Schema

// Config holds all runtime configuration for the Resumora API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// SessionSecret seeds the HKDF-derived credential signing key.
	SessionSecret string `env:"SESSION_SECRET,required"`

	// Session and revocation lifecycle
	MaxSessionsPerPrincipal int           `env:"MAX_SESSIONS_PER_PRINCIPAL" envDefault:"5"`
	SessionTTL              time.Duration `env:"SESSION_TTL"                envDefault:"24h"`
	RevocationTTL           time.Duration `env:"REVOCATION_TTL"             envDefault:"168h"`

	// LLM budgets per principal
	LLMDailyRequests int `env:"LLM_DAILY_REQUESTS_PER_PRINCIPAL" envDefault:"50"`
	LLMMonthlyTokens int `env:"LLM_MONTHLY_TOKENS_PER_PRINCIPAL" envDefault:"100000"`

	// Rolling-window rate limits by endpoint class
	RateWindowSize  time.Duration `env:"RATE_WINDOW_SIZE"  envDefault:"15m"`
	RateMaxDefault  int           `env:"RATE_MAX_DEFAULT"  envDefault:"100"`
	RateMaxLLM      int           `env:"RATE_MAX_LLM"      envDefault:"50"`
	RateMaxIdentity int           `env:"RATE_MAX_IDENTITY" envDefault:"20"`

	// Memory pressure guard
	MemoryHighMarkMB     int           `env:"MEMORY_HIGH_MARK_MB"     envDefault:"400"`
	MemoryLowMarkRatio   float64       `env:"MEMORY_LOW_MARK_RATIO"   envDefault:"0.8"`
	MemorySampleInterval time.Duration `env:"MEMORY_SAMPLE_INTERVAL"  envDefault:"30s"`

	// Queue engine and cleanup cadence
	QueuePollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL"       envDefault:"2s"`
	CleanupInterval         time.Duration `env:"CLEANUP_INTERVAL"          envDefault:"60s"`
	CredentialSweepInterval time.Duration `env:"CREDENTIAL_SWEEP_INTERVAL" envDefault:"6h"`
	JobRetention            time.Duration `env:"JOB_RETENTION"             envDefault:"24h"`

	// Extraction deadlines
	LLMDeadline    time.Duration `env:"LLM_DEADLINE"    envDefault:"30s"`
	EngineDeadline time.Duration `env:"ENGINE_DEADLINE" envDefault:"45s"`

	// Extraction provider selection and credentials
	LLMProvider   string `env:"LLM_PROVIDER"    envDefault:"openai"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL"    envDefault:"gpt-4o-mini"`
	GeminiAPIKey  string `env:"GEMINI_API_KEY"`
	GeminiModel   string `env:"GEMINI_MODEL"    envDefault:"gemini-1.5-flash"`

	// Payload handling
	PayloadCacheTTL time.Duration `env:"PAYLOAD_CACHE_TTL" envDefault:"1h"`
	PayloadMaxBytes int           `env:"PAYLOAD_MAX_BYTES" envDefault:"65536"`

	// ArtifactRoot is the directory generated landing-page bundles are written to.
	ArtifactRoot string `env:"ARTIFACT_ROOT" envDefault:"./data/artifacts"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
//
// Beyond tag-level 'required' checks it validates cross-field rules the
// process must refuse to start without: a usable session secret and an API
// key for the selected extraction provider.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if len(cfg.SessionSecret) < 32 {
		return nil, fmt.Errorf("config: SESSION_SECRET must be at least 32 bytes, got %d", len(cfg.SessionSecret))
	}

	switch cfg.LLMProvider {
	case ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("config: OPENAI_API_KEY is required when LLM_PROVIDER=%s", ProviderOpenAI)
		}
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("config: GEMINI_API_KEY is required when LLM_PROVIDER=%s", ProviderGemini)
		}
	default:
		return nil, fmt.Errorf("config: unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}

	if cfg.MemoryLowMarkRatio <= 0 || cfg.MemoryLowMarkRatio >= 1 {
		return nil, fmt.Errorf("config: MEMORY_LOW_MARK_RATIO must be in (0, 1), got %v", cfg.MemoryLowMarkRatio)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the extra CORS origins from EXTRA_ORIGINS,
// comma-separated in the environment.
func (c *Config) AllowedOrigins() []string {
	if c.ExtraOrigins == "" {
		return nil
	}
	parts := strings.Split(c.ExtraOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
