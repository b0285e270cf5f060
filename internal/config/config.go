// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults for the Anthropic model gateway.
const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4096
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string

	// SessionTTL bounds how long a suspended plan conversation is kept
	// before the janitor discards its checkpoint.
	SessionTTL time.Duration

	// MaxFollowupQuestions caps the number of clarifying-question rounds
	// per plan conversation.
	MaxFollowupQuestions int

	Anthropic AnthropicConfig
	Supabase  SupabaseConfig
}

// AnthropicConfig configures the model gateway.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// SupabaseConfig configures auth (JWKS) and plan document storage.
type SupabaseConfig struct {
	ProjectURL    string
	ServiceKey    string
	StorageBucket string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		FrontendURL:          getEnv("FRONTEND_URL", ""),
		DBPath:               getEnv("DB_PATH", "./data/planfab.db"),
		SessionTTL:           time.Duration(getEnvInt("SESSION_TTL_MINUTES", 24*60)) * time.Minute,
		MaxFollowupQuestions: getEnvInt("MAX_FOLLOWUP_QUESTIONS", 3),
		Anthropic: AnthropicConfig{
			APIKey:    getEnv("ANTHROPIC_API_KEY", ""),
			Model:     getEnv("ANTHROPIC_MODEL", DefaultModel),
			MaxTokens: getEnvInt("ANTHROPIC_MAX_TOKENS", DefaultMaxTokens),
		},
		Supabase: SupabaseConfig{
			ProjectURL:    strings.TrimRight(getEnv("SUPABASE_PROJECT_URL", ""), "/"),
			ServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
			StorageBucket: getEnv("STORAGE_BUCKET", "plan-documents"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Anthropic.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}
	if c.Anthropic.Model == "" {
		return fmt.Errorf("ANTHROPIC_MODEL cannot be empty")
	}
	if c.Anthropic.MaxTokens <= 0 {
		return fmt.Errorf("ANTHROPIC_MAX_TOKENS must be > 0")
	}
	if c.MaxFollowupQuestions <= 0 {
		return fmt.Errorf("MAX_FOLLOWUP_QUESTIONS must be > 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be > 0")
	}
	if c.Supabase.ProjectURL != "" && c.Supabase.ServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required when SUPABASE_PROJECT_URL is set")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
