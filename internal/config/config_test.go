package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Port:                 "8080",
		DBPath:               "./data/test.db",
		SessionTTL:           time.Hour,
		MaxFollowupQuestions: 3,
		Anthropic: AnthropicConfig{
			APIKey:    "sk-test",
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
		},
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestValidateMissingAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Anthropic.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for missing ANTHROPIC_API_KEY")
	}
}

func TestValidateBadRoundCap(t *testing.T) {
	cfg := validConfig()
	cfg.MaxFollowupQuestions = 0
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for zero MAX_FOLLOWUP_QUESTIONS")
	}
}

func TestValidateSupabaseRequiresServiceKey(t *testing.T) {
	cfg := validConfig()
	cfg.Supabase.ProjectURL = "https://proj.supabase.co"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error when project URL is set without a service key")
	}
	cfg.Supabase.ServiceKey = "service-key"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config with service key, got %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %q", cfg.Port)
	}
	if cfg.MaxFollowupQuestions != 3 {
		t.Errorf("Expected default round cap 3, got %d", cfg.MaxFollowupQuestions)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("Expected default session TTL 24h, got %v", cfg.SessionTTL)
	}
	if cfg.Anthropic.Model != DefaultModel {
		t.Errorf("Expected default model, got %q", cfg.Anthropic.Model)
	}
	if cfg.Supabase.StorageBucket != "plan-documents" {
		t.Errorf("Expected default bucket, got %q", cfg.Supabase.StorageBucket)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("PORT", "9000")
	t.Setenv("MAX_FOLLOWUP_QUESTIONS", "5")
	t.Setenv("SESSION_TTL_MINUTES", "30")
	t.Setenv("SUPABASE_PROJECT_URL", "https://proj.supabase.co/")
	t.Setenv("SUPABASE_SERVICE_KEY", "service-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Expected port 9000, got %q", cfg.Port)
	}
	if cfg.MaxFollowupQuestions != 5 {
		t.Errorf("Expected round cap 5, got %d", cfg.MaxFollowupQuestions)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("Expected session TTL 30m, got %v", cfg.SessionTTL)
	}
	if cfg.Supabase.ProjectURL != "https://proj.supabase.co" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.Supabase.ProjectURL)
	}
}

func TestLoadBadIntFallsBack(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("MAX_FOLLOWUP_QUESTIONS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxFollowupQuestions != 3 {
		t.Errorf("Expected fallback round cap 3, got %d", cfg.MaxFollowupQuestions)
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := validConfig()
	if !cfg.IsDevelopment() {
		t.Error("Expected empty frontend URL to mean development")
	}
	cfg.FrontendURL = "http://localhost:3000"
	if !cfg.IsDevelopment() {
		t.Error("Expected localhost frontend to mean development")
	}
	cfg.FrontendURL = "https://app.example.com"
	if cfg.IsDevelopment() {
		t.Error("Expected production frontend URL")
	}
}
