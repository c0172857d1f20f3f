package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Engine.MaxConcurrency != 4 {
		t.Errorf("max_concurrency = %d, want 4", cfg.Engine.MaxConcurrency)
	}
	if cfg.Engine.FailurePolicy != "abort" {
		t.Errorf("failure_policy = %q, want abort", cfg.Engine.FailurePolicy)
	}
	if cfg.Engine.Retry.MaxAttempts != 3 || cfg.Engine.Retry.Backoff != 500*time.Millisecond {
		t.Errorf("retry = %+v, want 3 attempts / 500ms", cfg.Engine.Retry)
	}
	if cfg.State.RetentionDays != 30 {
		t.Errorf("retention_days = %d, want 30", cfg.State.RetentionDays)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `engine:
  max_concurrency: 8
  failure_policy: best_effort
  retry:
    max_attempts: 5
    backoff: 2s
planner:
  model: claude-opus-4-20250514
state:
  retention_days: 7
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Engine.MaxConcurrency != 8 {
		t.Errorf("max_concurrency = %d, want 8", cfg.Engine.MaxConcurrency)
	}
	if cfg.Engine.FailurePolicy != "best_effort" {
		t.Errorf("failure_policy = %q", cfg.Engine.FailurePolicy)
	}
	if cfg.Engine.Retry.Backoff != 2*time.Second {
		t.Errorf("backoff = %s, want 2s", cfg.Engine.Retry.Backoff)
	}
	if cfg.Planner.Model != "claude-opus-4-20250514" {
		t.Errorf("model = %q", cfg.Planner.Model)
	}
	if cfg.State.RetentionDays != 7 {
		t.Errorf("retention_days = %d, want 7", cfg.State.RetentionDays)
	}

	// Unset keys keep their defaults.
	if cfg.TUI.RefreshRate != 100*time.Millisecond {
		t.Errorf("refresh_rate = %s, want 100ms default", cfg.TUI.RefreshRate)
	}
}

func TestLoadFromPathExpandsEnv(t *testing.T) {
	t.Setenv("TEST_FOREMAN_KEY", "sk-test-123")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "planner:\n  api_key: ${TEST_FOREMAN_KEY}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Planner.APIKey != "sk-test-123" {
		t.Errorf("api_key = %q, want expanded value", cfg.Planner.APIKey)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing config file must error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Engine.MaxConcurrency = 0 }},
		{"negative concurrency", func(c *Config) { c.Engine.MaxConcurrency = -2 }},
		{"unknown policy", func(c *Config) { c.Engine.FailurePolicy = "retry_forever" }},
		{"empty policy", func(c *Config) { c.Engine.FailurePolicy = "" }},
		{"zero retry attempts", func(c *Config) { c.Engine.Retry.MaxAttempts = 0 }},
	}

	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestLoadFromPathRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "engine:\n  failure_policy: sometimes\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Error("invalid failure_policy must be rejected at load time")
	}
}
