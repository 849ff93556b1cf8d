package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("DEFAULT_MODEL", "")
	t.Setenv("KIMICHAT_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := LoadConfig()
	if cfg.Configured() {
		t.Errorf("expected unconfigured relay without a key")
	}
	if cfg.Model != DefaultModel {
		t.Errorf("expected model %q, got %q", DefaultModel, cfg.Model)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("expected base url %q, got %q", DefaultBaseURL, cfg.BaseURL)
	}
	if cfg.MaxTokens != 1000 || cfg.Temperature != 0.7 {
		t.Errorf("unexpected sampling params: %d %v", cfg.MaxTokens, cfg.Temperature)
	}
	if cfg.HeartbeatInterval != 15*time.Second {
		t.Errorf("unexpected heartbeat interval %v", cfg.HeartbeatInterval)
	}
}

func TestConfiguredRejectsPlaceholderKey(t *testing.T) {
	cases := map[string]bool{
		"":                               false,
		"demo-key-replace-with-real-key": false,
		"sk-or-v1-abc":                   true,
	}
	for key, want := range cases {
		if got := (Config{APIKey: key}).Configured(); got != want {
			t.Errorf("Configured(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestApplyTuningFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kimichat.yaml")
	body := "default_model: openai/gpt-4o-mini\nmax_tokens: 256\ntemperature: 0.2\nheartbeat_interval: 5s\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Config{Model: DefaultModel, MaxTokens: 1000, Temperature: 0.7}
	if err := cfg.ApplyTuningFile(path); err != nil {
		t.Fatalf("ApplyTuningFile: %v", err)
	}
	if cfg.Model != "openai/gpt-4o-mini" || cfg.MaxTokens != 256 || cfg.Temperature != 0.2 {
		t.Errorf("tuning not applied: %+v", cfg)
	}
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Errorf("expected 5s heartbeat, got %v", cfg.HeartbeatInterval)
	}
}

func TestApplyTuningFileBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kimichat.yaml")
	if err := os.WriteFile(path, []byte("heartbeat_interval: soon\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Config{}
	if err := cfg.ApplyTuningFile(path); err == nil {
		t.Errorf("expected error for invalid duration")
	}
}
