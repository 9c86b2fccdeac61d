package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
database:
  url: postgres://localhost/groceries
redis:
  url: localhost:6379
session:
  signing_key: test-key
`)

	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log defaults = %+v", cfg.Log)
	}
	if cfg.Chat.StateTTL != 15*time.Minute {
		t.Errorf("Chat.StateTTL = %v", cfg.Chat.StateTTL)
	}
	if cfg.Chat.RateLimit != 20 || cfg.Chat.RateWindow != time.Minute {
		t.Errorf("rate defaults = %+v", cfg.Chat)
	}
	if cfg.Session.CookieName != "gpa_session" {
		t.Errorf("Session.CookieName = %q", cfg.Session.CookieName)
	}
	if cfg.Scrape.Parallelism != 2 || cfg.Scrape.BatchSize != 100 {
		t.Errorf("scrape defaults = %+v", cfg.Scrape)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	missingDB := writeConfig(t, `
redis:
  url: localhost:6379
`)
	if _, err := LoadConfig(missingDB, true); err == nil {
		t.Error("expected error for missing database.url")
	}

	missingKey := writeConfig(t, `
database:
  url: postgres://localhost/groceries
redis:
  url: localhost:6379
`)
	if _, err := LoadConfig(missingKey, false); err == nil {
		t.Error("expected error for missing session.signing_key outside dev")
	}
	if _, err := LoadConfig(missingKey, true); err != nil {
		t.Errorf("dev mode should allow missing signing key: %v", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), false); err == nil {
		t.Error("expected error for missing file")
	}
}
