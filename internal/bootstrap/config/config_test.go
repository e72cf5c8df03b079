package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "database:\n  dsn: " + filepath.Join(t.TempDir(), "test.sqlite") + "\nconsole:\n  reject_undo_window: 3s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Console.RejectUndoWindow != 3*time.Second {
		t.Fatalf("reject_undo_window = %s, want 3s", cfg.Console.RejectUndoWindow)
	}
	if cfg.Classifier.Timeout != 30*time.Second {
		t.Fatalf("classifier.timeout = %s, want 30s", cfg.Classifier.Timeout)
	}
	if cfg.HTTP.Addr != ":5000" || cfg.Media.Dir != "uploads" {
		t.Fatalf("http.addr=%q media.dir=%q", cfg.HTTP.Addr, cfg.Media.Dir)
	}
	if cfg.Events.SubjectPrefix != "grievances" {
		t.Fatalf("events.subject_prefix = %q", cfg.Events.SubjectPrefix)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  env: test\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CIVIC_CLASSIFIER_BASE_URL", "http://classifier.internal:9000")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Classifier.BaseURL != "http://classifier.internal:9000" {
		t.Fatalf("classifier.base_url = %q", cfg.Classifier.BaseURL)
	}
}

func TestLoadRejectsRelativeBaseURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("http:\n  public_base_url: /uploads\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "http.public_base_url") {
		t.Fatalf("Load() error = %v, want public_base_url error", err)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("Load() expected error for missing explicit config file")
	}
}
