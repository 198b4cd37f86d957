package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cencori/gateway/internal/config"
)

func writeConfig(t *testing.T, path, openAIKey string) {
	t.Helper()
	content := "database:\n  dsn: \":memory:\"\nvault:\n  master-key: \"unit-test-master-key\"\nplatform-keys:\n  openai: \"" + openAIKey + "\"\n"
	if errWrite := os.WriteFile(path, []byte(content), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
}

func TestConfigWatcher_ReloadOnChange(t *testing.T) {
	t.Setenv(config.EnvOpenAIKey, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "sk-first")

	reloaded := make(chan *config.Config, 4)
	w := New(path, func(cfg *config.Config) { reloaded <- cfg })
	if errStart := w.Start(context.Background()); errStart != nil {
		t.Fatalf("start watcher: %v", errStart)
	}
	t.Cleanup(func() { _ = w.Stop() })

	writeConfig(t, path, "sk-second")

	select {
	case cfg := <-reloaded:
		if cfg.PlatformKey("openai") != "sk-second" {
			t.Fatalf("expected reloaded key, got %q", cfg.PlatformKey("openai"))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestConfigWatcher_SkipsUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "sk-first")

	reloaded := make(chan *config.Config, 4)
	w := New(path, func(cfg *config.Config) { reloaded <- cfg })
	if errStart := w.Start(context.Background()); errStart != nil {
		t.Fatalf("start watcher: %v", errStart)
	}
	t.Cleanup(func() { _ = w.Stop() })

	// Identical bytes must not fire the callback.
	writeConfig(t, path, "sk-first")

	select {
	case <-reloaded:
		t.Fatal("unchanged content must not trigger a reload")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestConfigWatcher_KeepsPreviousOnBrokenConfig(t *testing.T) {
	t.Setenv(config.EnvOpenAIKey, "")
	t.Setenv(config.EnvDBConnection, "")
	t.Setenv(config.EnvMasterKey, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "sk-first")

	reloaded := make(chan *config.Config, 4)
	w := New(path, func(cfg *config.Config) { reloaded <- cfg })
	if errStart := w.Start(context.Background()); errStart != nil {
		t.Fatalf("start watcher: %v", errStart)
	}
	t.Cleanup(func() { _ = w.Stop() })

	// A config that fails validation must be ignored.
	if errWrite := os.WriteFile(path, []byte("database:\n  dsn: \"\"\n"), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}

	select {
	case <-reloaded:
		t.Fatal("invalid config must not trigger a reload")
	case <-time.After(500 * time.Millisecond):
	}

	// A subsequent valid revision still reloads.
	writeConfig(t, path, "sk-third")
	select {
	case cfg := <-reloaded:
		if cfg.PlatformKey("openai") != "sk-third" {
			t.Fatalf("expected recovered reload, got %q", cfg.PlatformKey("openai"))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for recovery reload")
	}
}

func TestConfigWatcher_EmptyPathIsNoop(t *testing.T) {
	w := New("", nil)
	if errStart := w.Start(context.Background()); errStart != nil {
		t.Fatalf("start: %v", errStart)
	}
	if errStop := w.Stop(); errStop != nil {
		t.Fatalf("stop: %v", errStop)
	}
}
