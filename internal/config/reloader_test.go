package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestReloader_Current(t *testing.T) {
	cfg := &Config{}
	cfg.Gateway.Port = 9999

	r := NewReloader("", "", cfg)
	if got := r.Current(); got.Gateway.Port != 9999 {
		t.Errorf("Current().Gateway.Port = %d, want 9999", got.Gateway.Port)
	}
}

func TestReloader_Reload(t *testing.T) {
	dir := t.TempDir()
	dotenvPath := filepath.Join(dir, ".env")
	configPath := filepath.Join(dir, "config.jsonc")

	if err := os.WriteFile(dotenvPath, []byte("SKILLS_DIR=/srv/initial\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	configContent := `{
		// skills root comes from the environment
		"skills": {"dir": "${{ .Env.SKILLS_DIR }}"},
	}`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SKILLS_DIR", "/srv/initial")

	initial := &Config{}
	r := NewReloader(configPath, dotenvPath, initial)

	var callCount atomic.Int32
	r.OnReload(func(cfg *Config) {
		callCount.Add(1)
	})

	if err := os.WriteFile(dotenvPath, []byte("SKILLS_DIR=/srv/reloaded\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if callCount.Load() != 1 {
		t.Errorf("listener called %d times, want 1", callCount.Load())
	}

	got := r.Current()
	if got == initial {
		t.Fatal("Current() still returns initial config after reload")
	}
	if got.Skills.Dir != "/srv/reloaded" {
		t.Errorf("Skills.Dir = %q, want /srv/reloaded", got.Skills.Dir)
	}
}

func TestReloader_ReloadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	r := NewReloader(filepath.Join(dir, "config.jsonc"), filepath.Join(dir, ".env"), &Config{})

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload with missing files: %v", err)
	}
	if r.Current().Agent.MaxIterations != DefaultMaxIterations {
		t.Error("expected defaults after reload without a config file")
	}
}

func TestReloader_Watch(t *testing.T) {
	dir := t.TempDir()
	r := NewReloader(filepath.Join(dir, "config.jsonc"), filepath.Join(dir, ".env"), &Config{})

	reloaded := make(chan struct{}, 1)
	r.OnReload(func(*Config) { reloaded <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	trigger := make(chan os.Signal, 1)
	done := make(chan struct{})
	go func() {
		r.Watch(ctx, trigger)
		close(done)
	}()

	trigger <- syscall.SIGHUP
	select {
	case <-reloaded:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for reload")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
