package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRootPath_Default(t *testing.T) {
	t.Setenv("SKILLROUTER_PATH", "")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}

	got := RootPath()
	want := filepath.Join(home, ".skillrouter")
	if got != want {
		t.Errorf("RootPath() = %q, want %q", got, want)
	}
}

func TestRootPath_EnvOverride(t *testing.T) {
	t.Setenv("SKILLROUTER_PATH", "/tmp/custom-sr")

	got := RootPath()
	want := "/tmp/custom-sr"
	if got != want {
		t.Errorf("RootPath() = %q, want %q", got, want)
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("SKILLROUTER_PATH", "/tmp/test-sr")

	got := ConfigPath()
	want := "/tmp/test-sr/config.jsonc"
	if got != want {
		t.Errorf("ConfigPath() = %q, want %q", got, want)
	}
}

func TestDotenvPath(t *testing.T) {
	t.Setenv("SKILLROUTER_PATH", "/tmp/test-sr")

	got := DotenvPath()
	want := "/tmp/test-sr/.env"
	if got != want {
		t.Errorf("DotenvPath() = %q, want %q", got, want)
	}
}
