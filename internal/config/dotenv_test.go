package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeDotenv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// unsetForTest clears key for the duration of the test.
func unsetForTest(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoadDotenv(t *testing.T) {
	path := writeDotenv(t, `# Ollama endpoint
OLLAMA_HOST=http://localhost:11434

# Quoted values
OPENAI_API_KEY="sk-test-value"
KUBECONFIG='/tmp/kube/config'
`)

	for _, k := range []string{"OLLAMA_HOST", "OPENAI_API_KEY", "KUBECONFIG"} {
		unsetForTest(t, k)
	}

	if err := LoadDotenv(path); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		key, want string
	}{
		{"OLLAMA_HOST", "http://localhost:11434"},
		{"OPENAI_API_KEY", "sk-test-value"},
		{"KUBECONFIG", "/tmp/kube/config"},
	}

	for _, tt := range tests {
		if got := os.Getenv(tt.key); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoadDotenvNoOverride(t *testing.T) {
	path := writeDotenv(t, "EXISTING_VAR=new-value\n")
	t.Setenv("EXISTING_VAR", "original")

	if err := LoadDotenv(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("EXISTING_VAR"); got != "original" {
		t.Errorf("expected existing var to be preserved, got %q", got)
	}
}

func TestReloadDotenvOverrides(t *testing.T) {
	path := writeDotenv(t, "EXISTING_VAR=new-value\n")
	t.Setenv("EXISTING_VAR", "original")

	if err := ReloadDotenv(path); err != nil {
		t.Fatal(err)
	}

	if got := os.Getenv("EXISTING_VAR"); got != "new-value" {
		t.Errorf("expected override, got %q", got)
	}
}

func TestLoadDotenvMissingFile(t *testing.T) {
	if err := LoadDotenv("/nonexistent/.env"); err != nil {
		t.Errorf("missing file should be silently ignored, got: %v", err)
	}
	if err := ReloadDotenv("/nonexistent/.env"); err != nil {
		t.Errorf("missing file should be silently ignored, got: %v", err)
	}
}
