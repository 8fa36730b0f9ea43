package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tailscale/hujson"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, expands ${{ .Env.VAR }} templates,
// unmarshals it into Config, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// LoadOrDefault behaves like Load but returns the defaults when the file does
// not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("config file not found, using defaults", "path", path)
		cfg = &Config{}
		applyDefaults(cfg)
		return cfg, nil
	}
	return cfg, err
}

// Parse decodes JSONC config data.
func Parse(data []byte) (*Config, error) {
	// Templates live inside strings, so expand before standardizing.
	expanded := expandEnvTemplates(string(data))

	std, err := hujson.Standardize([]byte(expanded))
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

const (
	DefaultGatewayPort   = 18421
	DefaultOllamaModel   = "llama3.1:8b"
	DefaultMaxIterations = 10
)

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = DefaultGatewayPort
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}

	if cfg.Skills.Dir == "" {
		cfg.Skills.Dir = filepath.Join(RootPath(), "skills")
	}
	if len(cfg.Skills.Extensions) == 0 {
		cfg.Skills.Extensions = []string{"md"}
	}

	if cfg.Tools.CommandTimeout == 0 {
		cfg.Tools.CommandTimeout = Duration(30 * time.Second)
	}
	if cfg.Tools.KubectlPath == "" {
		cfg.Tools.KubectlPath = "kubectl"
	}
	if cfg.Tools.WebSearch.Provider == "" {
		cfg.Tools.WebSearch.Provider = "duckduckgo"
	}
	if cfg.Tools.WebSearch.MaxResults == 0 {
		cfg.Tools.WebSearch.MaxResults = 5
	}

	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = DefaultMaxIterations
	}

	if cfg.Storage.EventLogDir == "" {
		cfg.Storage.EventLogDir = filepath.Join(RootPath(), "logs")
	}
	if cfg.Storage.HistoryDB == "" {
		cfg.Storage.HistoryDB = filepath.Join(RootPath(), "history.db")
	}

	// A local Ollama model is the out-of-the-box provider.
	if len(cfg.Models.Providers) == 0 {
		cfg.Models.Providers = map[string]ProviderConfig{
			"ollama": {Driver: "ollama", Model: DefaultOllamaModel},
		}
	}
	if cfg.Models.Default == "" {
		if _, ok := cfg.Models.Providers["ollama"]; ok {
			cfg.Models.Default = "ollama"
		}
	}
	// Auth resolution is deferred to models.ResolveAuth() at model init time.
}
