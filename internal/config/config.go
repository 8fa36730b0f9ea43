// Package config loads the skillrouter configuration.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Models  ModelsConfig  `json:"models"`
	Skills  SkillsConfig  `json:"skills"`
	Tools   ToolsConfig   `json:"tools"`
	Agent   AgentConfig   `json:"agent"`
	Gateway GatewayConfig `json:"gateway"`
	Events  EventsConfig  `json:"events"`
	Storage StorageConfig `json:"storage"`
}

// SkillsConfig configures the skill registry.
type SkillsConfig struct {
	Dir        string   `json:"dir"`        // skills root (default: $SKILLROUTER_PATH/skills)
	Extensions []string `json:"extensions"` // defining document extensions (default: ["md"])
	Enabled    []string `json:"enabled"`    // glob patterns on skill names (empty = all)
}

// ToolsConfig configures the domain tools.
type ToolsConfig struct {
	CommandTimeout Duration        `json:"command_timeout"` // shell and kubectl (default: 30s)
	KubectlPath    string          `json:"kubectl_path"`    // default: kubectl
	WebSearch      WebSearchConfig `json:"web_search"`
}

// WebSearchConfig selects and configures the web_search provider.
type WebSearchConfig struct {
	Provider     string `json:"provider"` // "duckduckgo" (default), "google", "bing"
	MaxResults   int    `json:"max_results"`
	Timeout      string `json:"timeout,omitempty"`
	GoogleAPIKey string `json:"google_api_key,omitempty"`
	GoogleCX     string `json:"google_cx,omitempty"`
	BingAPIKey   string `json:"bing_api_key,omitempty"`
}

// GatewayConfig holds the HTTP server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ModelsConfig holds model provider configuration.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver    string         `json:"driver"` // "ollama", "openai"
	Model     string         `json:"model"`
	BaseURL   string         `json:"base_url,omitempty"`
	Auth      AuthConfig     `json:"auth"`
	MaxTokens int            `json:"max_tokens,omitempty"`
	Timeout   Duration       `json:"timeout,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// AuthConfig configures API key resolution.
type AuthConfig struct {
	APIKey string `json:"api_key,omitempty"` // Direct API key or ${{ .Env.VAR }} template
}

// AgentConfig holds agent settings.
type AgentConfig struct {
	MaxIterations int      `json:"max_iterations"`
	ExecutorTools []string `json:"executor_tools,omitempty"` // overrides the executor tool set
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// StorageConfig locates persisted run data.
type StorageConfig struct {
	EventLogDir string `json:"event_log_dir"` // JSONL event logs (default: $SKILLROUTER_PATH/logs)
	HistoryDB   string `json:"history_db"`    // SQLite run history (default: $SKILLROUTER_PATH/history.db)
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
