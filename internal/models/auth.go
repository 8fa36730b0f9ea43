package models

import (
	"fmt"
	"os"
	"strings"

	"github.com/dohr-michael/skillrouter/internal/config"
)

// defaultKeyEnv maps hosted drivers to the env var holding their API key.
var defaultKeyEnv = map[string]string{
	"openai":  "OPENAI_API_KEY",
	"mistral": "MISTRAL_API_KEY",
}

// ResolveAPIKey resolves the API key for a hosted provider.
// Resolution order: direct api_key (or ${VAR}) → driver default env.
func ResolveAPIKey(cfg config.ProviderConfig) (string, error) {
	key := strings.TrimSpace(cfg.Auth.APIKey)
	if strings.HasPrefix(key, "${") && strings.HasSuffix(key, "}") {
		key = os.Getenv(key[2 : len(key)-1])
	}
	if key != "" {
		return key, nil
	}

	driver := strings.ToLower(cfg.Driver)
	envVar, ok := defaultKeyEnv[driver]
	if !ok {
		return "", fmt.Errorf("unknown driver %q: cannot resolve auth", cfg.Driver)
	}
	if v := os.Getenv(envVar); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s not set", envVar)
}
