package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/dohr-michael/skillrouter/internal/config"
)

// Drivers lists the supported provider drivers.
var Drivers = []string{"ollama", "openai", "mistral"}

// CreateModel creates a model.ToolCallingChatModel from a provider config.
func CreateModel(ctx context.Context, cfg config.ProviderConfig) (model.ToolCallingChatModel, error) {
	switch strings.ToLower(cfg.Driver) {
	case "ollama":
		return NewOllama(ctx, cfg)
	case "openai", "mistral":
		apiKey, err := ResolveAPIKey(cfg)
		if err != nil {
			return nil, fmt.Errorf("resolve auth: %w", err)
		}
		return NewOpenAI(ctx, cfg, apiKey)
	default:
		return nil, fmt.Errorf("unknown driver: %s", cfg.Driver)
	}
}
