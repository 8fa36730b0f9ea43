package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"

	"github.com/cloudwego/eino-ext/components/tool/bingsearch"
	duckduckgo "github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"

	"github.com/dohr-michael/skillrouter/internal/config"
)

const defaultSearchResults = 5

var webSearchSpec = Spec{
	Name:        string(WebSearch),
	Description: "Search the web for current information. Returns titles, URLs and snippets.",
	Parameters: map[string]Param{
		"query": {
			Type:        "string",
			Description: "The search query",
			Required:    true,
		},
		"num_results": {
			Type:        "integer",
			Description: "Number of results to return",
			Default:     defaultSearchResults,
		},
	},
}

// NewWebSearch creates the search backend for the configured provider.
// Supported: "duckduckgo" (default, no API key), "google", "bing".
func NewWebSearch(ctx context.Context, cfg config.WebSearchConfig) (tool.InvokableTool, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = "duckduckgo"
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultSearchResults
	}

	var timeout time.Duration
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("web_search: invalid timeout %q: %w", cfg.Timeout, err)
		}
		timeout = d
	}

	var (
		inner tool.InvokableTool
		err   error
	)
	switch provider {
	case "duckduckgo":
		inner, err = duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
			ToolName:   string(WebSearch),
			ToolDesc:   webSearchSpec.Description,
			MaxResults: maxResults,
			Timeout:    timeout,
		})
	case "google":
		inner, err = googlesearch.NewTool(ctx, &googlesearch.Config{
			APIKey:         cfg.GoogleAPIKey,
			SearchEngineID: cfg.GoogleCX,
			Num:            maxResults,
			ToolName:       string(WebSearch),
			ToolDesc:       webSearchSpec.Description,
		})
	case "bing":
		inner, err = bingsearch.NewTool(ctx, &bingsearch.Config{
			APIKey:     cfg.BingAPIKey,
			MaxResults: maxResults,
			ToolName:   string(WebSearch),
			ToolDesc:   webSearchSpec.Description,
			Timeout:    timeout,
		})
	default:
		return nil, fmt.Errorf("web_search: unknown provider %q", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("web_search: init %s: %w", provider, err)
	}
	return inner, nil
}

type webSearch struct {
	inner tool.InvokableTool
}

type webSearchArgs struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
}

func (a *webSearchArgs) validate() error {
	a.Query = strings.TrimSpace(a.Query)
	if a.Query == "" {
		return errors.New("query is required")
	}
	if a.NumResults <= 0 {
		a.NumResults = defaultSearchResults
	}
	return nil
}

// providerRequest carries the fields understood by the eino-ext search tools.
type providerRequest struct {
	Query string `json:"query"`
	Num   int    `json:"num,omitempty"`
}

func (w *webSearch) run(ctx context.Context, args webSearchArgs) (string, error) {
	if w.inner == nil {
		return "Error: web search is not configured", nil
	}

	req, err := json.Marshal(providerRequest{Query: args.Query, Num: args.NumResults})
	if err != nil {
		return "", fmt.Errorf("web_search: marshal request: %w", err)
	}

	out, err := w.inner.InvokableRun(ctx, string(req))
	if err != nil {
		return "Error: web search failed: " + err.Error(), nil
	}
	return fmt.Sprintf("Web search results for: %q\n\n%s", args.Query, out), nil
}
