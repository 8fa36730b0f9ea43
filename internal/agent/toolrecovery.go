package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cloudwego/eino/compose"
)

// DefaultMaxToolRetries is the number of failures per tool name that are
// returned to the model as text before the error stops the run.
const DefaultMaxToolRetries = 3

// emptyToolResult replaces empty tool output; chat APIs reject tool messages
// without content.
const emptyToolResult = "(no output)"

// ToolRecoveryConfig configures the tool-call error recovery middleware.
type ToolRecoveryConfig struct {
	// MaxRetries is the number of recoverable errors per tool name.
	// Zero means DefaultMaxToolRetries.
	MaxRetries int
}

// NewToolRecoveryMiddleware returns an Eino ToolMiddleware that converts tool
// errors into "Error: ..." results so the model can adjust its arguments.
// After MaxRetries failures of the same tool the error is propagated.
func NewToolRecoveryMiddleware(cfg ToolRecoveryConfig) compose.ToolMiddleware {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxToolRetries
	}

	var mu sync.Mutex
	counts := make(map[string]int)

	return compose.ToolMiddleware{
		Invokable: func(next compose.InvokableToolEndpoint) compose.InvokableToolEndpoint {
			return func(ctx context.Context, input *compose.ToolInput) (*compose.ToolOutput, error) {
				out, err := next(ctx, input)
				if err == nil {
					if out != nil && out.Result == "" {
						out.Result = emptyToolResult
					}
					return out, nil
				}

				mu.Lock()
				counts[input.Name]++
				count := counts[input.Name]
				mu.Unlock()

				if count >= maxRetries {
					slog.Error("tool recovery: max retries reached",
						"tool", input.Name, "attempt", count, "error", err)
					return nil, err
				}

				slog.Warn("tool recovery: returning error to model",
					"tool", input.Name, "attempt", count, "error", err)
				return &compose.ToolOutput{Result: formatToolError(input.Name, count, maxRetries, err)}, nil
			}
		},
	}
}

func formatToolError(toolName string, attempt, maxRetries int, err error) string {
	return fmt.Sprintf("Error: tool %q failed (attempt %d/%d): %v\nFix the arguments and retry, or answer without this tool.",
		toolName, attempt, maxRetries, err)
}
