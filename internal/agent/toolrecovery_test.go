package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/compose"
)

func endpoint(result string, err error) compose.InvokableToolEndpoint {
	return func(context.Context, *compose.ToolInput) (*compose.ToolOutput, error) {
		if err != nil {
			return nil, err
		}
		return &compose.ToolOutput{Result: result}, nil
	}
}

func TestToolRecovery_PassesResultThrough(t *testing.T) {
	wrapped := NewToolRecoveryMiddleware(ToolRecoveryConfig{}).Invokable(endpoint("8", nil))

	out, err := wrapped(context.Background(), &compose.ToolInput{Name: "calculator"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Result != "8" {
		t.Errorf("result = %q", out.Result)
	}
}

func TestToolRecovery_FillsEmptyResult(t *testing.T) {
	wrapped := NewToolRecoveryMiddleware(ToolRecoveryConfig{}).Invokable(endpoint("", nil))

	out, err := wrapped(context.Background(), &compose.ToolInput{Name: "shell_command"})
	if err != nil {
		t.Fatal(err)
	}
	if out.Result != emptyToolResult {
		t.Errorf("result = %q", out.Result)
	}
}

func TestToolRecovery_RetryBudgetPerTool(t *testing.T) {
	boom := errors.New("invalid arguments")
	wrapped := NewToolRecoveryMiddleware(ToolRecoveryConfig{MaxRetries: 2}).Invokable(endpoint("", boom))
	ctx := context.Background()

	out, err := wrapped(ctx, &compose.ToolInput{Name: "unit_converter"})
	if err != nil {
		t.Fatalf("first failure should be recovered: %v", err)
	}
	if !strings.HasPrefix(out.Result, "Error: ") || !strings.Contains(out.Result, "attempt 1/2") || !strings.Contains(out.Result, "invalid arguments") {
		t.Errorf("result = %q", out.Result)
	}

	// Another tool has its own budget.
	if _, err := wrapped(ctx, &compose.ToolInput{Name: "calculator"}); err != nil {
		t.Fatalf("calculator budget should be independent: %v", err)
	}

	if _, err := wrapped(ctx, &compose.ToolInput{Name: "unit_converter"}); !errors.Is(err, boom) {
		t.Fatalf("expected the original error after max retries, got %v", err)
	}
}
