// Package agent runs skill-guided agents on the Eino ADK: a skill router and a
// task executor chained into a two-stage pipeline, a structured skill
// selector, and single-stage skill and shell agents.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
)

// DefaultMaxIterations bounds the ReAct loop of every agent.
const DefaultMaxIterations = 10

// Options configures a single agent.
type Options struct {
	Name          string
	Description   string
	MaxIterations int // 0 = DefaultMaxIterations
	// AdditionalInstruction is appended to the instruction on every model call.
	AdditionalInstruction string
	// UnknownTools answers calls to tools the agent was not given. Nil
	// means an "Error: unknown tool" reply naming the agent's tools.
	UnknownTools func(ctx context.Context, name, input string) (string, error)
}

// NewAgent creates a non-streaming ChatModelAgent runner with the given tools.
// Tool errors are turned into text by the recovery middleware so the model can
// retry. Calls to tools outside the list are answered by opts.UnknownTools
// and never stop the run.
func NewAgent(ctx context.Context, chatModel model.ToolCallingChatModel, instruction string, tools []tool.BaseTool, opts Options) (*adk.Runner, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("agent %q: no chat model", opts.Name)
	}
	if opts.Name == "" {
		opts.Name = "skillrouter"
	}
	if opts.Description == "" {
		opts.Description = "Skill-guided assistant"
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}

	middlewares := []adk.AgentMiddleware{{
		WrapToolCall: NewToolRecoveryMiddleware(ToolRecoveryConfig{}),
	}}
	if opts.AdditionalInstruction != "" {
		middlewares = append(middlewares, adk.AgentMiddleware{
			AdditionalInstruction: opts.AdditionalInstruction,
		})
	}

	cfg := &adk.ChatModelAgentConfig{
		Name:          opts.Name,
		Description:   opts.Description,
		Instruction:   instruction,
		Model:         chatModel,
		MaxIterations: opts.MaxIterations,
		Middlewares:   middlewares,
	}
	if len(tools) > 0 {
		cfg.ToolsConfig.Tools = tools
		if opts.UnknownTools == nil {
			opts.UnknownTools = unknownToolReply(ctx, tools)
		}
		cfg.ToolsConfig.UnknownToolsHandler = opts.UnknownTools
	}

	a, err := adk.NewChatModelAgent(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create agent %q: %w", opts.Name, err)
	}

	return adk.NewRunner(ctx, adk.RunnerConfig{
		Agent:           a,
		EnableStreaming: false,
	}), nil
}

func unknownToolReply(ctx context.Context, tools []tool.BaseTool) func(context.Context, string, string) (string, error) {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		if info, err := t.Info(ctx); err == nil {
			names = append(names, info.Name)
		}
	}
	available := strings.Join(names, ", ")
	return func(_ context.Context, name, _ string) (string, error) {
		return fmt.Sprintf("Error: unknown tool %q (available: %s)", name, available), nil
	}
}
