package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/skillrouter/internal/events"
	"github.com/dohr-michael/skillrouter/internal/skills"
	"github.com/dohr-michael/skillrouter/internal/tools"
)

// Fallback answers returned instead of Go errors when a stage produced
// nothing usable.
const (
	NoSkillAnswer    = "Error: Could not load appropriate skill"
	NoResponseAnswer = "Error: Could not generate response"
)

// Run modes, as reported in run events.
const (
	ModeTwoStage   = "two-stage"
	ModeSkillFirst = "skill-first"
	ModeSkillAgent = "skill-agent"
	ModeShell      = "shell"
)

// Stage names, as reported in stage events.
const (
	StageRouter   = "router"
	StageExecutor = "executor"
	StageSelector = "selector"
	StageAgent    = "agent"
)

// Config carries the collaborators shared by every agent.
type Config struct {
	Model         model.ToolCallingChatModel
	ModelName     string // reported in model.call events
	Registry      *skills.Registry
	Dispatcher    *tools.Dispatcher
	Bus           *events.Bus // may be nil
	Instructions  Instructions
	MaxIterations int
	// ExecutorTools replaces tools.ExecutorSet for the task executor.
	ExecutorTools tools.Set
}

func (c Config) withDefaults() Config {
	c.Model = observeModel(c.Model, c.Bus, c.ModelName)
	if c.Registry == nil {
		c.Registry = skills.NewRegistry(nil)
	}
	if c.Dispatcher == nil {
		c.Dispatcher = tools.NewDispatcher(c.Registry, tools.Options{Bus: c.Bus})
	}
	defaults := DefaultInstructions()
	if c.Instructions.Router == "" {
		c.Instructions.Router = defaults.Router
	}
	if c.Instructions.Executor == "" {
		c.Instructions.Executor = defaults.Executor
	}
	if c.Instructions.SkillAgent == "" {
		c.Instructions.SkillAgent = defaults.SkillAgent
	}
	if c.Instructions.Shell == "" {
		c.Instructions.Shell = defaults.Shell
	}
	if c.Instructions.Selector == "" {
		c.Instructions.Selector = defaults.Selector
	}
	if c.Instructions.SkillFirst == "" {
		c.Instructions.SkillFirst = defaults.SkillFirst
	}
	if len(c.ExecutorTools) == 0 {
		c.ExecutorTools = tools.ExecutorSet
	}
	return c
}

// Result is the outcome of one pipeline invocation.
type Result struct {
	Answer    string            `json:"answer"`
	SkillUsed string            `json:"skill_used,omitempty"`
	Stage1    []*schema.Message `json:"stage1_messages"`
	Stage2    []*schema.Message `json:"stage2_messages"`
}

// Pipeline answers a query with one of the agent modes.
type Pipeline interface {
	Mode() string
	Invoke(ctx context.Context, query string) (*Result, error)
}

// stage runs one agent over a single user message and reports it on the bus.
func stage(ctx context.Context, cfg Config, name, instruction string, set tools.Set, extra string, input string) (*Transcript, error) {
	start := time.Now()
	cfg.Bus.Emit(ctx, events.SourceAgent, events.StageStartedPayload{Stage: name, Tools: set.Names()})

	t, err := runStage(ctx, cfg, name, instruction, set, extra, input)

	completed := events.StageCompletedPayload{
		Stage:    name,
		Messages: t.Len(),
		Duration: time.Since(start),
	}
	if t != nil {
		completed.Output = events.Truncate(t.Answer, 500)
	}
	if err != nil {
		completed.Error = err.Error()
	}
	cfg.Bus.Emit(ctx, events.SourceAgent, completed)

	if err != nil {
		return t, fmt.Errorf("%s: %w", name, err)
	}
	slog.Debug("stage completed", "stage", name, "messages", t.Len(), "duration", time.Since(start))
	return t, nil
}

func runStage(ctx context.Context, cfg Config, name, instruction string, set tools.Set, extra string, input string) (*Transcript, error) {
	agentTools, err := cfg.Dispatcher.Tools(set)
	if err != nil {
		return nil, err
	}
	runner, err := NewAgent(ctx, cfg.Model, instruction, agentTools, Options{
		Name:                  name,
		Description:           name + " agent",
		MaxIterations:         cfg.MaxIterations,
		AdditionalInstruction: extra,
		UnknownTools:          cfg.Dispatcher.UnknownToolHandler(set),
	})
	if err != nil {
		return nil, err
	}
	return Run(ctx, runner, []*schema.Message{schema.UserMessage(input)})
}

// withRun tags ctx with a fresh run ID unless it already carries one.
func withRun(ctx context.Context) context.Context {
	if events.RunIDFromContext(ctx) != "" {
		return ctx
	}
	return events.ContextWithRunID(ctx, events.NewRunID())
}

// observe wraps a pipeline invocation with run.started / run.completed events.
func observe(ctx context.Context, bus *events.Bus, mode, query string, fn func(context.Context) (*Result, error)) (*Result, error) {
	ctx = withRun(ctx)
	start := time.Now()
	bus.Emit(ctx, events.SourceAgent, events.RunStartedPayload{Mode: mode, Query: query})

	res, err := fn(ctx)

	completed := events.RunCompletedPayload{Mode: mode, Query: query, Duration: time.Since(start)}
	if res != nil {
		completed.SkillUsed = res.SkillUsed
		completed.Answer = events.Truncate(res.Answer, 1000)
	}
	if err != nil {
		completed.Error = err.Error()
	}
	bus.Emit(ctx, events.SourceAgent, completed)

	slog.Info("run completed", "mode", mode, "run_id", events.RunIDFromContext(ctx),
		"skill", completed.SkillUsed, "duration", completed.Duration, "error", err)
	return res, err
}

func messagesOf(t *Transcript) []*schema.Message {
	if t == nil {
		return []*schema.Message{}
	}
	return t.Messages
}
