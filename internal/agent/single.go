package agent

import (
	"context"

	"github.com/dohr-michael/skillrouter/internal/tools"
)

// SkillAgent is a single agent that holds the registry tools and answers
// directly, loading skills as it sees fit.
type SkillAgent struct {
	cfg Config
}

// NewSkillAgent creates a single-stage skill agent.
func NewSkillAgent(cfg Config) *SkillAgent {
	return &SkillAgent{cfg: cfg.withDefaults()}
}

func (a *SkillAgent) Mode() string { return ModeSkillAgent }

// Invoke answers the query. SkillUsed is the first skill the agent loaded.
func (a *SkillAgent) Invoke(ctx context.Context, query string) (*Result, error) {
	return observe(ctx, a.cfg.Bus, ModeSkillAgent, query, func(ctx context.Context) (*Result, error) {
		t, err := stage(ctx, a.cfg, StageAgent, a.cfg.Instructions.SkillAgent, tools.RouterSet, a.cfg.Registry.PromptSection(), query)
		res := &Result{Stage1: messagesOf(t), Stage2: messagesOf(nil)}
		if err != nil {
			return res, err
		}
		res.SkillUsed = ExtractRouting(t).SkillName
		res.Answer = t.Answer
		if res.Answer == "" {
			res.Answer = NoResponseAnswer
		}
		return res, nil
	})
}

// ShellAgent answers with the shell_command tool only.
type ShellAgent struct {
	cfg Config
}

// NewShellAgent creates a shell agent.
func NewShellAgent(cfg Config) *ShellAgent {
	return &ShellAgent{cfg: cfg.withDefaults()}
}

func (a *ShellAgent) Mode() string { return ModeShell }

// Invoke answers the query, running shell commands as needed.
func (a *ShellAgent) Invoke(ctx context.Context, query string) (*Result, error) {
	return observe(ctx, a.cfg.Bus, ModeShell, query, func(ctx context.Context) (*Result, error) {
		t, err := stage(ctx, a.cfg, StageAgent, a.cfg.Instructions.Shell, tools.ShellSet, "", query)
		res := &Result{Stage1: messagesOf(t), Stage2: messagesOf(nil)}
		if err != nil {
			return res, err
		}
		res.Answer = t.Answer
		if res.Answer == "" {
			res.Answer = NoResponseAnswer
		}
		return res, nil
	})
}

// NewPipeline returns the pipeline for a mode name.
func NewPipeline(mode string, cfg Config) (Pipeline, bool) {
	switch mode {
	case ModeTwoStage, "":
		return NewTwoStage(cfg), true
	case ModeSkillFirst:
		return NewSkillFirst(cfg), true
	case ModeSkillAgent:
		return NewSkillAgent(cfg), true
	case ModeShell:
		return NewShellAgent(cfg), true
	default:
		return nil, false
	}
}
