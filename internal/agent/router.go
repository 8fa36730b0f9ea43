package agent

import (
	"context"

	"github.com/dohr-michael/skillrouter/internal/events"
	"github.com/dohr-michael/skillrouter/internal/skills"
	"github.com/dohr-michael/skillrouter/internal/tools"
)

// Routing is what the skill router decided.
type Routing struct {
	SkillName  string
	SkillText  string
	Found      bool
	Transcript *Transcript
}

// ExtractRouting finds the first load_skill result that loaded a skill.
// Lookup misses ("Skill 'x' not found ...") are skipped.
func ExtractRouting(t *Transcript) Routing {
	r := Routing{Transcript: t}
	for _, text := range t.ToolResults(string(tools.LoadSkill)) {
		if name, ok := skills.ParseLoadedName(text); ok {
			r.SkillName = name
			r.SkillText = text
			r.Found = true
			return r
		}
	}
	return r
}

// Router is stage one: it sees the skill summaries and the registry tools
// only, and is expected to call load_skill.
type Router struct {
	cfg Config
}

// NewRouter creates a skill router.
func NewRouter(cfg Config) *Router {
	return &Router{cfg: cfg.withDefaults()}
}

// Route runs the router over the query.
func (r *Router) Route(ctx context.Context, query string) (Routing, error) {
	t, err := stage(ctx, r.cfg, StageRouter, r.cfg.Instructions.Router, tools.RouterSet, r.cfg.Registry.PromptSection(), query)
	if err != nil {
		return Routing{Transcript: t}, err
	}

	routing := ExtractRouting(t)
	if len(t.ToolResults(string(tools.LoadSkill))) > 0 {
		r.cfg.Bus.Emit(ctx, events.SourceAgent, events.SkillLoadedPayload{
			SkillName: routing.SkillName,
			Stage:     StageRouter,
			Found:     routing.Found,
		})
	}
	return routing, nil
}

// Executor is stage two: it receives the query plus the skill guidance and
// calls the domain tools.
type Executor struct {
	cfg Config
}

// NewExecutor creates a task executor using cfg.ExecutorTools.
func NewExecutor(cfg Config) *Executor {
	return &Executor{cfg: cfg.withDefaults()}
}

// Execute answers the query following skillText.
func (e *Executor) Execute(ctx context.Context, query, skillText string) (*Transcript, error) {
	return stage(ctx, e.cfg, StageExecutor, e.cfg.Instructions.Executor, e.cfg.ExecutorTools, "", EnhancedQuery(query, skillText))
}

// TwoStage chains the skill router and the task executor.
type TwoStage struct {
	router   *Router
	executor *Executor
	bus      *events.Bus
}

// NewTwoStage creates the two-stage pipeline.
func NewTwoStage(cfg Config) *TwoStage {
	cfg = cfg.withDefaults()
	return &TwoStage{
		router:   &Router{cfg: cfg},
		executor: &Executor{cfg: cfg},
		bus:      cfg.Bus,
	}
}

func (p *TwoStage) Mode() string { return ModeTwoStage }

// Invoke routes the query to a skill, then executes it under that skill's
// guidance. A run where no skill was loaded yields NoSkillAnswer, not an error.
func (p *TwoStage) Invoke(ctx context.Context, query string) (*Result, error) {
	return observe(ctx, p.bus, ModeTwoStage, query, func(ctx context.Context) (*Result, error) {
		routing, err := p.router.Route(ctx, query)
		if err != nil {
			return nil, err
		}

		res := &Result{Stage1: messagesOf(routing.Transcript), Stage2: messagesOf(nil)}
		if !routing.Found {
			res.Answer = NoSkillAnswer
			return res, nil
		}
		res.SkillUsed = routing.SkillName

		t, err := p.executor.Execute(ctx, query, routing.SkillText)
		if err != nil {
			return res, err
		}
		res.Stage2 = messagesOf(t)
		res.Answer = t.Answer
		if res.Answer == "" {
			res.Answer = NoResponseAnswer
		}
		return res, nil
	})
}
