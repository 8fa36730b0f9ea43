package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/skillrouter/internal/events"
	"github.com/dohr-michael/skillrouter/internal/tools"
)

// NoSkillsSelected is the instruction text used when the selector picked
// nothing loadable.
const NoSkillsSelected = "No skills selected"

// SelectedSkill is one entry of the selector's JSON answer.
type SelectedSkill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type skillSelection struct {
	Skills []SelectedSkill `json:"skills"`
}

// Selection is the outcome of a selector call.
type Selection struct {
	Skills []SelectedSkill
	// Instructions holds the loaded text of the selected skills, or
	// NoSkillsSelected.
	Instructions string
	Messages     []*schema.Message
}

// ParseSelection extracts {"skills": [...]} from a model reply. Code fences
// and text around the JSON object are tolerated.
func ParseSelection(reply string) ([]SelectedSkill, error) {
	text := strings.TrimSpace(reply)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, errors.New("no JSON object in selector reply")
	}

	var sel skillSelection
	if err := json.Unmarshal([]byte(text[start:end+1]), &sel); err != nil {
		return nil, fmt.Errorf("decode selector reply: %w", err)
	}

	out := sel.Skills[:0]
	for _, s := range sel.Skills {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// Selector picks the single most relevant skill with one structured model
// call and no tools.
type Selector struct {
	cfg Config
}

// NewSelector creates a skill selector.
func NewSelector(cfg Config) *Selector {
	return &Selector{cfg: cfg.withDefaults()}
}

// Select asks the model for one skill and loads its text. A reply that
// cannot be parsed selects nothing.
func (s *Selector) Select(ctx context.Context, query string) (*Selection, error) {
	if s.cfg.Model == nil {
		return nil, errors.New("selector: no chat model")
	}

	start := time.Now()
	s.cfg.Bus.Emit(ctx, events.SourceAgent, events.StageStartedPayload{Stage: StageSelector})

	input := []*schema.Message{
		schema.SystemMessage(fillPlaceholder(s.cfg.Instructions.Selector, SkillsPlaceholder, s.cfg.Registry.Summaries())),
		schema.UserMessage(fmt.Sprintf(SelectorQuery, query)),
	}
	reply, err := s.cfg.Model.Generate(ctx, input)
	if err != nil {
		s.cfg.Bus.Emit(ctx, events.SourceAgent, events.StageCompletedPayload{
			Stage: StageSelector, Messages: len(input), Duration: time.Since(start), Error: err.Error(),
		})
		return nil, fmt.Errorf("%s: %w", StageSelector, err)
	}

	sel := &Selection{Messages: append(input, reply), Instructions: NoSkillsSelected}
	picked, perr := ParseSelection(reply.Content)
	if perr != nil {
		s.cfg.Bus.Emit(ctx, events.SourceAgent, events.StageCompletedPayload{
			Stage: StageSelector, Messages: len(sel.Messages), Duration: time.Since(start), Error: perr.Error(),
		})
		return sel, nil
	}

	// Only the first choice is used, and only when the registry knows it.
	if len(picked) > 0 {
		if _, ferr := s.cfg.Registry.Find(picked[0].Name); ferr == nil {
			sel.Skills = picked[:1]
			sel.Instructions = "Skills:\n" + s.cfg.Registry.LoadText(picked[0].Name)
		}
		s.cfg.Bus.Emit(ctx, events.SourceAgent, events.SkillLoadedPayload{
			SkillName: picked[0].Name,
			Stage:     StageSelector,
			Found:     len(sel.Skills) > 0,
		})
	}

	s.cfg.Bus.Emit(ctx, events.SourceAgent, events.StageCompletedPayload{
		Stage:    StageSelector,
		Messages: len(sel.Messages),
		Output:   events.Truncate(reply.Content, 500),
		Duration: time.Since(start),
	})
	return sel, nil
}

// SkillFirst selects a skill up front, then runs an executor with the
// Kubernetes tools and the skill instructions in its system prompt.
type SkillFirst struct {
	cfg      Config
	selector *Selector
	set      tools.Set
}

// NewSkillFirst creates the skill-first pipeline.
func NewSkillFirst(cfg Config) *SkillFirst {
	cfg = cfg.withDefaults()
	return &SkillFirst{cfg: cfg, selector: &Selector{cfg: cfg}, set: tools.KubernetesSet}
}

func (p *SkillFirst) Mode() string { return ModeSkillFirst }

// Invoke selects a skill and executes the query under its instructions.
func (p *SkillFirst) Invoke(ctx context.Context, query string) (*Result, error) {
	return observe(ctx, p.cfg.Bus, ModeSkillFirst, query, func(ctx context.Context) (*Result, error) {
		sel, err := p.selector.Select(ctx, query)
		if err != nil {
			return nil, err
		}

		res := &Result{Stage1: sel.Messages, Stage2: messagesOf(nil)}
		if len(sel.Skills) == 0 {
			res.Answer = NoSkillAnswer
			return res, nil
		}
		res.SkillUsed = sel.Skills[0].Name

		instruction := fillPlaceholder(p.cfg.Instructions.SkillFirst, InstructionsPlaceholder, sel.Instructions)
		t, err := stage(ctx, p.cfg, StageExecutor, instruction, p.set, "", query)
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
