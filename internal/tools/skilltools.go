package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/dohr-michael/skillrouter/internal/skills"
)

var listSkillsSpec = Spec{
	Name:        string(ListSkills),
	Description: "List all available skills with their names and descriptions. Use this to discover which skill fits the user's request.",
}

var loadSkillSpec = Spec{
	Name:        string(LoadSkill),
	Description: "Load a skill's full instructions into context. Use this when you need detailed guidance for a specific type of request.",
	Parameters: map[string]Param{
		"skill_name": {
			Type:        "string",
			Description: "The exact name of the skill to load",
			Required:    true,
		},
	},
}

type skillTools struct {
	registry *skills.Registry
}

type listSkillsArgs struct{}

func (t *skillTools) list(_ context.Context, _ listSkillsArgs) (string, error) {
	if t.registry.Len() == 0 {
		return "No skills available.", nil
	}
	return t.registry.Summaries(), nil
}

type loadSkillArgs struct {
	SkillName string `json:"skill_name"`
}

func (a *loadSkillArgs) validate() error {
	a.SkillName = strings.TrimSpace(a.SkillName)
	if a.SkillName == "" {
		return errors.New("skill_name is required")
	}
	return nil
}

func (t *skillTools) load(_ context.Context, args loadSkillArgs) (string, error) {
	return t.registry.LoadText(args.SkillName), nil
}
