package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
)

// NewSkillsCommand returns the skills subcommand.
func NewSkillsCommand() *cli.Command {
	return &cli.Command{
		Name:  "skills",
		Usage: "Inspect the skill registry",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List available skills",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "plain",
						Usage: "Disable colours",
					},
				},
				Action: runSkillsList,
			},
			{
				Name:      "show",
				Usage:     "Print the full content of a skill",
				ArgsUsage: "<name>",
				Action:    runSkillsShow,
			},
		},
		DefaultCommand: "list",
	}
}

func runSkillsList(_ context.Context, cmd *cli.Command) error {
	setupLogging(cmd, slog.LevelWarn)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg := loadSkills(cfg)

	out := stdout(cmd)
	if reg.Len() == 0 {
		fmt.Fprintf(out, "No skills found in %s.\n", cfg.Skills.Dir)
		return nil
	}

	st := newStyler(out, cmd.Bool("plain"))
	fmt.Fprintln(out, st.render(headerStyle, fmt.Sprintf("%d skills in %s", reg.Len(), cfg.Skills.Dir)))
	for _, s := range reg.All() {
		fmt.Fprintf(out, "  %s  %s\n", st.render(nameStyle, s.Name), st.render(mutedStyle, s.Description))
	}
	return nil
}

func runSkillsShow(_ context.Context, cmd *cli.Command) error {
	setupLogging(cmd, slog.LevelWarn)

	name := cmd.Args().First()
	if name == "" {
		return errors.New("usage: skillrouter skills show <name>")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	skill, err := loadSkills(cfg).Find(name)
	if err != nil {
		return err
	}

	out := stdout(cmd)
	fmt.Fprintln(out, renderMarkdown(out, fmt.Sprintf("# %s\n\n_%s_\n\n%s", skill.Name, skill.Description, skill.Content)))
	return nil
}
