package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/skillrouter/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "skillrouter",
		Usage: "Route queries to skills and answer them with tool-using agents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
			&cli.StringFlag{
				Name:  "skills-dir",
				Usage: "Skills directory (overrides skills.dir)",
			},
		},
		Commands: []*cli.Command{
			NewSkillsCommand(),
			NewToolsCommand(),
			NewAskCommand(),
			NewSelectCommand(),
			NewChatCommand(),
			NewBashCommand(),
			NewHistoryCommand(),
			NewMCPServeCommand(),
			NewServeCommand(),
			NewStatusCommand(),
		},
	}
}
