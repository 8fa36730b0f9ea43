package commands

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/skillrouter/internal/tools"
)

// NewToolsCommand returns the tools subcommand.
func NewToolsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tools",
		Usage: "List the tools agents can call",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Show parameters",
			},
		},
		Action: runTools,
	}
}

func runTools(_ context.Context, cmd *cli.Command) error {
	setupLogging(cmd, slog.LevelWarn)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	d := tools.NewDispatcher(loadSkills(cfg), tools.Options{
		CommandTimeout: cfg.Tools.CommandTimeout.Duration(),
		KubectlPath:    cfg.Tools.KubectlPath,
	})

	out := stdout(cmd)
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDANGEROUS\tDESCRIPTION")
	for _, spec := range d.Specs() {
		dangerous := "-"
		if spec.Dangerous {
			dangerous = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", spec.Name, dangerous, firstSentence(spec.Description))
		if cmd.Bool("verbose") {
			names := make([]string, 0, len(spec.Parameters))
			for n := range spec.Parameters {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				p := spec.Parameters[n]
				req := ""
				if p.Required {
					req = " (required)"
				}
				fmt.Fprintf(w, "  %s\t%s%s\t%s\n", n, p.Type, req, p.Description)
			}
		}
	}
	return w.Flush()
}

func firstSentence(s string) string {
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '.' && s[i+1] == ' ' {
			return s[:i+1]
		}
	}
	return s
}
