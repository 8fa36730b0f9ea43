package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/skillrouter/internal/agent"
	"github.com/dohr-michael/skillrouter/internal/events"
	"github.com/dohr-michael/skillrouter/internal/gateway/ws"
)

func pipelineFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:    "model",
			Aliases: []string{"m"},
			Usage:   "Model provider to use (empty = models.default)",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Print only the answer",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the full result as JSON",
		},
		&cli.StringFlag{
			Name:  "gateway",
			Usage: "Run on a gateway instead of locally (e.g. ws://127.0.0.1:18421/api/ws)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Overall time limit",
			Value: 5 * time.Minute,
		},
	}, extra...)
}

// NewAskCommand returns the ask subcommand (two-stage router/executor).
func NewAskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Route the query to a skill, then execute it with the domain tools",
		ArgsUsage: "<query>",
		Flags:     pipelineFlags(),
		Action:    pipelineAction(agent.ModeTwoStage),
	}
}

// NewSelectCommand returns the select subcommand (skill-first pipeline).
func NewSelectCommand() *cli.Command {
	return &cli.Command{
		Name:      "select",
		Usage:     "Pick one skill with a structured model call, then execute with the Kubernetes tools",
		ArgsUsage: "<query>",
		Flags: pipelineFlags(&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Only show the selected skill",
		}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("dry-run") {
				return runSelectDryRun(ctx, cmd)
			}
			return pipelineAction(agent.ModeSkillFirst)(ctx, cmd)
		},
	}
}

// NewChatCommand returns the chat subcommand (single skill agent).
func NewChatCommand() *cli.Command {
	return &cli.Command{
		Name:      "chat",
		Usage:     "Answer with one agent that can list and load skills",
		ArgsUsage: "<query>",
		Flags:     pipelineFlags(),
		Action:    pipelineAction(agent.ModeSkillAgent),
	}
}

// NewBashCommand returns the bash subcommand (shell agent).
func NewBashCommand() *cli.Command {
	return &cli.Command{
		Name:      "bash",
		Usage:     "Answer with an agent that runs shell commands",
		ArgsUsage: "<query>",
		Flags:     pipelineFlags(),
		Action:    pipelineAction(agent.ModeShell),
	}
}

func queryArg(cmd *cli.Command) (string, error) {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return "", fmt.Errorf("usage: skillrouter %s <query>", cmd.Name)
	}
	return query, nil
}

func pipelineAction(mode string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		setupLogging(cmd, slog.LevelWarn)

		query, err := queryArg(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
		defer cancel()

		if url := cmd.String("gateway"); url != "" {
			return runRemote(ctx, cmd, url, mode, query)
		}

		a, err := newApp(ctx, cmd, appOptions{persist: true})
		if err != nil {
			return err
		}
		defer a.close()

		cfg, err := a.agentConfig(ctx, cmd.String("model"))
		if err != nil {
			return err
		}
		p, ok := agent.NewPipeline(mode, cfg)
		if !ok {
			return fmt.Errorf("unknown mode %q", mode)
		}

		runID := events.NewRunID()
		ctx = events.ContextWithRunID(ctx, runID)
		slog.Debug("run started", "mode", mode, "run_id", runID, "skills", a.skills.Len())

		res, err := p.Invoke(ctx, query)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%s: timed out after %s", mode, cmd.Duration("timeout"))
			}
			return err
		}
		return printResult(stdout(cmd), cmd, runID, res)
	}
}

func printResult(out io.Writer, cmd *cli.Command, runID string, res *agent.Result) error {
	if cmd.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			RunID string `json:"run_id"`
			*agent.Result
		}{runID, res})
	}

	if !cmd.Bool("quiet") {
		st := newStyler(out, false)
		skill := res.SkillUsed
		if skill == "" {
			skill = "none"
		}
		fmt.Fprintln(out, st.render(mutedStyle, fmt.Sprintf("run %s · skill: %s", runID, skill)))
	}
	fmt.Fprintln(out, renderMarkdown(out, res.Answer))
	return nil
}

func runSelectDryRun(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd, slog.LevelWarn)

	query, err := queryArg(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	cfg, err := a.agentConfig(ctx, cmd.String("model"))
	if err != nil {
		return err
	}
	sel, err := agent.NewSelector(cfg).Select(ctx, query)
	if err != nil {
		return err
	}

	out := stdout(cmd)
	if len(sel.Skills) == 0 {
		fmt.Fprintln(out, agent.NoSkillsSelected)
		return nil
	}
	st := newStyler(out, false)
	for _, s := range sel.Skills {
		fmt.Fprintf(out, "%s  %s\n", st.render(nameStyle, s.Name), st.render(mutedStyle, s.Description))
	}
	return nil
}

// runRemote sends the query to a running gateway and prints progress of the
// run on stderr.
func runRemote(ctx context.Context, cmd *cli.Command, url, mode, query string) error {
	r, err := ws.Dial(ctx, url)
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer r.Close()

	errOut := cmd.Root().ErrWriter
	if errOut == nil {
		errOut = os.Stderr
	}
	st := newStyler(errOut, false)

	var runID string
	payload, err := r.Ask(ctx, mode, query, func(e events.Event) {
		runID = e.RunID
		if cmd.Bool("quiet") || cmd.Bool("json") {
			return
		}
		switch e.Type {
		case events.EventSkillLoaded, events.EventToolCall, events.EventStageStarted:
			fmt.Fprintln(errOut, st.render(mutedStyle, "· "+string(e.Type)+" "+describeEvent(e)))
		}
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s: timed out after %s", mode, cmd.Duration("timeout"))
		}
		return err
	}

	var res agent.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return fmt.Errorf("decode gateway result: %w", err)
	}
	return printResult(stdout(cmd), cmd, runID, &res)
}
