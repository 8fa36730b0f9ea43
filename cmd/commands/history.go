package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/dohr-michael/skillrouter/internal/events"
	"github.com/dohr-michael/skillrouter/internal/storage"
)

// NewHistoryCommand returns the history subcommand.
func NewHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect past runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Number of runs to show",
						Value:   storage.DefaultRecentLimit,
					},
				},
				Action: runHistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show the event log of a run",
				ArgsUsage: "<run_id>",
				Action:    runHistoryShow,
			},
		},
		DefaultCommand: "list",
	}
}

func runHistoryList(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd, slog.LevelWarn)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	h, err := storage.OpenHistory(ctx, cfg.Storage.HistoryDB)
	if err != nil {
		return err
	}
	defer h.Close()

	runs, err := h.Recent(ctx, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	return printRuns(stdout(cmd), runs)
}

func printRuns(out io.Writer, runs []storage.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tMODE\tSKILL\tDURATION\tWHEN\tQUERY")
	for _, r := range runs {
		skill := r.SkillUsed
		if skill == "" {
			skill = "-"
		}
		query := oneLine(r.Query, 60)
		if r.Error != "" {
			query = "[error] " + query
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunID,
			r.Mode,
			skill,
			r.Duration.Round(time.Millisecond),
			r.CreatedAt.Format("2006-01-02 15:04"),
			query,
		)
	}
	return w.Flush()
}

func runHistoryShow(_ context.Context, cmd *cli.Command) error {
	setupLogging(cmd, slog.LevelWarn)

	runID := cmd.Args().First()
	if runID == "" {
		return errors.New("usage: skillrouter history show <run_id>")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	evts, err := storage.ReadLog(cfg.Storage.EventLogDir, runID)
	if err != nil && len(evts) == 0 {
		return fmt.Errorf("read event log: %w", err)
	}
	if err != nil {
		slog.Warn("event log partially read", "run_id", runID, "error", err)
	}

	out := stdout(cmd)
	for _, e := range evts {
		fmt.Fprintf(out, "%s  %-15s %s\n", e.Timestamp.Format("15:04:05.000"), e.Type, describeEvent(e))
	}
	return nil
}

// describeEvent summarizes an event payload on one line.
func describeEvent(e events.Event) string {
	switch e.Type {
	case events.EventRunStarted:
		if p, ok := events.ExtractPayload[events.RunStartedPayload](e); ok {
			return fmt.Sprintf("mode=%s query=%q", p.Mode, oneLine(p.Query, 80))
		}
	case events.EventRunCompleted:
		if p, ok := events.ExtractPayload[events.RunCompletedPayload](e); ok {
			if p.Error != "" {
				return fmt.Sprintf("error=%q duration=%s", p.Error, p.Duration)
			}
			return fmt.Sprintf("skill=%s duration=%s answer=%q", p.SkillUsed, p.Duration, oneLine(p.Answer, 80))
		}
	case events.EventStageStarted:
		if p, ok := events.ExtractPayload[events.StageStartedPayload](e); ok {
			return fmt.Sprintf("stage=%s tools=%s", p.Stage, strings.Join(p.Tools, ","))
		}
	case events.EventStageCompleted:
		if p, ok := events.ExtractPayload[events.StageCompletedPayload](e); ok {
			if p.Error != "" {
				return fmt.Sprintf("stage=%s error=%q", p.Stage, p.Error)
			}
			return fmt.Sprintf("stage=%s messages=%d duration=%s", p.Stage, p.Messages, p.Duration)
		}
	case events.EventSkillLoaded:
		if p, ok := events.ExtractPayload[events.SkillLoadedPayload](e); ok {
			return fmt.Sprintf("skill=%s found=%t", p.SkillName, p.Found)
		}
	case events.EventToolCall:
		if p, ok := events.ExtractPayload[events.ToolCallPayload](e); ok {
			if p.Error != "" {
				return fmt.Sprintf("%s %s error=%q", p.Name, p.Status, p.Error)
			}
			return fmt.Sprintf("%s %s", p.Name, p.Status)
		}
	case events.EventModelCall:
		if p, ok := events.ExtractPayload[events.ModelCallPayload](e); ok {
			switch p.Phase {
			case events.ModelCallError:
				return fmt.Sprintf("%s error=%q", p.Model, p.Error)
			case events.ModelCallResponse:
				return fmt.Sprintf("%s response tool_calls=%d tokens=%d/%d", p.Model, p.ToolCalls, p.TokensInput, p.TokensOutput)
			}
			return fmt.Sprintf("%s request messages=%d", p.Model, p.Messages)
		}
	}
	return fmt.Sprintf("%v", e.Payload)
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	return events.Truncate(s, n)
}
