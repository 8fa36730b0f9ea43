package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

var shellCommandSpec = Spec{
	Name:        string(ShellCommand),
	Description: "Execute a POSIX shell command and return its output. Returns stdout, or stderr when stdout is empty.",
	Parameters: map[string]Param{
		"command": {
			Type:        "string",
			Description: "The shell command to execute",
			Required:    true,
		},
	},
	Dangerous: true,
}

type shellTool struct {
	timeout time.Duration
	dir     string
}

type shellArgs struct {
	Command string `json:"command"`
}

func (a *shellArgs) validate() error {
	if strings.TrimSpace(a.Command) == "" {
		return errors.New("command is required")
	}
	return nil
}

// run interprets the command in-process. Failures are reported as text.
func (t *shellTool) run(ctx context.Context, args shellArgs) (string, error) {
	slog.Info("shell_command: executing", "command", args.Command, "timeout", t.timeout)

	prog, err := syntax.NewParser().Parse(strings.NewReader(args.Command), "")
	if err != nil {
		return "Error: parse error: " + err.Error(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(strings.NewReader(""), &stdout, &stderr),
	}
	if t.dir != "" {
		opts = append(opts, interp.Dir(t.dir))
	}
	runner, err := interp.New(opts...)
	if err != nil {
		return "", fmt.Errorf("shell_command: create runner: %w", err)
	}

	err = runner.Run(ctx, prog)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return timeoutMessage(t.timeout), nil
	}

	out := stdout.String()
	if out == "" {
		out = stderr.String()
	}
	if err != nil {
		var status interp.ExitStatus
		if !errors.As(err, &status) {
			return "Error: " + err.Error(), nil
		}
		slog.Debug("shell_command: non-zero exit", "status", uint8(status))
	}
	return out, nil
}

func timeoutMessage(d time.Duration) string {
	return fmt.Sprintf("Error: Command timed out after %d seconds", int(d.Seconds()))
}
