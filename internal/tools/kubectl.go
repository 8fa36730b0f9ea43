package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"mvdan.cc/sh/v3/shell"
)

// Runner executes an external program and captures its output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct{}

// Run executes name with args. A non-zero exit yields an *exec.ExitError.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// exitCoder matches *exec.ExitError and test doubles.
type exitCoder interface {
	ExitCode() int
}

const defaultNamespace = "default"

var kubectlExecSpec = Spec{
	Name: string(KubectlExec),
	Description: "Execute a kubectl command and return its output. " +
		"Pass the subcommand and arguments (e.g. \"get pods\", \"describe deployment my-app\"). " +
		"Prefer read-only commands (get, describe, logs).",
	Parameters: map[string]Param{
		"command": {
			Type:        "string",
			Description: "The kubectl subcommand and arguments, without the leading 'kubectl'",
			Required:    true,
		},
		"namespace": {
			Type:        "string",
			Description: "The Kubernetes namespace to use",
			Default:     defaultNamespace,
		},
	},
	Dangerous: true,
}

type kubectl struct {
	path    string
	runner  Runner
	timeout time.Duration
}

type kubectlArgs struct {
	Command   string `json:"command"`
	Namespace string `json:"namespace"`
}

func (a *kubectlArgs) validate() error {
	a.Command = strings.TrimSpace(a.Command)
	if a.Command == "" {
		return errors.New("command is required")
	}
	if a.Namespace == "" {
		a.Namespace = defaultNamespace
	}
	return nil
}

// keepVars leaves $VAR references unexpanded.
func keepVars(name string) string { return "$" + name }

// kubectlArgv splits the command into arguments and adds -n when the
// namespace is not the default one and the command does not choose its own.
func kubectlArgv(command, namespace string) ([]string, error) {
	fields, err := shell.Fields(command, keepVars)
	if err != nil {
		return nil, err
	}
	if len(fields) > 0 && fields[0] == "kubectl" {
		fields = fields[1:]
	}
	if namespace == defaultNamespace || hasNamespaceFlag(fields) {
		return fields, nil
	}
	return append([]string{"-n", namespace}, fields...), nil
}

func hasNamespaceFlag(fields []string) bool {
	for _, f := range fields {
		switch {
		case f == "-n", f == "--namespace", f == "-A", f == "--all-namespaces":
			return true
		case strings.HasPrefix(f, "-n="), strings.HasPrefix(f, "--namespace="):
			return true
		}
	}
	return false
}

func (k *kubectl) exec(ctx context.Context, args kubectlArgs) (string, error) {
	argv, err := kubectlArgv(args.Command, args.Namespace)
	if err != nil {
		return "Error: could not parse command: " + err.Error(), nil
	}

	slog.Info("kubectl_exec: executing", "args", argv, "timeout", k.timeout)

	stdout, stderr, err := k.run(ctx, argv...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return timeoutMessage(k.timeout), nil
		}
		var ec exitCoder
		if errors.As(err, &ec) {
			return "Error: " + string(stderr), nil
		}
		return "Error executing kubectl command: " + err.Error(), nil
	}
	return string(stdout), nil
}

// run invokes kubectl under the command timeout. A timeout is reported as
// context.DeadlineExceeded.
func (k *kubectl) run(ctx context.Context, args ...string) ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()

	stdout, stderr, err := k.runner.Run(ctx, k.path, args...)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return stdout, stderr, context.DeadlineExceeded
	}
	return stdout, stderr, err
}

// output runs kubectl and folds a failure into an error carrying stderr.
func (k *kubectl) output(ctx context.Context, args ...string) ([]byte, error) {
	stdout, stderr, err := k.run(ctx, args...)
	if err != nil {
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout, nil
}
