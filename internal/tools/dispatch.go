package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"

	"github.com/dohr-michael/skillrouter/internal/events"
	"github.com/dohr-michael/skillrouter/internal/skills"
)

// ID names a tool in the closed set.
type ID string

const (
	ListSkills   ID = "list_skills"
	LoadSkill    ID = "load_skill"
	ShellCommand ID = "shell_command"
	KubectlExec  ID = "kubectl_exec"

	ListPods       ID = "list_pods"
	GetPodDetails  ID = "get_pod_details"
	GetPodLogs     ID = "get_pod_logs"
	ListNamespaces ID = "list_namespaces"

	ListCustomerNotificationPods   ID = "list_customer_notification_pods"
	ListCustomerNotifications      ID = "list_customer_notifications"
	GetCustomerNotificationDetails ID = "get_customer_notification_details"

	Calculator    ID = "calculator"
	UnitConverter ID = "unit_converter"
	FileReader    ID = "file_reader"
	WebSearch     ID = "web_search"
)

var allIDs = []ID{
	ListSkills, LoadSkill,
	ShellCommand, KubectlExec,
	ListPods, GetPodDetails, GetPodLogs, ListNamespaces,
	ListCustomerNotificationPods, ListCustomerNotifications, GetCustomerNotificationDetails,
	Calculator, UnitConverter, FileReader, WebSearch,
}

// IDs returns every tool in the closed set, in declaration order.
func IDs() []ID {
	out := make([]ID, len(allIDs))
	copy(out, allIDs)
	return out
}

// ParseID resolves a tool name to its ID.
func ParseID(name string) (ID, bool) {
	for _, id := range allIDs {
		if string(id) == name {
			return id, true
		}
	}
	return "", false
}

// ErrUnknownTool is matched by errors.Is for every UnknownToolError.
var ErrUnknownTool = errors.New("unknown tool")

// UnknownToolError is returned when a call names a tool outside the closed set.
type UnknownToolError struct {
	Name  string
	Known []string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool %q (available: %s)", e.Name, strings.Join(e.Known, ", "))
}

func (e *UnknownToolError) Unwrap() error { return ErrUnknownTool }

// ArgumentError is returned when a call's arguments cannot be decoded or
// fail validation.
type ArgumentError struct {
	Tool ID
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: invalid arguments: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Handler executes one tool call from its raw JSON arguments.
type Handler func(ctx context.Context, argsJSON string) (string, error)

// validator is implemented by argument structs that check their own fields
// and fill defaults after decoding.
type validator interface {
	validate() error
}

// bind decodes the JSON arguments into A, validates them and calls fn.
func bind[A any](id ID, fn func(context.Context, A) (string, error)) Handler {
	return func(ctx context.Context, argsJSON string) (string, error) {
		var args A
		if raw := strings.TrimSpace(argsJSON); raw != "" && raw != "null" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return "", &ArgumentError{Tool: id, Err: err}
			}
		}
		if v, ok := any(&args).(validator); ok {
			if err := v.validate(); err != nil {
				return "", &ArgumentError{Tool: id, Err: err}
			}
		}
		return fn(ctx, args)
	}
}

type entry struct {
	spec    Spec
	handler Handler
}

// Options configures the tool handlers.
type Options struct {
	// CommandTimeout bounds shell and kubectl executions. Defaults to 30s.
	CommandTimeout time.Duration
	// KubectlPath is the kubectl binary. Defaults to "kubectl".
	KubectlPath string
	// Runner executes external programs. Defaults to ExecRunner.
	Runner Runner
	// Search backs web_search. When nil, web_search reports that no provider
	// is configured.
	Search tool.InvokableTool
	// Bus receives tool.call events. May be nil.
	Bus *events.Bus
}

const defaultCommandTimeout = 30 * time.Second

// Dispatcher maps every tool ID to its handler. It is built once and never
// mutated, so it is safe for concurrent use.
type Dispatcher struct {
	entries map[ID]entry
	bus     *events.Bus
}

// NewDispatcher binds the full tool set against the given registry.
func NewDispatcher(registry *skills.Registry, opts Options) *Dispatcher {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	if opts.KubectlPath == "" {
		opts.KubectlPath = "kubectl"
	}
	if opts.Runner == nil {
		opts.Runner = ExecRunner{}
	}
	if registry == nil {
		registry = skills.NewRegistry(nil)
	}

	kube := &kubectl{path: opts.KubectlPath, runner: opts.Runner, timeout: opts.CommandTimeout}
	skillTools := &skillTools{registry: registry}
	shell := &shellTool{timeout: opts.CommandTimeout}
	search := &webSearch{inner: opts.Search}

	d := &Dispatcher{
		entries: make(map[ID]entry, len(allIDs)),
		bus:     opts.Bus,
	}

	d.add(listSkillsSpec, bind(ListSkills, skillTools.list))
	d.add(loadSkillSpec, bind(LoadSkill, skillTools.load))
	d.add(shellCommandSpec, bind(ShellCommand, shell.run))
	d.add(kubectlExecSpec, bind(KubectlExec, kube.exec))
	d.add(listPodsSpec, bind(ListPods, kube.listPods))
	d.add(getPodDetailsSpec, bind(GetPodDetails, kube.podDetails))
	d.add(getPodLogsSpec, bind(GetPodLogs, kube.podLogs))
	d.add(listNamespacesSpec, bind(ListNamespaces, kube.listNamespaces))
	d.add(listCustomerNotificationPodsSpec, bind(ListCustomerNotificationPods, kube.listNotificationPods))
	d.add(listCustomerNotificationsSpec, bind(ListCustomerNotifications, kube.listNotifications))
	d.add(getCustomerNotificationDetailsSpec, bind(GetCustomerNotificationDetails, kube.notificationDetails))
	d.add(calculatorSpec, bind(Calculator, calculate))
	d.add(unitConverterSpec, bind(UnitConverter, convertUnits))
	d.add(fileReaderSpec, bind(FileReader, readFile))
	d.add(webSearchSpec, bind(WebSearch, search.run))

	return d
}

func (d *Dispatcher) add(spec Spec, h Handler) {
	d.entries[ID(spec.Name)] = entry{spec: spec, handler: h}
}

// Spec returns the spec of a bound tool.
func (d *Dispatcher) Spec(id ID) (Spec, bool) {
	e, ok := d.entries[id]
	return e.spec, ok
}

// Specs returns the specs of the given tools, or of every tool when ids is
// empty.
func (d *Dispatcher) Specs(ids ...ID) []Spec {
	if len(ids) == 0 {
		ids = allIDs
	}
	out := make([]Spec, 0, len(ids))
	for _, id := range ids {
		if e, ok := d.entries[id]; ok {
			out = append(out, e.spec)
		}
	}
	return out
}

func (d *Dispatcher) knownNames() []string {
	names := make([]string, 0, len(d.entries))
	for id := range d.entries {
		names = append(names, string(id))
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named tool with raw JSON arguments. Unknown names yield
// *UnknownToolError; undecodable or invalid arguments yield *ArgumentError.
func (d *Dispatcher) Dispatch(ctx context.Context, name, argsJSON string) (string, error) {
	id, ok := ParseID(name)
	if !ok {
		return "", &UnknownToolError{Name: name, Known: d.knownNames()}
	}
	return d.Call(ctx, id, argsJSON)
}

// Call runs a tool by ID.
func (d *Dispatcher) Call(ctx context.Context, id ID, argsJSON string) (string, error) {
	e, ok := d.entries[id]
	if !ok {
		return "", &UnknownToolError{Name: string(id), Known: d.knownNames()}
	}

	d.bus.Emit(ctx, events.SourceTool, events.ToolCallPayload{
		Status:    events.ToolStatusStarted,
		Name:      string(id),
		Arguments: map[string]any{"raw": events.Truncate(argsJSON, 1000)},
	})

	start := time.Now()
	result, err := e.handler(ctx, argsJSON)
	if err != nil {
		slog.Debug("tool call failed", "tool", id, "error", err)
		d.bus.Emit(ctx, events.SourceTool, events.ToolCallPayload{
			Status: events.ToolStatusFailed,
			Name:   string(id),
			Error:  err.Error(),
		})
		return "", err
	}

	slog.Debug("tool call completed", "tool", id, "duration", time.Since(start))
	d.bus.Emit(ctx, events.SourceTool, events.ToolCallPayload{
		Status: events.ToolStatusCompleted,
		Name:   string(id),
		Result: events.Truncate(result, 1000),
	})
	return result, nil
}
