package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/skillrouter/internal/events"
)

// Set is a named whitelist of tools handed to one agent.
type Set []ID

var (
	// RouterSet is given to the skill router stage.
	RouterSet = Set{ListSkills, LoadSkill}
	// ExecutorSet is given to the task executor stage.
	ExecutorSet = Set{Calculator, UnitConverter, KubectlExec, FileReader, WebSearch}
	// KubernetesSet holds the read-only cluster tools.
	KubernetesSet = Set{
		ListPods, GetPodDetails, GetPodLogs, ListNamespaces,
		ListCustomerNotificationPods, ListCustomerNotifications, GetCustomerNotificationDetails,
	}
	// ShellSet is given to the shell agent.
	ShellSet = Set{ShellCommand}
)

// Names returns the tool names of the set.
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, id := range s {
		names[i] = string(id)
	}
	return names
}

// ParseSet resolves tool names into a Set. Unknown names yield
// *UnknownToolError.
func ParseSet(names []string) (Set, error) {
	set := make(Set, 0, len(names))
	for _, name := range names {
		id, ok := ParseID(name)
		if !ok {
			known := make([]string, len(allIDs))
			for i, k := range allIDs {
				known[i] = string(k)
			}
			return nil, &UnknownToolError{Name: name, Known: known}
		}
		set = append(set, id)
	}
	return set, nil
}

// InvokableTool adapts one dispatcher entry to eino's tool.InvokableTool.
// Handler failures are returned as errors (*ArgumentError for bad
// arguments); the agent's tool middleware turns them into text for the model
// and caps the number of retries.
type InvokableTool struct {
	id         ID
	spec       Spec
	dispatcher *Dispatcher
}

// Info returns the ToolInfo for eino registration.
func (t *InvokableTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return t.spec.ToolInfo(), nil
}

// InvokableRun dispatches the call.
func (t *InvokableTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return t.dispatcher.Call(ctx, t.id, argumentsInJSON)
}

var _ tool.InvokableTool = (*InvokableTool)(nil)

// Tool returns the eino adapter for one tool.
func (d *Dispatcher) Tool(id ID) (*InvokableTool, error) {
	e, ok := d.entries[id]
	if !ok {
		return nil, &UnknownToolError{Name: string(id), Known: d.knownNames()}
	}
	return &InvokableTool{id: id, spec: e.spec, dispatcher: d}, nil
}

// Tools returns the eino adapters for a set, ready for an agent's
// ToolsConfig.
func (d *Dispatcher) Tools(set Set) ([]tool.BaseTool, error) {
	out := make([]tool.BaseTool, 0, len(set))
	for _, id := range set {
		t, err := d.Tool(id)
		if err != nil {
			return nil, fmt.Errorf("tool set: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// UnknownToolHandler answers calls to tools outside set. The model gets the
// *UnknownToolError as "Error: ..." text naming the tools it may use, and
// the run continues. Each rejection is reported as a failed tool.call.
func (d *Dispatcher) UnknownToolHandler(set Set) func(ctx context.Context, name, input string) (string, error) {
	known := set.Names()
	return func(ctx context.Context, name, _ string) (string, error) {
		uerr := &UnknownToolError{Name: name, Known: known}
		slog.Warn("model called a tool outside its set", "tool", name, "available", known)
		d.bus.Emit(ctx, events.SourceTool, events.ToolCallPayload{
			Status: events.ToolStatusFailed,
			Name:   name,
			Error:  uerr.Error(),
		})
		return "Error: " + uerr.Error() + "\nCall one of the available tools instead.", nil
	}
}
