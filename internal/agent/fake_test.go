package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/skillrouter/internal/events"
	"github.com/dohr-michael/skillrouter/internal/skills"
	"github.com/dohr-michael/skillrouter/internal/tools"
)

// scriptedModel replies with a fixed sequence of messages and records every
// input it receives.
type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	err     error
	inputs  [][]*schema.Message
	tools   [][]*schema.ToolInfo
}

func script(replies ...*schema.Message) *scriptedModel {
	return &scriptedModel{replies: replies}
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inputs = append(m.inputs, append([]*schema.Message(nil), input...))
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return schema.AssistantMessage("done", nil), nil
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(infos []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	m.tools = append(m.tools, infos)
	m.mu.Unlock()
	return m, nil
}

func (m *scriptedModel) calls() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inputs
}

var _ model.ToolCallingChatModel = (*scriptedModel)(nil)

var callSeq int

// call builds an assistant message requesting one tool call.
func call(name, args string) *schema.Message {
	callSeq++
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       fmt.Sprintf("call_%d", callSeq),
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

func answer(text string) *schema.Message {
	return schema.AssistantMessage(text, nil)
}

func testRegistry() *skills.Registry {
	return skills.NewRegistry([]skills.Skill{
		{Name: "math_skill", Description: "Arithmetic and percentages.", Content: "Use the calculator tool with a plain expression.\n"},
		{Name: "kubectl_skill", Description: "Inspect Kubernetes resources.", Content: "Use list_namespaces first.\n"},
	})
}

func testConfig(m *scriptedModel, bus *events.Bus) Config {
	reg := testRegistry()
	return Config{
		Model:      m,
		Registry:   reg,
		Dispatcher: tools.NewDispatcher(reg, tools.Options{Bus: bus}),
		Bus:        bus,
	}
}

func systemPrompt(input []*schema.Message) string {
	for _, m := range input {
		if m.Role == schema.System {
			return m.Content
		}
	}
	return ""
}

func lastUser(input []*schema.Message) string {
	for i := len(input) - 1; i >= 0; i-- {
		if input[i].Role == schema.User {
			return input[i].Content
		}
	}
	return ""
}

// waitForEvent polls the bus history until an event of the given type shows up.
func waitForEvent(t *testing.T, bus *events.Bus, typ events.EventType) []events.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		history := bus.History(100)
		for _, e := range history {
			if e.Type == typ {
				return history
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no %s event published", typ)
	return nil
}

var errBackend = errors.New("dial tcp 127.0.0.1:11434: connect: connection refused")

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
