package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
)

// Transcript is everything an agent run produced: assistant turns (with their
// tool calls), tool results and the final answer.
type Transcript struct {
	Messages []*schema.Message
	Answer   string
}

// ToolResults returns the contents of the tool messages produced by the named
// tool, in order.
func (t *Transcript) ToolResults(name string) []string {
	if t == nil {
		return nil
	}
	var out []string
	for _, m := range t.Messages {
		if m.Role == schema.Tool && m.ToolName == name {
			out = append(out, m.Content)
		}
	}
	return out
}

// ToolCalls returns the names of the tools the model called, in order.
func (t *Transcript) ToolCalls() []string {
	if t == nil {
		return nil
	}
	var out []string
	for _, m := range t.Messages {
		for _, tc := range m.ToolCalls {
			out = append(out, tc.Function.Name)
		}
	}
	return out
}

// Len returns the number of collected messages.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Messages)
}

// Run executes the runner and collects its output. On error the transcript
// collected so far is returned along with it.
func Run(ctx context.Context, runner *adk.Runner, messages []*schema.Message) (*Transcript, error) {
	checkpointID := uuid.New().String()
	iter := runner.Run(ctx, messages, adk.WithCheckPointID(checkpointID))

	t := &Transcript{}
	for {
		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			return t, event.Err
		}
		if event.Output == nil || event.Output.MessageOutput == nil {
			continue
		}

		msg, err := messageOf(event.Output.MessageOutput)
		if err != nil {
			return t, err
		}
		if msg == nil {
			continue
		}
		t.Messages = append(t.Messages, msg)

		if msg.Role == schema.Assistant && len(msg.ToolCalls) == 0 && strings.TrimSpace(msg.Content) != "" {
			t.Answer = msg.Content
		}
	}

	if err := ctx.Err(); err != nil {
		return t, err
	}
	return t, nil
}

// messageOf materializes a message variant, draining streams.
func messageOf(mv *adk.MessageVariant) (*schema.Message, error) {
	var msg *schema.Message
	if mv.IsStreaming {
		if mv.MessageStream == nil {
			return nil, nil
		}
		m, err := drain(mv.MessageStream)
		if err != nil {
			return nil, err
		}
		msg = m
	} else {
		msg = mv.Message
	}
	if msg == nil {
		return nil, nil
	}
	if msg.Role == "" {
		msg.Role = mv.Role
	}
	if msg.Role == schema.Tool && msg.ToolName == "" {
		msg.ToolName = mv.ToolName
	}
	return msg, nil
}

func drain(stream *schema.StreamReader[*schema.Message]) (*schema.Message, error) {
	defer stream.Close()

	var chunks []*schema.Message
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read message stream: %w", err)
		}
		if chunk != nil {
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	return schema.ConcatMessages(chunks)
}
