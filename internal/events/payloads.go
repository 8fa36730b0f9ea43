package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// =============================================================================
// RUN EVENTS
// =============================================================================

type RunStartedPayload struct {
	Mode  string `json:"mode"` // "two-stage", "selector", "skill-agent", "shell"
	Query string `json:"query"`
}

func (RunStartedPayload) EventType() EventType { return EventRunStarted }

type RunCompletedPayload struct {
	Mode      string        `json:"mode"`
	Query     string        `json:"query"`
	SkillUsed string        `json:"skill_used,omitempty"`
	Answer    string        `json:"answer,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func (RunCompletedPayload) EventType() EventType { return EventRunCompleted }

// =============================================================================
// STAGE EVENTS
// =============================================================================

type StageStartedPayload struct {
	Stage string   `json:"stage"`
	Tools []string `json:"tools,omitempty"`
}

func (StageStartedPayload) EventType() EventType { return EventStageStarted }

type StageCompletedPayload struct {
	Stage    string        `json:"stage"`
	Messages int           `json:"messages"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func (StageCompletedPayload) EventType() EventType { return EventStageCompleted }

// =============================================================================
// SKILL EVENTS
// =============================================================================

type SkillLoadedPayload struct {
	SkillName string `json:"skill_name"`
	Stage     string `json:"stage,omitempty"`
	Found     bool   `json:"found"`
}

func (SkillLoadedPayload) EventType() EventType { return EventSkillLoaded }

// =============================================================================
// TOOL EVENTS
// =============================================================================

type ToolStatus string

const (
	ToolStatusStarted   ToolStatus = "started"
	ToolStatusCompleted ToolStatus = "completed"
	ToolStatusFailed    ToolStatus = "failed"
)

type ToolCallPayload struct {
	Status    ToolStatus     `json:"status"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    string         `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func (ToolCallPayload) EventType() EventType { return EventToolCall }

// ModelCallPhase is the step of a chat model call.
type ModelCallPhase string

const (
	ModelCallRequest  ModelCallPhase = "request"
	ModelCallResponse ModelCallPhase = "response"
	ModelCallError    ModelCallPhase = "error"
)

type ModelCallPayload struct {
	Phase        ModelCallPhase `json:"phase"`
	Model        string         `json:"model,omitempty"`
	Messages     int            `json:"messages,omitempty"`
	ToolCalls    int            `json:"tool_calls,omitempty"`
	TokensInput  int            `json:"tokens_input,omitempty"`
	TokensOutput int            `json:"tokens_output,omitempty"`
	Error        string         `json:"error,omitempty"`
}

func (ModelCallPayload) EventType() EventType { return EventModelCall }

// =============================================================================
// TYPED EVENT CONSTRUCTORS
// =============================================================================

func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func NewTypedEventWithRun(source EventSource, payload EventPayload, runID string) Event {
	evt := NewTypedEvent(source, payload)
	evt.RunID = runID
	return evt
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// =============================================================================
// TYPED PAYLOAD EXTRACTORS
// =============================================================================

func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}

// Truncate shortens s to maxLen bytes, marking the cut.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "... (truncated)"
}
