package events

import (
	"strings"
	"testing"
	"time"
)

func TestTypedEvent_RunStarted(t *testing.T) {
	evt := NewTypedEvent(SourceCLI, RunStartedPayload{Mode: "two-stage", Query: "list pods"})

	if evt.Type != EventRunStarted {
		t.Fatalf("expected type %q, got %q", EventRunStarted, evt.Type)
	}
	got, ok := ExtractPayload[RunStartedPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Query != "list pods" || got.Mode != "two-stage" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestTypedEvent_RunCompleted(t *testing.T) {
	dur := 3 * time.Second
	evt := NewTypedEvent(SourceAgent, RunCompletedPayload{
		Mode:      "two-stage",
		SkillUsed: "kubectl_skill",
		Answer:    "3 pods running",
		Duration:  dur,
	})

	got, ok := ExtractPayload[RunCompletedPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Duration != dur {
		t.Fatalf("expected duration %v, got %v", dur, got.Duration)
	}
	if got.SkillUsed != "kubectl_skill" {
		t.Fatalf("expected skill_used %q, got %q", "kubectl_skill", got.SkillUsed)
	}
}

func TestTypedEvent_Stages(t *testing.T) {
	started := NewTypedEvent(SourceAgent, StageStartedPayload{Stage: "router", Tools: []string{"list_skills", "load_skill"}})
	if started.Type != EventStageStarted {
		t.Fatalf("expected type %q, got %q", EventStageStarted, started.Type)
	}
	sp, ok := ExtractPayload[StageStartedPayload](started)
	if !ok || len(sp.Tools) != 2 {
		t.Fatalf("unexpected stage started payload %+v", sp)
	}

	completed := NewTypedEvent(SourceAgent, StageCompletedPayload{Stage: "executor", Messages: 4, Output: "done"})
	if completed.Type != EventStageCompleted {
		t.Fatalf("expected type %q, got %q", EventStageCompleted, completed.Type)
	}
	cp, ok := ExtractPayload[StageCompletedPayload](completed)
	if !ok || cp.Messages != 4 || cp.Output != "done" {
		t.Fatalf("unexpected stage completed payload %+v", cp)
	}
}

func TestTypedEvent_ToolCall(t *testing.T) {
	payload := ToolCallPayload{
		Status:    ToolStatusCompleted,
		Name:      "calculator",
		Arguments: map[string]any{"expression": "2+2"},
		Result:    "4",
	}
	evt := NewTypedEventWithRun(SourceTool, payload, "run_1")

	if evt.Type != EventToolCall {
		t.Fatalf("expected type %q, got %q", EventToolCall, evt.Type)
	}
	if evt.RunID != "run_1" {
		t.Fatalf("expected run_id %q, got %q", "run_1", evt.RunID)
	}
	got, ok := ExtractPayload[ToolCallPayload](evt)
	if !ok {
		t.Fatal("ExtractPayload returned false")
	}
	if got.Status != ToolStatusCompleted || got.Name != "calculator" || got.Result != "4" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestExtractPayload_WrongType(t *testing.T) {
	evt := NewTypedEvent(SourceAgent, RunStartedPayload{Query: "hello"})

	got, ok := ExtractPayload[ToolCallPayload](evt)
	// JSON round-trip succeeds, fields stay zero-valued.
	if !ok {
		t.Fatal("ExtractPayload should succeed even for mismatched types")
	}
	if got.Name != "" || got.Status != "" {
		t.Fatalf("expected zero payload, got %+v", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 100); got != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
	if got := Truncate("hello world", 0); got != "hello world" {
		t.Fatalf("expected original string when maxLen=0, got %q", got)
	}
	long := strings.Repeat("x", 200)
	got := Truncate(long, 100)
	if len(got) != 100+len("... (truncated)") || !strings.HasSuffix(got, "... (truncated)") {
		t.Fatalf("unexpected truncation %q", got)
	}
}
