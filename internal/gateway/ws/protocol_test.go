package ws

import (
	"encoding/json"
	"testing"
)

func TestNewEventFrame(t *testing.T) {
	f, err := NewEventFrame("skill.loaded", "run_42", map[string]string{"skill_name": "math_skill"})
	if err != nil {
		t.Fatalf("NewEventFrame: %v", err)
	}
	if f.Type != FrameTypeEvent {
		t.Fatalf("expected type %q, got %q", FrameTypeEvent, f.Type)
	}
	if f.Event != "skill.loaded" {
		t.Fatalf("expected event %q, got %q", "skill.loaded", f.Event)
	}
	if f.RunID != "run_42" {
		t.Fatalf("expected run_id %q, got %q", "run_42", f.RunID)
	}

	var p map[string]string
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p["skill_name"] != "math_skill" {
		t.Fatalf("expected payload.skill_name %q, got %q", "math_skill", p["skill_name"])
	}
}

func TestNewResponseFrame_OK(t *testing.T) {
	f, err := NewResponseFrame("req-5", true, map[string]string{"answer": "36"}, "")
	if err != nil {
		t.Fatalf("NewResponseFrame: %v", err)
	}
	if f.Type != FrameTypeResponse || f.ID != "req-5" {
		t.Fatalf("unexpected frame %+v", f)
	}
	if f.OK == nil || !*f.OK {
		t.Fatal("expected ok=true")
	}
	if f.Error != "" {
		t.Fatalf("expected no error, got %q", f.Error)
	}

	var p map[string]string
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p["answer"] != "36" {
		t.Fatalf("expected payload.answer %q, got %q", "36", p["answer"])
	}
}

func TestNewResponseFrame_Error(t *testing.T) {
	f, err := NewResponseFrame("req-6", false, nil, "something went wrong")
	if err != nil {
		t.Fatalf("NewResponseFrame: %v", err)
	}
	if f.OK == nil || *f.OK {
		t.Fatal("expected ok=false")
	}
	if f.Error != "something went wrong" {
		t.Fatalf("expected error %q, got %q", "something went wrong", f.Error)
	}
	if f.Payload != nil {
		t.Fatalf("expected nil payload, got %s", string(f.Payload))
	}
}

func TestUnmarshalFrame_AskRequest(t *testing.T) {
	f, err := UnmarshalFrame([]byte(`{"type":"req","id":"1","method":"ask","params":{"query":"2+2","mode":"shell"}}`))
	if err != nil {
		t.Fatalf("UnmarshalFrame: %v", err)
	}
	var p AskParams
	if err := json.Unmarshal(f.Params, &p); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	if Method(f.Method) != MethodAsk || p.Query != "2+2" || p.Mode != "shell" {
		t.Fatalf("unexpected request %+v / %+v", f, p)
	}
}
