package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dohr-michael/skillrouter/internal/events"
)

// waitForLines polls until the run log holds at least n events.
func waitForLines(t *testing.T, dir, runID string, n int) []events.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := ReadLog(dir, runID)
		if err == nil && len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("log for run %q never reached %d events", runID, n)
	return nil
}

func TestEventLogger_WriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)
	defer el.Close()

	bus.Publish(events.Event{
		ID:        "evt-1",
		Type:      events.EventRunStarted,
		Timestamp: time.Now(),
		Source:    events.SourceCLI,
		Payload:   map[string]any{"query": "hello"},
	})

	data, err := waitForFile(filepath.Join(dir, "_global.jsonl"))
	if err != nil {
		t.Fatalf("read JSONL: %v", err)
	}

	var got events.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != "evt-1" {
		t.Errorf("got ID %q, want %q", got.ID, "evt-1")
	}
	if got.Type != events.EventRunStarted {
		t.Errorf("got type %q, want %q", got.Type, events.EventRunStarted)
	}
}

func waitForFile(path string) ([]byte, error) {
	deadline := time.Now().Add(2 * time.Second)
	for {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			return data, nil
		}
		if time.Now().After(deadline) {
			return data, err
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventLogger_RunRouting(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)
	defer el.Close()

	bus.Publish(events.Event{
		ID:        "evt-global",
		Type:      events.EventToolCall,
		Timestamp: time.Now(),
		Source:    events.SourceTool,
	})
	bus.Publish(events.Event{
		ID:        "evt-run",
		RunID:     "run_abc123",
		Type:      events.EventStageStarted,
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
	})

	if got := waitForLines(t, dir, "", 1); got[0].ID != "evt-global" {
		t.Errorf("global log holds %q", got[0].ID)
	}
	got := waitForLines(t, dir, "run_abc123", 1)
	if got[0].ID != "evt-run" || got[0].RunID != "run_abc123" {
		t.Errorf("run log holds %+v", got[0])
	}
}

func TestEventLogger_AllEventsOfARun(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)
	defer el.Close()

	types := []events.EventType{
		events.EventRunStarted,
		events.EventStageStarted,
		events.EventSkillLoaded,
		events.EventToolCall,
		events.EventStageCompleted,
		events.EventRunCompleted,
	}
	for _, et := range types {
		bus.Publish(events.Event{
			ID:        string(et),
			RunID:     "run_1",
			Type:      et,
			Timestamp: time.Now(),
			Source:    events.SourceAgent,
		})
	}

	got := waitForLines(t, dir, "run_1", len(types))
	if len(got) != len(types) {
		t.Fatalf("got %d events, want %d", len(got), len(types))
	}
	seen := map[events.EventType]bool{}
	for _, e := range got {
		seen[e.Type] = true
	}
	for _, et := range types {
		if !seen[et] {
			t.Errorf("missing %s", et)
		}
	}
}

func TestEventLogger_DirectoryAutoCreation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)
	defer el.Close()

	bus.Publish(events.Event{
		ID:        "evt-auto",
		Type:      events.EventRunStarted,
		Timestamp: time.Now(),
		Source:    events.SourceCLI,
	})

	waitForLines(t, dir, "", 1)
}

func TestEventLogger_CloseStopsWriting(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus(64)
	defer bus.Close()

	el := NewEventLogger(dir, bus)
	el.Close()

	bus.Publish(events.Event{ID: "late", Type: events.EventRunStarted, Timestamp: time.Now()})
	time.Sleep(50 * time.Millisecond)

	if _, err := ReadLog(dir, ""); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected no log after Close, got %v", err)
	}
}

func TestReadLog_Malformed(t *testing.T) {
	dir := t.TempDir()
	content := `{"id":"ok","type":"run.started"}` + "\nnot json\n"
	if err := os.WriteFile(LogPath(dir, "run_bad"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ReadLog(dir, "run_bad")
	if err == nil {
		t.Fatal("expected a decode error")
	}
	if len(got) != 1 || got[0].ID != "ok" {
		t.Errorf("events before the bad line = %+v", got)
	}
}
