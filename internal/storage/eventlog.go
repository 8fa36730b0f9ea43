package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dohr-michael/skillrouter/internal/events"
)

// globalLog receives events that are not tied to a run.
const globalLog = "_global"

// EventLogger persists bus events to JSONL files, one file per run.
type EventLogger struct {
	dir         string
	mu          sync.Mutex
	unsubscribe func()
}

// NewEventLogger creates an EventLogger that subscribes to all bus events
// and writes them as JSONL to dir.
func NewEventLogger(dir string, bus *events.Bus) *EventLogger {
	el := &EventLogger{dir: dir}
	el.unsubscribe = bus.Subscribe(el.handleEvent)
	return el
}

// Close unsubscribes the logger from the event bus.
func (el *EventLogger) Close() {
	if el.unsubscribe != nil {
		el.unsubscribe()
	}
}

func (el *EventLogger) handleEvent(e events.Event) {
	if err := el.writeEvent(e); err != nil {
		slog.Warn("event log write failed", "event", e.ID, "run_id", e.RunID, "error", err)
	}
}

func (el *EventLogger) writeEvent(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	// Handlers run concurrently; serialize appends so lines never interleave.
	el.mu.Lock()
	defer el.mu.Unlock()

	path := LogPath(el.dir, e.RunID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(data)
	return err
}

// LogPath returns the JSONL file holding the events of runID.
func LogPath(dir, runID string) string {
	if runID == "" {
		runID = globalLog
	}
	return filepath.Join(dir, runID+".jsonl")
}

// ReadLog returns the events logged for runID, in write order. A run with no
// log yields os.ErrNotExist.
func ReadLog(dir, runID string) ([]events.Event, error) {
	f, err := os.Open(LogPath(dir, runID))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []events.Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		var e events.Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return out, fmt.Errorf("%s line %d: %w", filepath.Base(f.Name()), line, err)
		}
		out = append(out, e)
	}
	return out, scanner.Err()
}
