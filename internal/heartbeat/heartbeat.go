// Package heartbeat lets the CLI tell whether a gateway is serving. A running
// gateway rewrites a small JSON file on an interval and removes it on exit.
package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	// FileName is the heartbeat file inside the data directory.
	FileName = "gateway.json"
	// DefaultInterval is how often a running gateway refreshes the file.
	DefaultInterval = 30 * time.Second
	// DefaultMaxAge is the age past which a heartbeat counts as stale.
	DefaultMaxAge = 3 * DefaultInterval
)

// Status is the liveness of a gateway.
type Status string

const (
	StatusAlive Status = "alive"
	StatusStale Status = "stale"
	StatusDead  Status = "dead"
)

// Details describe what the gateway is serving. They are refreshed on every
// write.
type Details struct {
	Addr   string `json:"addr"`
	Skills int    `json:"skills"`
	Model  string `json:"model,omitempty"`
}

// Heartbeat is the content of the heartbeat file.
type Heartbeat struct {
	Details
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// Uptime is the time between start and the last write.
func (h Heartbeat) Uptime() time.Duration {
	return h.Timestamp.Sub(h.StartedAt).Truncate(time.Second)
}

// Path returns the heartbeat file location under dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Writer refreshes a heartbeat file until its context ends.
type Writer struct {
	path     string
	interval time.Duration
	details  func() Details
}

// NewWriter creates a writer for path. details is called before every write.
func NewWriter(path string, interval time.Duration, details func() Details) *Writer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if details == nil {
		details = func() Details { return Details{} }
	}
	return &Writer{path: path, interval: interval, details: details}
}

// Run writes immediately, then on every tick. It removes the file and
// returns when ctx is done. Only the first write error is returned; later
// failures are retried on the next tick.
func (w *Writer) Run(ctx context.Context) error {
	started := time.Now()
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if err := w.write(started); err != nil {
		return err
	}
	defer os.Remove(w.path)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = w.write(started)
		}
	}
}

func (w *Writer) write(started time.Time) error {
	hb := Heartbeat{
		Details:   w.details(),
		PID:       os.Getpid(),
		StartedAt: started,
		Timestamp: time.Now(),
	}
	data, err := json.MarshalIndent(hb, "", "  ")
	if err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}

	// tmp + rename keeps readers from seeing a partial file
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}

// Check reads the heartbeat at path. A missing file means StatusDead with a
// nil heartbeat; a file older than maxAge means StatusStale.
func Check(path string, maxAge time.Duration) (Status, *Heartbeat, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return StatusDead, nil, nil
	}
	if err != nil {
		return StatusDead, nil, fmt.Errorf("read heartbeat: %w", err)
	}

	var hb Heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return StatusDead, nil, fmt.Errorf("decode heartbeat %s: %w", path, err)
	}
	if time.Since(hb.Timestamp) > maxAge {
		return StatusStale, &hb, nil
	}
	return StatusAlive, &hb, nil
}
