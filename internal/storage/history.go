package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/dohr-michael/skillrouter/internal/events"
)

// DefaultRecentLimit bounds Recent when no limit is given.
const DefaultRecentLimit = 20

// Run is one finished pipeline invocation.
type Run struct {
	RunID     string        `json:"run_id"`
	Mode      string        `json:"mode"`
	Query     string        `json:"query"`
	SkillUsed string        `json:"skill_used,omitempty"`
	Answer    string        `json:"answer,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

type runRow struct {
	ID         int64  `db:"id"`
	RunID      string `db:"run_id"`
	Mode       string `db:"mode"`
	Query      string `db:"query"`
	SkillUsed  string `db:"skill_used"`
	Answer     string `db:"answer"`
	Error      string `db:"error"`
	DurationMS int64  `db:"duration_ms"`
	CreatedAt  int64  `db:"created_at"`
}

func (r runRow) run() Run {
	return Run{
		RunID:     r.RunID,
		Mode:      r.Mode,
		Query:     r.Query,
		SkillUsed: r.SkillUsed,
		Answer:    r.Answer,
		Error:     r.Error,
		Duration:  time.Duration(r.DurationMS) * time.Millisecond,
		CreatedAt: time.UnixMilli(r.CreatedAt),
	}
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL,
	mode        TEXT    NOT NULL,
	query       TEXT    NOT NULL,
	skill_used  TEXT    NOT NULL DEFAULT '',
	answer      TEXT    NOT NULL DEFAULT '',
	error       TEXT    NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_run_id ON runs(run_id)`,
}

// History stores finished runs in SQLite.
type History struct {
	db *sqlx.DB
}

// OpenHistory opens or creates the history database at path.
func OpenHistory(ctx context.Context, path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if err := configure(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create history schema: %w", err)
		}
	}
	return &History{db: db}, nil
}

// configure sets the SQLite pragmas and checks WAL mode took effect.
func configure(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=memory",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	var mode string
	if err := db.GetContext(ctx, &mode, "PRAGMA journal_mode"); err != nil {
		return fmt.Errorf("query journal mode: %w", err)
	}
	if !strings.EqualFold(mode, "wal") {
		return fmt.Errorf("WAL mode not enabled, current mode: %s", mode)
	}
	return nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Record stores one run. A zero CreatedAt is set to now.
func (h *History) Record(ctx context.Context, run Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	row := runRow{
		RunID:      run.RunID,
		Mode:       run.Mode,
		Query:      run.Query,
		SkillUsed:  run.SkillUsed,
		Answer:     run.Answer,
		Error:      run.Error,
		DurationMS: run.Duration.Milliseconds(),
		CreatedAt:  run.CreatedAt.UnixMilli(),
	}
	_, err := h.db.NamedExecContext(ctx, `
		INSERT INTO runs (run_id, mode, query, skill_used, answer, error, duration_ms, created_at)
		VALUES (:run_id, :mode, :query, :skill_used, :answer, :error, :duration_ms, :created_at)`, row)
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.RunID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var rows []runRow
	err := h.db.SelectContext(ctx, &rows,
		`SELECT * FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	out := make([]Run, len(rows))
	for i, r := range rows {
		out[i] = r.run()
	}
	return out, nil
}

// Attach records every run.completed event published on bus. The returned
// function stops recording.
func (h *History) Attach(bus *events.Bus) func() {
	return bus.Subscribe(func(e events.Event) {
		p, ok := events.ExtractPayload[events.RunCompletedPayload](e)
		if !ok {
			return
		}
		run := Run{
			RunID:     e.RunID,
			Mode:      p.Mode,
			Query:     p.Query,
			SkillUsed: p.SkillUsed,
			Answer:    p.Answer,
			Error:     p.Error,
			Duration:  p.Duration,
			CreatedAt: e.Timestamp,
		}
		if err := h.Record(context.Background(), run); err != nil {
			slog.Warn("history record failed", "run_id", e.RunID, "error", err)
		}
	}, events.EventRunCompleted)
}
