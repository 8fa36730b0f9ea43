package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dohr-michael/skillrouter/internal/events"
)

func dialRemote(t *testing.T, hub *Hub) (*Remote, context.Context) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	r, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { r.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return r, ctx
}

func TestRemote_AskFollowsItsRun(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()

	ask := func(ctx context.Context, mode, query string) (any, error) {
		other := events.ContextWithRunID(ctx, "run_other")
		mine := events.ContextWithRunID(ctx, "run_mine")

		bus.Emit(other, events.SourceAgent, events.RunStartedPayload{Mode: mode, Query: "something else"})
		time.Sleep(20 * time.Millisecond)
		bus.Emit(mine, events.SourceAgent, events.RunStartedPayload{Mode: mode, Query: query})
		time.Sleep(20 * time.Millisecond)
		bus.Emit(other, events.SourceAgent, events.SkillLoadedPayload{SkillName: "helm_skill"})
		time.Sleep(20 * time.Millisecond)
		bus.Emit(mine, events.SourceAgent, events.SkillLoadedPayload{SkillName: "math_skill", Found: true})
		time.Sleep(50 * time.Millisecond)
		return map[string]string{"answer": "8", "skill_used": "math_skill"}, nil
	}
	hub := NewHub(bus, ask, nil)
	defer hub.Close()

	r, ctx := dialRemote(t, hub)

	var mu sync.Mutex
	var seen []events.Event
	payload, err := r.Ask(ctx, "two-stage", "What is 5 + 3?", func(e events.Event) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}

	var res map[string]string
	if err := json.Unmarshal(payload, &res); err != nil || res["answer"] != "8" {
		t.Fatalf("payload = %s (%v)", payload, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected 2 events of the run, got %+v", seen)
	}
	for _, e := range seen {
		if e.RunID != "run_mine" {
			t.Errorf("event from another run: %+v", e)
		}
	}
	if seen[1].Type != events.EventSkillLoaded {
		t.Errorf("second event = %s", seen[1].Type)
	}
}

func TestRemote_AskError(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()

	hub := NewHub(bus, func(context.Context, string, string) (any, error) {
		return nil, errors.New("router: connection error: refused")
	}, nil)
	defer hub.Close()

	r, ctx := dialRemote(t, hub)
	if _, err := r.Ask(ctx, "", "hello", nil); err == nil || !strings.Contains(err.Error(), "connection error") {
		t.Fatalf("expected ask error, got %v", err)
	}
	if _, err := r.Ask(ctx, "", "   ", nil); err == nil || err.Error() != "query is required" {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRemote_ListSkills(t *testing.T) {
	bus := events.NewBus(16)
	defer bus.Close()

	hub := NewHub(bus, nil, func() any {
		return []map[string]string{{"name": "math_skill"}}
	})
	defer hub.Close()

	r, ctx := dialRemote(t, hub)
	payload, err := r.ListSkills(ctx)
	if err != nil {
		t.Fatalf("ListSkills: %v", err)
	}
	if !strings.Contains(string(payload), "math_skill") {
		t.Errorf("payload = %s", payload)
	}
}
