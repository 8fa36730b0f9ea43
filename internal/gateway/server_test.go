package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/skillrouter/internal/agent"
	"github.com/dohr-michael/skillrouter/internal/events"
	"github.com/dohr-michael/skillrouter/internal/skills"
	"github.com/dohr-michael/skillrouter/internal/storage"
	"github.com/dohr-michael/skillrouter/internal/tools"
)

// replayModel answers with a fixed list of messages.
type replayModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	err     error
}

func (m *replayModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return schema.AssistantMessage("done", nil), nil
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	return r, nil
}

func (m *replayModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *replayModel) WithTools([]*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func toolCall(id, name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

// waitForEvents polls the bus history until at least n events are present.
func waitForEvents(bus *events.Bus, n int) {
	for i := 0; i < 200; i++ {
		if len(bus.History(100)) >= n {
			return
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
}

func newTestServer(t *testing.T, m model.ToolCallingChatModel, history *storage.History) *Server {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(func() { bus.Close() })

	reg := skills.NewRegistry([]skills.Skill{
		{Name: "math_skill", Description: "Arithmetic.", Content: "Use the calculator tool.\n"},
		{Name: "kubectl_skill", Description: "Kubernetes.", Content: "Use list_namespaces.\n"},
	})
	srv := NewServer(Options{
		Host: "localhost",
		Bus:  bus,
		Agent: agent.Config{
			Model:      m,
			Registry:   reg,
			Dispatcher: tools.NewDispatcher(reg, tools.Options{Bus: bus}),
			Bus:        bus,
		},
		History: history,
	})
	t.Cleanup(srv.hub.Close)
	return srv
}

func do(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &replayModel{}, nil)

	w := do(srv, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["skills"] != float64(2) {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestHandleSkills(t *testing.T) {
	srv := newTestServer(t, &replayModel{}, nil)

	w := do(srv, http.MethodGet, "/api/skills", "")
	var body []skillJSON
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 2 || body[0].Name != "math_skill" || body[1].Description != "Kubernetes." {
		t.Fatalf("skills = %+v", body)
	}
}

func TestHandleSkill(t *testing.T) {
	srv := newTestServer(t, &replayModel{}, nil)

	w := do(srv, http.MethodGet, "/api/skills/math_skill", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if got := w.Body.String(); got != "Loaded skill: math_skill\n\nUse the calculator tool.\n" {
		t.Errorf("body = %q", got)
	}

	w = do(srv, http.MethodGet, "/api/skills/nope", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
	if got := w.Body.String(); !strings.Contains(got, "Skill 'nope' not found. Available skills: math_skill, kubectl_skill") {
		t.Errorf("body = %q", got)
	}
}

func TestHandleAsk_TwoStage(t *testing.T) {
	m := &replayModel{replies: []*schema.Message{
		toolCall("c1", "load_skill", `{"skill_name": "math_skill"}`),
		schema.AssistantMessage("Loaded.", nil),
		toolCall("c2", "calculator", `{"expression": "240 * 15 / 100"}`),
		schema.AssistantMessage("15% of 240 is 36.", nil),
	}}
	srv := newTestServer(t, m, nil)

	w := do(srv, http.MethodPost, "/api/ask", `{"query": "What is 15% of 240?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var res struct {
		Answer    string           `json:"answer"`
		SkillUsed string           `json:"skill_used"`
		Stage1    []map[string]any `json:"stage1_messages"`
		Stage2    []map[string]any `json:"stage2_messages"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if res.Answer != "15% of 240 is 36." || res.SkillUsed != "math_skill" {
		t.Errorf("result = %+v", res)
	}
	if len(res.Stage1) == 0 || len(res.Stage2) == 0 {
		t.Errorf("stage transcripts missing: %d / %d", len(res.Stage1), len(res.Stage2))
	}
}

func TestHandleAsk_BadRequests(t *testing.T) {
	srv := newTestServer(t, &replayModel{}, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid json", `{"query":`, "invalid request body"},
		{"empty query", `{"query": "   "}`, "query is required"},
		{"unknown mode", `{"query": "hi", "mode": "graph"}`, `unknown mode "graph"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(srv, http.MethodPost, "/api/ask", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestHandleAsk_ModelError(t *testing.T) {
	srv := newTestServer(t, &replayModel{err: errors.New("dial tcp: connection refused")}, nil)

	w := do(srv, http.MethodPost, "/api/ask", `{"query": "2+2", "mode": "shell"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "connection error") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHandleEvents_Empty(t *testing.T) {
	srv := newTestServer(t, &replayModel{}, nil)

	w := do(srv, http.MethodGet, "/api/events", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body []any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 0 {
		t.Fatalf("expected empty array, got %d items", len(body))
	}
}

func TestHandleEvents_LimitParam(t *testing.T) {
	srv := newTestServer(t, &replayModel{}, nil)

	for i := 0; i < 10; i++ {
		srv.bus.Publish(events.NewEvent(events.EventToolCall, events.SourceTool, map[string]any{"i": i}))
	}
	waitForEvents(srv.bus, 10)

	w := do(srv, http.MethodGet, "/api/events?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var body []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 5 {
		t.Fatalf("expected 5 events with limit=5, got %d", len(body))
	}

	if w := do(srv, http.MethodGet, "/api/events?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for a bad limit, got %d", w.Code)
	}
}

func TestHandleRuns(t *testing.T) {
	srv := newTestServer(t, &replayModel{}, nil)
	if w := do(srv, http.MethodGet, "/api/runs", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 without history, got %d", w.Code)
	}

	ctx := context.Background()
	h, err := storage.OpenHistory(ctx, filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	for i := 0; i < 3; i++ {
		if err := h.Record(ctx, storage.Run{RunID: fmt.Sprintf("run_%d", i), Mode: agent.ModeTwoStage, Query: "q"}); err != nil {
			t.Fatal(err)
		}
	}

	srv = newTestServer(t, &replayModel{}, h)
	w := do(srv, http.MethodGet, "/api/runs?limit=2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var runs []storage.Run
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
}

func TestServer_Details(t *testing.T) {
	srv := newTestServer(t, &replayModel{}, nil)

	d := srv.Details()
	if d.Addr != "localhost:0" || d.Skills != 2 {
		t.Fatalf("details = %+v", d)
	}

	cfg := srv.agentConfig()
	cfg.Registry = skills.NewRegistry(nil)
	cfg.ModelName = "local"
	srv.SetAgentConfig(cfg)
	if d := srv.Details(); d.Skills != 0 || d.Model != "local" {
		t.Fatalf("details after swap = %+v", d)
	}
}
