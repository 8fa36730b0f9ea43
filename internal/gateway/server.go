// Package gateway serves the skill registry and the agent pipelines over
// HTTP and WebSocket.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/skillrouter/internal/agent"
	"github.com/dohr-michael/skillrouter/internal/events"
	"github.com/dohr-michael/skillrouter/internal/gateway/ws"
	"github.com/dohr-michael/skillrouter/internal/heartbeat"
	"github.com/dohr-michael/skillrouter/internal/skills"
	"github.com/dohr-michael/skillrouter/internal/storage"
)

const defaultEventLimit = 50

// Options configures a Server.
type Options struct {
	Host  string
	Port  int
	Bus   *events.Bus
	Agent agent.Config
	// History backs /api/runs. May be nil.
	History *storage.History
}

// Server is the gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	history    *storage.History

	mu    sync.RWMutex
	agent agent.Config
}

// NewServer creates a new gateway server.
func NewServer(opts Options) *Server {
	s := &Server{
		bus:     opts.Bus,
		history: opts.History,
		agent:   opts.Agent,
	}
	s.hub = ws.NewHub(opts.Bus, s.askAny, func() any { return s.skillList() })

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/skills", s.handleSkills)
	r.Get("/api/skills/{name}", s.handleSkill)
	r.Post("/api/ask", s.handleAsk)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/runs", s.handleRuns)
	r.Get("/api/ws", s.hub.ServeWS)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

// SetAgentConfig swaps the agent configuration used by later requests.
func (s *Server) SetAgentConfig(cfg agent.Config) {
	s.mu.Lock()
	s.agent = cfg
	s.mu.Unlock()
}

func (s *Server) agentConfig() agent.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agent
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Details reports what the server currently serves.
func (s *Server) Details() heartbeat.Details {
	cfg := s.agentConfig()
	return heartbeat.Details{
		Addr:   s.Addr(),
		Skills: s.registry().Len(),
		Model:  cfg.ModelName,
	}
}

func (s *Server) registry() *skills.Registry {
	if reg := s.agentConfig().Registry; reg != nil {
		return reg
	}
	return skills.NewRegistry(nil)
}

// UnknownModeError is returned for a mode no pipeline answers to.
type UnknownModeError struct {
	Mode string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown mode %q (available: %s, %s, %s, %s)", e.Mode,
		agent.ModeTwoStage, agent.ModeSkillFirst, agent.ModeSkillAgent, agent.ModeShell)
}

// Ask answers query with the pipeline named by mode (two-stage when empty).
func (s *Server) Ask(ctx context.Context, mode, query string) (*agent.Result, error) {
	p, ok := agent.NewPipeline(mode, s.agentConfig())
	if !ok {
		return nil, &UnknownModeError{Mode: mode}
	}
	ctx = events.ContextWithRunID(ctx, events.NewRunID())
	return p.Invoke(ctx, query)
}

func (s *Server) askAny(ctx context.Context, mode, query string) (any, error) {
	return s.Ask(ctx, mode, query)
}

type skillJSON struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) skillList() []skillJSON {
	all := s.registry().All()
	out := make([]skillJSON, len(all))
	for i, sk := range all {
		out[i] = skillJSON{Name: sk.Name, Description: sk.Description}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"skills": s.registry().Len(),
	})
}

func (s *Server) handleSkills(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.skillList())
}

// handleSkill returns the load_skill text of one skill as plain text.
func (s *Server) handleSkill(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	reg := s.registry()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := reg.Find(name); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, skills.ErrSkillNotFound) {
			status = http.StatusNotFound
		}
		w.WriteHeader(status)
		fmt.Fprintln(w, err.Error())
		return
	}
	fmt.Fprint(w, reg.LoadText(name))
}

type askRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	res, err := s.Ask(r.Context(), req.Mode, req.Query)
	if err != nil {
		var modeErr *UnknownModeError
		if errors.As(err, &modeErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("ask failed", "mode", req.Mode, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// parseLimit reads ?limit=, falling back to def when absent.
func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return n, nil
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultEventLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	history := s.bus.History(limit)

	type eventJSON struct {
		ID        string             `json:"id"`
		RunID     string             `json:"run_id,omitempty"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}

	result := make([]eventJSON, len(history))
	for i, e := range history {
		result[i] = eventJSON{
			ID:        e.ID,
			RunID:     e.RunID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "run history not available")
		return
	}
	limit, err := parseLimit(r, storage.DefaultRecentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
