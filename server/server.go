// Package server exposes an App over HTTP.
//
//	GET  /healthz
//	GET  /v1/agents
//	POST /v1/agents/{agent}/sessions/{session}:run
//	POST /v1/agents/{agent}/sessions/{session}:stream
//	GET  /v1/sessions/{session}
//	GET  /metrics
//
// :run answers once the run has finished; :stream sends every event,
// partial ones included, as server-sent events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/adkpatterns"
	"github.com/hupe1980/adkpatterns/core"
	"github.com/hupe1980/adkpatterns/engine"
	"github.com/hupe1980/adkpatterns/logging"
)

// Options configures a Server.
type Options struct {
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
	// RunTimeout bounds a single run. Zero means no limit beyond the
	// request context.
	RunTimeout time.Duration
	Logger     logging.Logger
}

// Server routes HTTP requests to an App.
type Server struct {
	app    *adkpatterns.App
	opts   Options
	router chi.Router
}

// New creates a Server for app.
func New(app *adkpatterns.App, optFns ...func(o *Options)) *Server {
	opts := Options{
		RunTimeout: 5 * time.Minute,
		Logger:     logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{app: app, opts: opts}
	s.router = s.routes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/agents", s.handleListAgents)
		r.Post("/agents/{agent}/sessions/{session}:run", s.handleRun)
		r.Post("/agents/{agent}/sessions/{session}:stream", s.handleStream)
		r.Get("/sessions/{session}", s.handleGetSession)
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.opts.Logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// AgentInfo describes a registered agent.
type AgentInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	SubAgents   []string `json:"sub_agents,omitempty"`
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	agents := s.app.Agents()
	out := make([]AgentInfo, 0, len(agents))

	for _, a := range agents {
		info := AgentInfo{Name: a.Name(), Description: a.Description()}
		for _, c := range a.SubAgents() {
			info.SubAgents = append(info.SubAgents, c.Name())
		}

		out = append(out, info)
	}

	writeJSON(w, http.StatusOK, map[string]any{"agents": out})
}

// RunRequest is the body of :run and :stream.
type RunRequest struct {
	Message string `json:"message"`
}

// RunResponse is the result of :run.
type RunResponse struct {
	SessionID string         `json:"session_id"`
	FinalText string         `json:"final_text"`
	Events    []core.Event   `json:"events"`
	State     map[string]any `json:"state"`
	Error     string         `json:"error,omitempty"`
}

func (s *Server) decodeRun(w http.ResponseWriter, r *http.Request) (RunRequest, bool) {
	var req RunRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return req, false
	}

	if req.Message == "" {
		writeError(w, http.StatusBadRequest, errors.New("message is required"))
		return req, false
	}

	return req, true
}

func (s *Server) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.opts.RunTimeout > 0 {
		return context.WithTimeout(r.Context(), s.opts.RunTimeout)
	}

	return context.WithCancel(r.Context())
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRun(w, r)
	if !ok {
		return
	}

	agentName := chi.URLParam(r, "agent")
	sessionID := chi.URLParam(r, "session")

	ctx, cancel := s.runContext(r)
	defer cancel()

	text, events, err := s.app.InvokeSync(ctx, sessionID, agentName, req.Message)
	if errors.Is(err, engine.ErrAgentNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}

	resp := RunResponse{SessionID: sessionID, FinalText: text, Events: events}
	if resp.Events == nil {
		resp.Events = []core.Event{}
	}

	if sess, sessErr := s.app.Session(sessionID); sessErr == nil {
		resp.State = sess.StateSnapshot()
	}

	status := http.StatusOK
	if err != nil {
		s.opts.Logger.Error("http.run.failed", "agent", agentName, "session_id", sessionID, "error", err.Error())

		resp.Error = err.Error()
		status = http.StatusInternalServerError
	}

	writeJSON(w, status, resp)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeRun(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	agentName := chi.URLParam(r, "agent")
	sessionID := chi.URLParam(r, "session")

	ctx, cancel := s.runContext(r)
	defer cancel()

	runID, events, errs, err := s.app.Invoke(ctx, sessionID, agentName, req.Message)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrAgentNotFound) {
			status = http.StatusNotFound
		}

		writeError(w, status, err)

		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for ev := range events {
		writeSSE(w, "event", ev)
		flusher.Flush()
	}

	if err := <-errs; err != nil {
		writeSSE(w, "error", map[string]string{"run_id": runID, "error": err.Error()})
	} else {
		writeSSE(w, "done", map[string]string{"run_id": runID})
	}

	flusher.Flush()
}

// SessionResponse is the snapshot returned by GET /v1/sessions/{session}.
type SessionResponse struct {
	ID      string         `json:"id"`
	State   map[string]any `json:"state"`
	Events  []core.Event   `json:"events"`
	Created time.Time      `json:"created"`
	Updated time.Time      `json:"updated"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.Session(chi.URLParam(r, "session"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrSessionNotFound) {
			status = http.StatusNotFound
		}

		writeError(w, status, err)

		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		ID:      sess.ID,
		State:   sess.StateSnapshot(),
		Events:  sess.GetEvents(),
		Created: sess.Created,
		Updated: sess.Updated,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data, _ = json.Marshal(map[string]string{"error": err.Error()})
	}

	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
