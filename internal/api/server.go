// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the HTTP and WebSocket endpoints.
package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/oggconv/internal/api/middleware"
	"github.com/ManuGH/oggconv/internal/clients"
	"github.com/ManuGH/oggconv/internal/events"
	"github.com/ManuGH/oggconv/internal/health"
	"github.com/ManuGH/oggconv/internal/jobs"
	"github.com/ManuGH/oggconv/internal/storage"
)

// JobService is the part of jobs.Manager the handlers use.
type JobService interface {
	Start(ctx context.Context, req jobs.Request) error
	Lookup(clientID string) (jobs.Job, bool)
	Active() []jobs.Job
}

// OutputFiles hands completed outputs to the download handler and removes
// uploads that never became jobs.
type OutputFiles interface {
	Claim(path string) bool
	Release(path string)
	Discard(path string)
	PendingCount() int
}

// Config holds the HTTP settings.
type Config struct {
	MaxUploadBytes   int64
	AllowedOrigins   []string
	RateLimitEnabled bool
	RateLimitRPM     int
	WebSocket        clients.WSConfig
	// TracingService names HTTP server spans; empty disables them.
	TracingService string
	Version        string
}

// Deps are the collaborators of a Server. All but Health are required.
type Deps struct {
	Jobs       JobService
	Clients    *clients.Registry
	Dispatcher *events.Dispatcher
	Store      *storage.Store
	Outputs    OutputFiles
	// Health backs /readyz; nil reports always ready.
	Health *health.Manager
}

type Server struct {
	cfg        Config
	maxUpload  atomic.Int64
	jobs       JobService
	clients    *clients.Registry
	dispatcher *events.Dispatcher
	store      *storage.Store
	outputs    OutputFiles
	health     *health.Manager
	upgrader   websocket.Upgrader
	router     chi.Router
}

func New(cfg Config, deps Deps) *Server {
	s := &Server{
		cfg:        cfg,
		jobs:       deps.Jobs,
		clients:    deps.Clients,
		dispatcher: deps.Dispatcher,
		store:      deps.Store,
		outputs:    deps.Outputs,
		health:     deps.Health,
	}
	if s.health == nil {
		s.health = health.NewManager(cfg.Version)
	}
	s.maxUpload.Store(cfg.MaxUploadBytes)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler with the full middleware stack.
func (s *Server) Handler() http.Handler { return s.router }

// SetMaxUploadBytes changes the upload limit for subsequent requests.
func (s *Server) SetMaxUploadBytes(n int64) {
	if n > 0 {
		s.maxUpload.Store(n)
	}
}

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
		EnableMetrics:  true,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
	})

	r.Get("/ws", s.handleWebSocket)
	r.Group(func(r chi.Router) {
		if s.cfg.RateLimitEnabled && s.cfg.RateLimitRPM > 0 {
			r.Use(middleware.ConvertRateLimit(s.cfg.RateLimitRPM))
		}
		r.Post("/convert", s.handleConvert)
	})
	r.Get("/download/{token}", s.handleDownload)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// originChecker mirrors the CORS policy for WebSocket handshakes. Without a
// "*" entry, same-host origins are always accepted.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
