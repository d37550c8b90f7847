// Package api serves the cadence HTTP API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/felixgeelhaar/cadence/pkg/observability"
)

// CorrelationHeader carries the caller's correlation id.
const CorrelationHeader = "X-Correlation-ID"

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	server  *http.Server
	logger  *slog.Logger
	deps    Deps
	health  *observability.HealthRegistry
	started time.Time
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new API server. A nil health registry reports healthy.
func NewServer(cfg ServerConfig, deps Deps, health *observability.HealthRegistry, logger *slog.Logger) *Server {
	if health == nil {
		health = observability.NewHealthRegistry()
	}
	s := &Server{
		router:  chi.NewRouter(),
		logger:  observability.Component(logger, "api"),
		deps:    deps,
		health:  health,
		started: time.Now(),
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(s.requestContext)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", s.createEvent)
		r.Get("/occurrences", s.listCalendar)
		r.Get("/calendar.ics", s.exportFullCalendar)
		r.Route("/events/{eventID}", func(r chi.Router) {
			r.Get("/", s.getEvent)
			r.Delete("/", s.deleteEvent)
			r.Put("/recurrence", s.setRule)
			r.Delete("/recurrence", s.clearRule)
			r.Get("/occurrences", s.listOccurrences)
			r.Get("/calendar.ics", s.exportCalendar)
			r.Put("/occurrences/{originalStart}", s.overrideOccurrence)
			r.Delete("/occurrences/{originalStart}", s.restoreOccurrence)
			r.Post("/reminders", s.scheduleReminder)
			r.Get("/reminders", s.listReminders)
		})
		r.Post("/reminders/{reminderID}/cancel", s.cancelReminder)
	})
}

// requestContext copies the request and correlation ids onto the context
// so every log line of the request carries them.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ctx = observability.WithCorrelationID(ctx, r.Header.Get(CorrelationHeader))
		w.Header().Set(CorrelationHeader, observability.CorrelationIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugContext(r.Context(), "request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.health.Check(r.Context())
	status := http.StatusOK
	if health.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": health.Status,
		"checks": health.Checks,
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
