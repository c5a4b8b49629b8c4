// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/ventigrow/internal/greenhouse"
	"github.com/taibuivan/ventigrow/internal/platform/blob"
	"github.com/taibuivan/ventigrow/internal/platform/config"
	"github.com/taibuivan/ventigrow/internal/platform/constants"
	"github.com/taibuivan/ventigrow/internal/platform/middleware"
	"github.com/taibuivan/ventigrow/internal/users/session"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
type Handlers struct {
	// Liveness is the /health handler. Always 200 while the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler. 200 when every dependency answers.
	Readiness http.HandlerFunc

	// Metrics is the Prometheus scrape endpoint.
	Metrics http.Handler

	// Session serves the operator session view and its operations.
	Session *session.Handler

	// SessionGuard admits only the bearer of the current session.
	SessionGuard func(http.Handler) http.Handler

	// Greenhouse serves readings, thresholds, and fan control.
	Greenhouse *greenhouse.Handler

	// Storage serves public avatar locators.
	Storage *blob.Handler
}

// Middleware groups the stateful middleware built in main.go.
type Middleware struct {
	Verifier    middleware.TokenVerifier
	RateLimiter *middleware.RateLimiter
	Observer    middleware.StatusObserver
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(cfg *config.Config, log *slog.Logger, mw Middleware, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log, mw.Observer))
	r.Use(mw.RateLimiter.Handler)
	r.Use(middleware.PanicRecovery)
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)
	r.Use(middleware.Authenticate(mw.Verifier))

	// # Infrastructure Endpoints
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	r.Method(http.MethodGet, "/metrics", h.Metrics)
	r.Mount("/storage", h.Storage.Routes())

	// # Application API
	r.Route("/api/v1", func(api chi.Router) {
		// Long-lived; kept outside the request deadline.
		api.Get("/session/stream", h.Session.Stream)

		api.Group(func(api chi.Router) {
			api.Use(chimw.Timeout(constants.GlobalRequestTimeout))

			api.Mount("/session", h.Session.Routes())
			api.With(middleware.RequireAuth, h.SessionGuard).Mount("/greenhouse", h.Greenhouse.Routes())
		})
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
