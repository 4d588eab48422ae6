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

	"github.com/taibuivan/warden/internal/platform/config"
	"github.com/taibuivan/warden/internal/platform/constants"
	"github.com/taibuivan/warden/internal/platform/metrics"
	"github.com/taibuivan/warden/internal/platform/middleware"
	"github.com/taibuivan/warden/internal/platform/ratelimit"
	"github.com/taibuivan/warden/internal/rbac"
	"github.com/taibuivan/warden/internal/users/auth"
	"github.com/taibuivan/warden/internal/users/oauth"
	"github.com/taibuivan/warden/pkg/query"
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
	// Liveness is the /health handler. Always 200 while the process is up.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler. 200 only when every dependency answers.
	Readiness http.HandlerFunc

	// Auth handles the credential and session routes.
	Auth *auth.Handler

	// OAuth handles the external provider sign-in routes.
	OAuth *oauth.Handler

	// Users is the administrative user management surface.
	Users *auth.AdminHandler

	// Roles manages the RBAC role definitions.
	Roles *rbac.Handler
}

// Infrastructure holds the cross-cutting collaborators of the router.
type Infrastructure struct {
	Guard   *middleware.Guard
	Metrics *metrics.Metrics
	Limiter ratelimit.Limiter
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
func NewServer(cfg *config.Config, log *slog.Logger, infra Infrastructure, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(infra.Metrics.Instrument)
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	if infra.Limiter != nil {
		r.Use(middleware.RateLimit(infra.Limiter, middleware.ByIP))
	}
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg, query.List(cfg.ExtraOrigins)))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated probes for container orchestration and scraping.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	r.Method(http.MethodGet, "/metrics", infra.Metrics.Handler())

	// # Application API
	// Every API route resolves the caller first; anonymous requests pass through.
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(infra.Guard.Authenticate)

		api.Mount("/auth/oauth", h.OAuth.Routes())
		api.Mount("/auth", h.Auth.Routes())
		api.Mount("/users", h.Users.Routes())
		api.Mount("/roles", h.Roles.Routes())
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
