// Copyright (c) 2026 Resumora. All rights reserved.
// Author: engineering@resumora.app

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/api are allowed to import net/http server primitives.

Every /api/v1 route group passes the admission gate with its own endpoint
class; the health probes and /metrics bypass admission so orchestration
and scraping keep working while the service sheds load.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/resumora/resumora/internal/admission"
	"github.com/resumora/resumora/internal/identity"
	"github.com/resumora/resumora/internal/pipeline/job"
	"github.com/resumora/resumora/internal/platform/config"
	"github.com/resumora/resumora/internal/platform/constants"
	"github.com/resumora/resumora/internal/platform/middleware"
	"github.com/resumora/resumora/internal/quota"
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
//
// # Usage
//
// New domains add a field here — no other change to server.go is required.
type Handlers struct {
	// Liveness is the /health handler — always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler — returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Metrics serves the Prometheus scrape endpoint.
	Metrics http.Handler

	// Identity handles anonymous session issue, revocation, and erasure.
	Identity *identity.Handler

	// Jobs handles resume submission and the job lifecycle.
	Jobs *job.Handler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups behind their admission classes.
func NewServer(context context.Context, cfg *config.Config, log *slog.Logger, authenticator middleware.CredentialAuthenticator, gate *admission.Gate, h Handlers) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(context))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.Authenticate(authenticator))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated probes and the scrape target; never gated.
	r.Get("/health", h.Liveness)
	r.Get("/ready", h.Readiness)
	r.Handle("/metrics", h.Metrics)

	// # Application API
	// Domain route groups mounted under the versioned prefix, each behind
	// the admission gate with its own class. Resume submission also burns
	// the daily LLM budget.
	r.Route("/api/v1", func(api chi.Router) {
		api.With(admission.Middleware(gate, constants.EndpointClassIdentity, "")).
			Mount("/identity", h.Identity.Routes())
		api.With(admission.Middleware(gate, constants.EndpointClassLLM, quota.APIKindLLM)).
			Mount("/resumes", h.Jobs.ResumeRoutes())
		api.With(admission.Middleware(gate, constants.EndpointClassDefault, "")).
			Mount("/jobs", h.Jobs.JobRoutes())
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

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
