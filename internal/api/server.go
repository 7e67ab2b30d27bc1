// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the catalog, admin login and ad gate over HTTP.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/cinegate/internal/adgate"
	"github.com/ManuGH/cinegate/internal/api/middleware"
	"github.com/ManuGH/cinegate/internal/auth"
	"github.com/ManuGH/cinegate/internal/catalog"
	"github.com/ManuGH/cinegate/internal/config"
	"github.com/ManuGH/cinegate/internal/health"
	"github.com/ManuGH/cinegate/internal/log"
	"github.com/ManuGH/cinegate/internal/ratelimit"
)

// Deps are the services the HTTP layer talks to.
type Deps struct {
	Catalog *catalog.Service
	Auth    *auth.Service
	Gates   *adgate.Registry
	Health  *health.Manager
	// LoginLimiter throttles login and signup per client IP. Optional.
	LoginLimiter *ratelimit.Limiter
	// Config returns the live configuration; cookie flags and the assisted
	// download URL follow reloads.
	Config func() config.AppConfig
}

func (d Deps) validate() error {
	switch {
	case d.Catalog == nil:
		return errors.New("api: catalog service is required")
	case d.Auth == nil:
		return errors.New("api: auth service is required")
	case d.Gates == nil:
		return errors.New("api: gate registry is required")
	case d.Health == nil:
		return errors.New("api: health manager is required")
	case d.Config == nil:
		return errors.New("api: config source is required")
	}
	return nil
}

// Server routes HTTP requests to the services.
type Server struct {
	deps    Deps
	logger  zerolog.Logger
	handler http.Handler
}

// New builds the router. The middleware stack is fixed at construction;
// reloading server settings needs a restart.
func New(deps Deps) (*Server, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	s := &Server{
		deps:   deps,
		logger: log.WithComponent("api"),
	}
	s.handler = s.routes(deps.Config())
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes(cfg config.AppConfig) http.Handler {
	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = cfg.Telemetry.ServiceName
	}
	rpm := 0
	if cfg.Server.RateLimitEnabled {
		rpm = cfg.Server.RateLimitRPM
	}
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            len(cfg.Server.CORSOrigins) > 0,
		AllowedOrigins:        cfg.Server.CORSOrigins,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracing,
		EnableLogging:         true,
		RateLimitRPM:          rpm,
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFail(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if s.deps.LoginLimiter != nil {
					r.Use(s.deps.LoginLimiter.Middleware(tooManyAttempts))
				}
				r.Post("/login", s.handleLogin)
				r.Post("/sign", s.handleSignup)
			})
			r.Post("/verify", s.handleVerify)
			r.Post("/logout", s.handleLogout)
		})

		r.Route("/movie", func(r chi.Router) {
			r.Get("/get/movie", s.handleLookup)
			r.Group(func(r chi.Router) {
				r.Use(s.directLinks)
				r.Get("/download/{id}", s.handleMovieDownload)
				r.Get("/stream/{id}", s.handleMovieStream)
			})

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/upload", s.handleCreateMovie)
				r.Get("/all", s.handleListMovies)
				r.Put("/update/{id}", s.handleUpdateMovie)
				r.Delete("/delete/{id}", s.handleDeleteMovie)
			})
		})

		r.Route("/series", func(r chi.Router) {
			r.Get("/season/{id}", s.handleGetSeason)
			r.Get("/episode/{id}", s.handleGetEpisode)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/all", s.handleListSeries)
				r.Post("/create", s.handleCreateSeries)
				r.Put("/update/{id}", s.handleUpdateSeries)
				r.Delete("/delete/{id}", s.handleDeleteSeries)
				r.Put("/episode/{id}", s.handleUpdateEpisode)
				r.Delete("/episode/{id}", s.handleDeleteEpisode)
			})

			r.Get("/{id}", s.handleGetSeries)
		})

		r.Route("/gate", func(r chi.Router) {
			r.Post("/session", s.handleCreateGateSession)
			r.Group(func(r chi.Router) {
				r.Use(s.requireGate)
				r.Get("/state", s.handleGateState)
				r.Post("/actions/{action}", s.handleGateAction)
				r.Post("/continue", s.handleGateContinue)
				r.Post("/cancel", s.handleGateCancel)
				r.Delete("/session", s.handleDeleteGateSession)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/logs", s.handleRecentLogs)
			r.Get("/export", s.handleExport)
		})
	})
	return r
}

// directLinks passes the ungated link routes through unless gate.enforceLinks
// is set, in which case they need an admin token. The flag is read per request.
func (s *Server) directLinks(next http.Handler) http.Handler {
	admin := s.requireAdmin(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Config().Gate.EnforceLinks {
			admin.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func tooManyAttempts(w http.ResponseWriter, _ *http.Request) {
	writeFail(w, http.StatusTooManyRequests, "Too many login attempts, try again later", nil)
}
