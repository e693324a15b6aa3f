package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/majeland/gatekeep/internal/api/handler"
	mw "github.com/majeland/gatekeep/internal/api/middleware"
	"github.com/majeland/gatekeep/internal/config"
	"github.com/majeland/gatekeep/internal/core"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	pool     *pgxpool.Pool
	cfg      *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, broker *core.ApprovalBroker, cfg *config.Config) *Server {
	services := core.NewServices(pool, broker, cfg.JWTSecret, cfg.JWTIssuer)

	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		pool:     pool,
		cfg:      cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	auth := handler.NewAuth(s.services.Auth)
	agent := handler.NewAgent(s.services.Admission, s.services.Broker, s.services.Endpoint, s.services.Blacklist)
	approval := handler.NewApproval(s.services.Broker)
	blacklist := handler.NewBlacklist(s.services.Blacklist)
	endpoint := handler.NewEndpoint(s.services.Endpoint)

	s.router.Route("/api", func(r chi.Router) {
		// Account routes, no session required.
		r.Post("/auth/register", auth.Register)
		r.Post("/auth/login", auth.Login)

		// Agent routes. The agent authenticates by endpoint id; a revoked
		// or unknown endpoint is rejected by the admission check itself.
		r.Route("/agent", func(r chi.Router) {
			r.Post("/check_command", agent.CheckCommand)
			r.Get("/check_approval/{id}", agent.CheckApproval)
			r.Post("/register", agent.Register)
			r.Post("/deregister", agent.Deregister)
			r.Get("/blacklist", agent.Blacklist)
		})

		// Dashboard routes behind the session token.
		r.Group(func(r chi.Router) {
			r.Use(mw.Auth(s.services.Auth))

			r.Get("/requests", approval.ListPending)
			r.Post("/requests/{id}/approve", approval.Approve)
			r.Post("/requests/{id}/deny", approval.Deny)

			r.Get("/blacklist", blacklist.List)
			r.Post("/blacklist", blacklist.Add)
			r.Delete("/blacklist/{command}", blacklist.Remove)

			r.Get("/endpoints", endpoint.List)
			r.Post("/endpoints/{id}/activate", endpoint.Activate)
			r.Post("/endpoints/{id}/deactivate", endpoint.Deactivate)
			r.Delete("/endpoints/{id}", endpoint.Delete)
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		healthy = false
	} else {
		checks["db"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
