package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/odoohq/orchestrator/internal/config"
	"github.com/odoohq/orchestrator/internal/handler"
	"github.com/odoohq/orchestrator/internal/model"
	"github.com/odoohq/orchestrator/internal/openapi"
	"github.com/odoohq/orchestrator/internal/server/middleware"
	"github.com/odoohq/orchestrator/internal/service"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	RequestsPerMin  int           // per-IP flood limit, 0 disables
	OdooCallTimeout time.Duration // per-request timeout for remote RPC calls
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		ShutdownTimeout: 30 * time.Second,
		CORSOrigins:     []string{"*"},
		RequestsPerMin:  600,
		OdooCallTimeout: 10 * time.Second,
	}
}

// Server is the top-level HTTP server for the orchestrator. It owns the Chi
// router, the configuration store, the authentication service, and the
// per-key rate limiter.
type Server struct {
	cfg        Config
	router     chi.Router
	store      *config.Store
	authSvc    *service.AuthService
	limiter    *middleware.KeyLimiter
	dial       handler.OdooDialer
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. Pass a nil dialer to use the production Odoo client.
func New(cfg Config, store *config.Store, authSvc *service.AuthService, dial handler.OdooDialer, logger *slog.Logger) *Server {
	if dial == nil {
		dial = handler.NewOdooDialer(cfg.OdooCallTimeout)
	}
	s := &Server{
		cfg:     cfg,
		store:   store,
		authSvc: authSvc,
		limiter: middleware.NewKeyLimiter(),
		dial:    dial,
		logger:  logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))
	if s.cfg.RequestsPerMin > 0 {
		r.Use(middleware.RateLimitByIP(s.cfg.RequestsPerMin))
	}

	// --- Health checks (no auth required) ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI spec (no auth required) ---
	r.Get("/openapi.json", s.handleOpenAPI)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {

		// System APIs (admin session, key management)
		r.Route("/system", func(r chi.Router) {
			sessionHandler := handler.NewSessionHandler(s.authSvc, 0)

			// Session endpoints are unauthenticated (login) or
			// self-authenticated (logout).
			r.Post("/admin/session", sessionHandler.Login)
			r.Delete("/admin/session", sessionHandler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(s.authSvc, s.logger))
				r.Use(middleware.RequireAdmin())

				keyHandler := handler.NewKeyHandler(s.store, s.authSvc)
				r.Get("/api-key", keyHandler.List)
				r.Post("/api-key", keyHandler.Create)
				r.Get("/api-key/{keyId}", keyHandler.Get)
				r.Delete("/api-key/{keyId}", keyHandler.Revoke)
			})
		})

		// Tenant-facing resource APIs
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(s.authSvc, s.logger))
			r.Use(middleware.RateLimitByKey(s.limiter))

			companyHandler := handler.NewCompanyHandler(s.store)
			r.Route("/companies", func(r chi.Router) {
				r.With(middleware.RequireScope(model.ScopeReadCompanies)).Get("/", companyHandler.List)
				r.With(middleware.RequireScope(model.ScopeWriteCompanies)).Post("/", companyHandler.Create)
				r.With(middleware.RequireScope(model.ScopeReadCompanies)).Get("/{companyId}", companyHandler.Get)
				r.With(middleware.RequireScope(model.ScopeWriteCompanies)).Put("/{companyId}", companyHandler.Update)
				r.With(middleware.RequireScope(model.ScopeWriteCompanies)).Delete("/{companyId}", companyHandler.Delete)
			})

			projectHandler := handler.NewProjectHandler(s.store)
			r.Route("/projects", func(r chi.Router) {
				r.With(middleware.RequireScope(model.ScopeReadProjects)).Get("/", projectHandler.List)
				r.With(middleware.RequireScope(model.ScopeWriteProjects)).Post("/", projectHandler.Create)
				r.With(middleware.RequireScope(model.ScopeReadProjects)).Get("/{projectId}", projectHandler.Get)
				r.With(middleware.RequireScope(model.ScopeWriteProjects)).Put("/{projectId}", projectHandler.Update)
				r.With(middleware.RequireScope(model.ScopeWriteProjects)).Delete("/{projectId}", projectHandler.Delete)
			})

			instanceHandler := handler.NewInstanceHandler(s.store, s.dial)
			r.Route("/instances", func(r chi.Router) {
				r.With(middleware.RequireScope(model.ScopeReadInstances)).Get("/", instanceHandler.List)
				r.With(middleware.RequireScope(model.ScopeWriteInstances)).Post("/", instanceHandler.Create)
				r.With(middleware.RequireScope(model.ScopeReadInstances)).Get("/{instanceId}", instanceHandler.Get)
				r.With(middleware.RequireScope(model.ScopeWriteInstances)).Put("/{instanceId}", instanceHandler.Update)
				r.With(middleware.RequireScope(model.ScopeWriteInstances)).Delete("/{instanceId}", instanceHandler.Delete)
				r.With(middleware.RequireScope(model.ScopeReadInstances)).Post("/{instanceId}/test", instanceHandler.Test)

				// Odoo model proxy
				r.Route("/{instanceId}/models/{model}/records", func(r chi.Router) {
					r.With(middleware.RequireScope(model.ScopeReadOdoo)).Get("/", instanceHandler.SearchRecords)
					r.With(middleware.RequireScope(model.ScopeWriteOdoo)).Post("/", instanceHandler.CreateRecord)
					r.With(middleware.RequireScope(model.ScopeWriteOdoo)).Put("/", instanceHandler.WriteRecords)
					r.With(middleware.RequireScope(model.ScopeWriteOdoo)).Delete("/", instanceHandler.DeleteRecords)
				})
			})
		})
	})

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz is a readiness probe. Returns 200 when the configuration
// store answers, 503 otherwise.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	httpStatus := http.StatusOK

	if err := s.store.Ping(r.Context()); err != nil {
		status = "degraded: " + err.Error()
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{"status": status})
}

// handleOpenAPI serves the generated OpenAPI document for the v1 surface.
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	doc := openapi.Generate(fmt.Sprintf("%s://%s", scheme, r.Host))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(doc)
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests before returning.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Expired rate-limit windows accumulate without a periodic sweep.
	sweepDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.limiter.Sweep()
			case <-sweepDone:
				return
			}
		}
	}()
	defer close(sweepDone)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
