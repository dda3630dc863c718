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

	"github.com/edvin/borgdesk/internal/api/handler"
	mw "github.com/edvin/borgdesk/internal/api/middleware"
	"github.com/edvin/borgdesk/internal/config"
	"github.com/edvin/borgdesk/internal/core"
	"github.com/edvin/borgdesk/internal/mount"
	"github.com/edvin/borgdesk/internal/runner"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *core.Services
	pool     *pgxpool.Pool
	runner   *runner.Runner
	mounts   *mount.Manager
	cfg      *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, services *core.Services, run *runner.Runner, mounts *mount.Manager, cfg *config.Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		pool:     pool,
		runner:   run,
		mounts:   mounts,
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
	if len(s.cfg.CORSOrigins) > 0 {
		s.router.Use(mw.CORS(s.cfg.CORSOrigins))
	}
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	auth := handler.NewAuth(s.services.Auth, s.services.User)
	s.router.Post("/api/v1/auth/login", auth.Login)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.services.Auth, s.services.APIKey))

		r.Get("/auth/me", auth.Me)

		dashboard := handler.NewDashboard(s.services.Dashboard)
		r.Get("/dashboard/stats", dashboard.Stats)

		repo := handler.NewRepository(s.services.Repository, s.services.Job, s.services.Analytics, s.runner)
		r.Get("/repositories", repo.List)
		r.Post("/repositories", repo.Create)
		r.Get("/repositories/{id}", repo.Get)
		r.Patch("/repositories/{id}", repo.Update)
		r.Delete("/repositories/{id}", repo.Delete)
		r.Get("/repositories/{id}/archives", repo.Archives)
		r.Post("/repositories/{id}/archives/refresh", repo.RefreshArchives)
		r.Post("/repositories/{id}/prune", repo.Prune)
		r.Get("/repositories/{id}/jobs", repo.Jobs)
		r.Get("/repositories/{id}/stats", repo.Stats)
		r.Get("/repositories/{id}/growth-chart", repo.GrowthChart)
		r.Get("/repositories/{id}/frequency-chart", repo.FrequencyChart)
		r.Get("/repositories/{id}/forecast", repo.Forecast)

		source := handler.NewSource(s.services.Source)
		r.Get("/sources", source.List)
		r.Post("/sources", source.Create)
		r.Get("/sources/{id}", source.Get)
		r.Patch("/sources/{id}", source.Update)
		r.Delete("/sources/{id}", source.Delete)

		schedule := handler.NewSchedule(s.services.Schedule)
		r.Get("/schedules", schedule.List)
		r.Post("/schedules", schedule.Create)
		r.Get("/schedules/{id}", schedule.Get)
		r.Put("/schedules/{id}", schedule.Update)
		r.Post("/schedules/{id}/enable", schedule.Enable)
		r.Post("/schedules/{id}/disable", schedule.Disable)
		r.Delete("/schedules/{id}", schedule.Delete)

		backup := handler.NewBackup(s.runner)
		r.Post("/backups", backup.Create)

		job := handler.NewJob(s.services.Job, s.runner)
		r.Get("/jobs", job.List)
		r.Get("/jobs/{id}", job.Get)
		r.Get("/jobs/{id}/log", job.Log)
		r.Post("/jobs/{id}/cancel", job.Cancel)

		mountH := handler.NewMount(s.mounts, s.services.Mount, s.cfg.MountMaxAge())
		r.Post("/mounts", mountH.Create)
		r.Get("/mounts", mountH.List)
		r.Get("/mounts/orphaned", mountH.Orphaned)
		r.Delete("/mounts/{id}", mountH.Delete)
		r.Get("/mounts/{id}/browse", mountH.Browse)
		r.Post("/mounts/{id}/download", mountH.Download)

		apiKey := handler.NewAPIKey(s.services.APIKey)
		r.Get("/api-keys", apiKey.List)
		r.Post("/api-keys", apiKey.Create)
		r.Delete("/api-keys/{id}", apiKey.Revoke)
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
