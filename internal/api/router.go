// PACTA - Contract Lifecycle Administration
// Copyright 2026 PACTA Project Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pacta-project/pacta

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pacta-project/pacta/internal/config"
)

// NewRouter assembles the HTTP surface: the backup API under
// /api/backup, plus health and Prometheus endpoints.
func NewRouter(handler *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg.CORSOrigins))

	r.Get("/healthz", handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/backup", func(r chi.Router) {
		r.Use(RateLimit(cfg.RateLimitReqs, cfg.RateLimitWindow))

		r.Post("/create", handler.CreateBackup)
		r.Get("/list", handler.ListBackups)
		r.Delete("/{name}", handler.DeleteBackup)
		r.Get("/download/{name}", handler.DownloadBackup)
		r.Post("/import", handler.ImportBackup)
		r.Get("/validate/{name}", handler.ValidateBackup)
		r.Post("/restore", handler.RestoreBackup)
		r.Get("/restore/history", handler.RestoreHistory)
		r.Get("/status", handler.Status)
		r.Post("/cleanup", handler.Cleanup)

		r.Get("/changes", handler.PendingChanges)
		r.Get("/changes/summary", handler.ChangeSummary)

		r.Post("/scheduler/trigger", handler.TriggerBackup)
		r.Post("/scheduler/reschedule", handler.Reschedule)
		r.Get("/scheduler/jobs", handler.SchedulerJobs)

		r.Get("/config", handler.GetConfig)
		r.Post("/config", handler.SaveConfig)
	})

	return r
}
