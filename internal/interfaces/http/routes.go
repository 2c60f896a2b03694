package http

import (
	"net/http"

	"fintrack/internal/shared/middleware"
)

// Register mounts the handlers on mux. The job endpoints require the cron
// secret.
func Register(mux *http.ServeMux, health *HealthHandler, jobs *JobsHandler, cronSecret string) {
	mux.HandleFunc("GET /health", health.HandleHealth)

	guard := middleware.CronSecret(cronSecret)
	mux.Handle("POST /api/jobs/recurrences", guard(http.HandlerFunc(jobs.HandleRecurrences)))
	mux.Handle("POST /api/jobs/auto-pay", guard(http.HandlerFunc(jobs.HandleAutoPay)))
}
