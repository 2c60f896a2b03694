package main

import (
	"net/http"

	"go.uber.org/zap"

	"fintrack/internal/bootstrap"
	httphandlers "fintrack/internal/interfaces/http"
	"fintrack/internal/shared/config"
	"fintrack/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(services *bootstrap.Services, cfg *config.Config, lg *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	var pinger httphandlers.Pinger
	if services.DB != nil {
		pinger = services.DB
	}

	httphandlers.Register(mux,
		httphandlers.NewHealthHandler(pinger),
		httphandlers.NewJobsHandler(services.Generator, services.AutoPay, cfg.Location, lg.Named("http")),
		cfg.Jobs.CronSecret,
	)

	if cfg.Jobs.CronSecret == "" {
		lg.Warn("CRON_SECRET is empty, job endpoints reject every request")
	}

	return middleware.Chain(mux,
		middleware.Telemetry,
		middleware.Logging(lg.Named("access")),
		middleware.Recover(lg.Named("http")),
		middleware.AllowedHosts(cfg.Server.AllowedHosts),
	)
}
