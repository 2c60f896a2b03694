package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fintrack/internal/interfaces/scheduler"
)

// StartServer starts the HTTP server in the background.
func StartServer(handler http.Handler, addr string, lg *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Info("HTTP server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	return srv
}

// GracefulShutdown stops the scheduler, then the HTTP server.
func GracefulShutdown(srv *http.Server, sched *scheduler.Scheduler, timeout time.Duration, lg *zap.Logger) {
	lg.Info("server shutting down")

	if sched != nil {
		sched.Shutdown(timeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		lg.Error("error shutting down HTTP server", zap.Error(err))
	}

	lg.Info("server stopped")
}
