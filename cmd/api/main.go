package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fintrack/internal/bootstrap"
	"fintrack/internal/interfaces/scheduler"
	"fintrack/internal/shared/config"
	"fintrack/internal/shared/logger"
	"fintrack/internal/shared/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	lg, err := logger.New(cfg.Log.Environment, cfg.Log.Level)
	if err != nil {
		return err
	}
	defer lg.Sync()

	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:  cfg.Telemetry.ServiceName,
			Environment:  cfg.Log.Environment,
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			MetricsPort:  cfg.Telemetry.MetricsPort,
		}, lg)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				lg.Error("telemetry shutdown failed", zap.Error(err))
			}
		}()
	}

	services, err := bootstrap.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer services.Close()

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched, err = newScheduler(cfg, services, lg)
		if err != nil {
			return err
		}
		sched.Start()
		lg.Info("scheduler started", zap.Time("next_run", sched.NextScheduledTime()))
	} else {
		lg.Info("scheduler is disabled")
	}

	handler := SetupRoutes(services, cfg, lg)
	srv := StartServer(handler, cfg.Server.Host+":"+cfg.Server.Port, lg)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	GracefulShutdown(srv, sched, 30*time.Second, lg)
	return nil
}

func newScheduler(cfg *config.Config, services *bootstrap.Services, lg *zap.Logger) (*scheduler.Scheduler, error) {
	provider := scheduler.OwnerSweepJobs(
		services.Recurrences,
		services.Transactions,
		services.Generator,
		services.AutoPay,
		lg.Named("jobs"),
	)

	return scheduler.NewScheduler(scheduler.Config{
		ScheduleTimes: cfg.Scheduler.ScheduleTimes,
		WorkerCount:   cfg.Scheduler.WorkerCount,
		JobDelay:      cfg.Scheduler.JobDelay,
		QueueSize:     cfg.Scheduler.QueueSize,
		RunOnStartup:  cfg.Scheduler.RunOnStartup,
		Location:      cfg.Location,
		JobProvider:   provider,
	}, lg.Named("scheduler"))
}
