package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fintrack/internal/bootstrap"
	"fintrack/internal/shared/calendar"
	"fintrack/internal/shared/config"
	"fintrack/internal/shared/logger"
)

// env carries what commands need from the process, replaceable in tests.
type env struct {
	loadConfig func() (*config.Config, error)
	newLogger  func(cfg *config.Config) (*zap.Logger, error)
	now        func() time.Time
}

func defaultEnv() *env {
	return &env{
		loadConfig: config.Load,
		newLogger: func(cfg *config.Config) (*zap.Logger, error) {
			return logger.New(cfg.Log.Environment, cfg.Log.Level)
		},
		now: time.Now,
	}
}

func newRootCommand(e *env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "admin",
		Short: "Maintenance commands for the fintrack ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCommand(e),
		newSweepCommand(e),
		newInvoicesCommand(e),
		newAuditCommand(e),
	)
	return rootCmd
}

// withServices builds the services for one command run.
func (e *env) withServices(ctx context.Context, fn func(cfg *config.Config, s *bootstrap.Services) error) error {
	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	lg, err := e.newLogger(cfg)
	if err != nil {
		return err
	}
	defer lg.Sync()

	services, err := bootstrap.New(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer services.Close()

	return fn(cfg, services)
}

// businessDate parses --date, defaulting to today in the configured zone.
func (e *env) businessDate(raw string, loc *time.Location) (civil.Date, error) {
	if raw == "" {
		return calendar.Today(e.now(), loc), nil
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid --date %q (expected YYYY-MM-DD): %w", raw, err)
	}
	return d, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
