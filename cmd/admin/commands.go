package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fintrack/internal/bootstrap"
	"fintrack/internal/infrastructure/postgres"
	"fintrack/internal/shared/config"
)

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig()
			if err != nil {
				return err
			}
			lg, err := e.newLogger(cfg)
			if err != nil {
				return err
			}
			defer lg.Sync()

			db, err := postgres.New(cfg.Database.ConnectionString())
			if err != nil {
				return err
			}
			defer db.Close()

			return postgres.Migrate(db, lg)
		},
	}
}

func newSweepCommand(e *env) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a batch pass for every owner",
	}
	cmd.PersistentFlags().StringVar(&date, "date", "", "business date YYYY-MM-DD (default today)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "recurrences",
			Short: "Generate due recurrence occurrences",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return e.withServices(cmd.Context(), func(cfg *config.Config, s *bootstrap.Services) error {
					today, err := e.businessDate(date, cfg.Location)
					if err != nil {
						return err
					}
					result, err := s.Generator.Sweep(cmd.Context(), today)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), result)
				})
			},
		},
		&cobra.Command{
			Use:   "auto-pay",
			Short: "Settle due auto-pay transactions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return e.withServices(cmd.Context(), func(cfg *config.Config, s *bootstrap.Services) error {
					today, err := e.businessDate(date, cfg.Location)
					if err != nil {
						return err
					}
					result, err := s.AutoPay.Settle(cmd.Context(), today)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), result)
				})
			},
		},
	)
	return cmd
}

func newInvoicesCommand(e *env) *cobra.Command {
	var owner, date string

	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "List an owner's credit-card invoices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withServices(cmd.Context(), func(cfg *config.Config, s *bootstrap.Services) error {
				today, err := e.businessDate(date, cfg.Location)
				if err != nil {
					return err
				}
				invoices, err := s.Invoices.List(cmd.Context(), owner, today)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), invoices)
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (required)")
	_ = cmd.MarkFlagRequired("owner")
	cmd.Flags().StringVar(&date, "date", "", "business date YYYY-MM-DD (default today)")
	return cmd
}

func newAuditCommand(e *env) *cobra.Command {
	var owner, accountID string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare an account's stored balance with its settled history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withServices(cmd.Context(), func(cfg *config.Config, s *bootstrap.Services) error {
				report, err := s.Auditor.Verify(cmd.Context(), owner, accountID)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
				if !report.Drift.IsZero() {
					return fmt.Errorf("account %s drifted by %s", report.AccountID, report.Drift)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner id (required)")
	cmd.Flags().StringVar(&accountID, "account", "", "account id (required)")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
