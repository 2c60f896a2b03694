// Package bootstrap wires configuration into the domain services shared by
// the API server and the admin CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fintrack/internal/domain/account"
	"fintrack/internal/domain/category"
	"fintrack/internal/domain/invoice"
	"fintrack/internal/domain/recurrence"
	"fintrack/internal/domain/transaction"
	"fintrack/internal/infrastructure/lock"
	"fintrack/internal/infrastructure/memory"
	"fintrack/internal/infrastructure/postgres"
	"fintrack/internal/shared/config"
)

// Services holds every initialized domain component.
type Services struct {
	DB *postgres.DB

	Accounts   *account.Service
	Categories *category.Service
	Ledger     *transaction.Ledger
	Planner    *transaction.Planner
	AutoPay    *transaction.AutoPaySettler
	Auditor    *transaction.Auditor
	Rules      *recurrence.Service
	Generator  *recurrence.Generator
	Invoices   *invoice.Service

	// Owner listings for the scheduler's job provider
	Transactions transaction.Repository
	Recurrences  recurrence.Repository

	closers []func() error
}

type repositories struct {
	accounts     account.Repository
	categories   category.Repository
	transactions transaction.Repository
	recurrences  recurrence.Repository
	runner       transaction.TxRunner
}

// New connects the configured store and lock backends and builds the
// services on top of them.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	s := &Services{}

	repos, err := s.openStore(cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	locker, err := s.openLocker(ctx, cfg, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Accounts = account.NewService(repos.accounts)
	s.Categories = category.NewService(repos.categories)
	s.Ledger = transaction.NewLedger(
		repos.transactions, repos.runner, s.Accounts, s.Categories, locker,
		logger.Named("ledger"),
		transaction.WithMaxRetries(cfg.Ledger.MaxRetries),
	)
	s.Rules = recurrence.NewService(repos.recurrences, s.Accounts, s.Categories, cfg.Location, logger.Named("recurrence"))
	s.Planner = transaction.NewPlanner(s.Ledger, s.Rules, cfg.Location, logger.Named("planner"))
	s.AutoPay = transaction.NewAutoPaySettler(repos.transactions, s.Ledger, cfg.Jobs.PageSize, logger.Named("autopay"))
	s.Auditor = transaction.NewAuditor(repos.transactions, s.Accounts)
	s.Generator = recurrence.NewGenerator(
		repos.recurrences, s.Ledger, repos.transactions,
		cfg.Jobs.MaxCatchUp, cfg.Jobs.PageSize, logger.Named("generator"),
	)
	s.Invoices = invoice.NewService(s.Accounts, repos.transactions, s.Categories, s.Ledger, locker, cfg.Location, logger.Named("invoice"))
	s.Transactions = repos.transactions
	s.Recurrences = repos.recurrences

	return s, nil
}

func (s *Services) openStore(cfg *config.Config, logger *zap.Logger) (*repositories, error) {
	switch cfg.Store.Backend {
	case "memory":
		logger.Warn("using in-memory store, data is lost on exit")
		store := memory.New()
		return &repositories{
			accounts:     store.Accounts(),
			categories:   store.Categories(),
			transactions: store.Transactions(),
			recurrences:  store.Recurrences(),
			runner:       store,
		}, nil
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	s.DB = db
	s.closers = append(s.closers, db.Close)
	logger.Info("connected to database", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

	if cfg.Database.Migrate {
		if err := postgres.Migrate(db, logger.Named("migrate")); err != nil {
			return nil, err
		}
	}

	store := postgres.NewStore(db)
	return &repositories{
		accounts:     store.Accounts(),
		categories:   store.Categories(),
		transactions: store.Transactions(),
		recurrences:  store.Recurrences(),
		runner:       store,
	}, nil
}

func (s *Services) openLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (transaction.Locker, error) {
	if cfg.Lock.Backend != "redis" {
		return lock.NewLocal(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	s.closers = append(s.closers, client.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	return lock.NewRedis(client, logger.Named("lock"),
		lock.WithExpiry(cfg.Lock.Expiry),
		lock.WithTries(cfg.Lock.Tries),
	), nil
}

// Close releases connections in reverse order of opening.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
