package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Store     StoreConfig
	Lock      LockConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Jobs      JobsConfig
	Ledger    LedgerConfig
	Telemetry TelemetryConfig
	Log       LogConfig
	Location  *time.Location
	TimeZone  string
}

type ServerConfig struct {
	Port         string
	Host         string
	AllowedHosts []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Migrate  bool
}

// StoreConfig selects the repository backend: "postgres" or "memory".
type StoreConfig struct {
	Backend string
}

// LockConfig selects the locker backend: "local" or "redis".
type LockConfig struct {
	Backend string
	Expiry  time.Duration
	Tries   int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SchedulerConfig struct {
	Enabled       bool
	ScheduleTimes []string
	WorkerCount   int
	JobDelay      time.Duration
	QueueSize     int
	RunOnStartup  bool
}

// JobsConfig tunes the batch sweeps and guards the cron endpoints.
type JobsConfig struct {
	CronSecret string
	PageSize   int
	MaxCatchUp int
}

type LedgerConfig struct {
	MaxRetries int
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	MetricsPort  string
}

type LogConfig struct {
	Level       string
	Environment string
}

func Load() (*Config, error) {

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}

	// Parse scheduler configuration
	schedulerTimes := splitList(getEnv("SCHEDULER_TIMES", "05:00,14:00"))
	schedulerWorkers, err := getIntEnv("SCHEDULER_WORKERS", 5)
	if err != nil {
		return nil, err
	}
	schedulerJobDelay, err := time.ParseDuration(getEnv("SCHEDULER_JOB_DELAY", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_JOB_DELAY: %w", err)
	}
	schedulerQueueSize, err := getIntEnv("SCHEDULER_QUEUE_SIZE", 100)
	if err != nil {
		return nil, err
	}

	pageSize, err := getIntEnv("SWEEP_PAGE_SIZE", 200)
	if err != nil {
		return nil, err
	}
	maxCatchUp, err := getIntEnv("RECURRENCE_MAX_CATCH_UP", 12)
	if err != nil {
		return nil, err
	}
	maxRetries, err := getIntEnv("LEDGER_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	lockExpiry, err := time.ParseDuration(getEnv("LOCK_EXPIRY", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCK_EXPIRY: %w", err)
	}
	lockTries, err := getIntEnv("LOCK_TRIES", 32)
	if err != nil {
		return nil, err
	}

	timeZone := getEnv("TIME_ZONE", "America/Sao_Paulo")
	location, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIME_ZONE: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			Host:         getEnv("HOST", "0.0.0.0"),
			AllowedHosts: splitList(getEnv("ALLOWED_HOSTS", "")),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "fintrack"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "fintrack"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Migrate:  getBoolEnv("DB_MIGRATE", true),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", "postgres")),
		},
		Lock: LockConfig{
			Backend: strings.ToLower(getEnv("LOCK_BACKEND", "local")),
			Expiry:  lockExpiry,
			Tries:   lockTries,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Scheduler: SchedulerConfig{
			Enabled:       getBoolEnv("SCHEDULER_ENABLED", true),
			ScheduleTimes: schedulerTimes,
			WorkerCount:   schedulerWorkers,
			JobDelay:      schedulerJobDelay,
			QueueSize:     schedulerQueueSize,
			RunOnStartup:  getBoolEnv("SCHEDULER_RUN_ON_STARTUP", false),
		},
		Jobs: JobsConfig{
			CronSecret: getEnv("CRON_SECRET", ""),
			PageSize:   pageSize,
			MaxCatchUp: maxCatchUp,
		},
		Ledger: LedgerConfig{
			MaxRetries: maxRetries,
		},
		Telemetry: TelemetryConfig{
			Enabled:      getBoolEnv("OTEL_ENABLED", false),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "fintrack"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
			MetricsPort:  getEnv("METRICS_PORT", "9464"),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", ""),
			Environment: strings.ToLower(getEnv("ENVIRONMENT", "production")),
		},
		Location: location,
		TimeZone: timeZone,
	}

	switch cfg.Store.Backend {
	case "postgres", "memory":
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be postgres or memory, got %q", cfg.Store.Backend)
	}

	switch cfg.Lock.Backend {
	case "local", "redis":
	default:
		return nil, fmt.Errorf("LOCK_BACKEND must be local or redis, got %q", cfg.Lock.Backend)
	}

	if cfg.Jobs.PageSize <= 0 {
		return nil, fmt.Errorf("SWEEP_PAGE_SIZE must be positive")
	}
	if cfg.Jobs.MaxCatchUp <= 0 {
		return nil, fmt.Errorf("RECURRENCE_MAX_CATCH_UP must be positive")
	}
	if cfg.Ledger.MaxRetries < 0 {
		return nil, fmt.Errorf("LEDGER_MAX_RETRIES must not be negative")
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

// splitList parses a comma-separated list, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
