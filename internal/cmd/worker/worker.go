// Package worker parses worker command flags and launches the report worker.
package worker

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	entrypoint "github.com/mdc-engine/ramka/internal/platform/cmd"
	"github.com/mdc-engine/ramka/internal/report"
	"github.com/mdc-engine/ramka/internal/storage/sqlite"
)

// Config holds worker command configuration.
type Config struct {
	DBPath        string        `env:"RAMKA_WORKER_DB_PATH" envDefault:"data/ramka.db"`
	Consumer      string        `env:"RAMKA_WORKER_CONSUMER" envDefault:"report-worker"`
	PollInterval  time.Duration `env:"RAMKA_WORKER_POLL_INTERVAL" envDefault:"2s"`
	LeaseTTL      time.Duration `env:"RAMKA_WORKER_LEASE_TTL" envDefault:"30s"`
	BatchSize     int           `env:"RAMKA_WORKER_BATCH_SIZE" envDefault:"10"`
	MaxAttempts   int           `env:"RAMKA_WORKER_MAX_ATTEMPTS" envDefault:"5"`
	RetryBackoff  time.Duration `env:"RAMKA_WORKER_RETRY_BACKOFF" envDefault:"5s"`
	RetryMaxDelay time.Duration `env:"RAMKA_WORKER_RETRY_MAX_DELAY" envDefault:"5m"`
	SweepInterval time.Duration `env:"RAMKA_WORKER_SWEEP_INTERVAL" envDefault:"1m"`
	SweepAge      time.Duration `env:"RAMKA_WORKER_SWEEP_AGE" envDefault:"2m"`
	SweepLimit    int           `env:"RAMKA_WORKER_SWEEP_LIMIT" envDefault:"50"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The SQLite database path")
	fs.StringVar(&cfg.Consumer, "consumer", cfg.Consumer, "Job queue consumer name")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Job queue poll interval")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "Job lease duration")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Jobs leased per poll")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Maximum processing attempts before dead-letter")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base retry backoff delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum retry delay")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Reportless session sweep interval")
	fs.DurationVar(&cfg.SweepAge, "sweep-age", cfg.SweepAge, "Minimum completion age before a sweep re-enqueue")
	fs.IntVar(&cfg.SweepLimit, "sweep-limit", cfg.SweepLimit, "Sessions re-enqueued per sweep")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the report worker runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWorker, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()

		worker, err := report.NewWorker(store, report.Stores{
			Session: store,
			Case:    store,
			Message: store,
			Report:  store,
		}, report.Config{
			Consumer:      cfg.Consumer,
			PollInterval:  cfg.PollInterval,
			LeaseTTL:      cfg.LeaseTTL,
			BatchSize:     cfg.BatchSize,
			MaxAttempts:   cfg.MaxAttempts,
			RetryBackoff:  cfg.RetryBackoff,
			RetryMaxDelay: cfg.RetryMaxDelay,
			SweepInterval: cfg.SweepInterval,
			SweepAge:      cfg.SweepAge,
			SweepLimit:    cfg.SweepLimit,
		})
		if err != nil {
			return fmt.Errorf("report worker: %w", err)
		}
		return worker.Run(ctx)
	})
}
