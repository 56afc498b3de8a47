package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/ivt-chain/config"
	"github.com/target/ivt-chain/internal/adapters/shell"
	"github.com/target/ivt-chain/internal/core"
	"github.com/target/ivt-chain/internal/data"
	"github.com/target/ivt-chain/internal/service"
)

// LockPrefix namespaces submission lock keys in Redis.
const LockPrefix = "ivt-chain:lock:"

// ChainDeps groups inputs for BuildChainService.
type ChainDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger
	// Runner overrides the process runner used by queue adapters (tests).
	Runner shell.Runner
}

// ChainContainer holds the chain service and the resources it owns.
type ChainContainer struct {
	Service       *service.ChainService
	Queue         core.Queue
	DB            *sql.DB
	Redis         redis.UniversalClient
	Observability ObservabilityContainer
}

// Close releases every resource opened by BuildChainService.
func (c *ChainContainer) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close journal: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := c.Observability.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close statsd: %w", err))
	}
	return errors.Join(errs...)
}

// OpenJournal connects the journal and applies migrations. SQLite journals are always
// migrated; Postgres only when DB_RUN_MIGRATIONS_ON_START is set.
func OpenJournal(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := ConnectJournal(ctx, DatabaseConfig{
		Journal:  cfg.Journal,
		DBConfig: cfg.Postgres,
		Logger:   logger,
	})
	if err != nil || db == nil {
		return db, err
	}

	if cfg.Journal.Driver == config.JournalDriverSQLite || cfg.Postgres.RunMigrationsOnStart {
		if err := RunMigrations(ctx, db, logger); err != nil {
			return nil, errors.Join(err, db.Close())
		}
	}
	return db, nil
}

// BuildChainService wires the queue adapter, journal, lock and observability into a ChainService.
// The dry-run backend never touches the journal or Redis.
func BuildChainService(ctx context.Context, deps ChainDeps) (*ChainContainer, error) {
	if deps.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runner := deps.Runner
	if runner == nil {
		runner = shell.NewExecRunner()
	}
	runner = shell.WithTimeout(runner, cfg.Queue.SubmitTimeout)

	q, err := NewQueue(cfg.Queue, runner, logger)
	if err != nil {
		return nil, err
	}
	tmpl, err := NewJobTemplate(cfg.Queue)
	if err != nil {
		return nil, err
	}

	container := &ChainContainer{Queue: q}
	storage := service.ChainStorage{LockTTL: cfg.Redis.LockTTL}

	if cfg.Queue.Backend != config.QueueBackendDryRun {
		container.DB, err = OpenJournal(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if container.DB != nil {
			storage.Journal = data.NewChainRepo(container.DB)
		}

		container.Redis, err = ConnectRedis(ctx, DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger})
		if err != nil {
			return nil, errors.Join(err, container.Close())
		}
		if container.Redis != nil {
			storage.Locker = data.NewRedisLockRepo(container.Redis, LockPrefix)
		}
	}

	container.Observability = BuildObservability(logger, cfg.Observability, cfg.Queue.Backend)

	svc, err := service.NewChainService(service.ChainServiceOptions{
		Queue: service.ChainQueue{
			Submitter: q,
			Inspector: q,
			Backend:   string(cfg.Queue.Backend),
		},
		Template: tmpl,
		Storage:  storage,
		Telemetry: service.ChainTelemetry{
			Logger:   logger,
			Metrics:  container.Observability.MetricsSink,
			Notifier: container.Observability.FailureNotifier,
		},
		StatusConcurrency: cfg.Queue.StatusConcurrency,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("create chain service: %w", err), container.Close())
	}
	container.Service = svc
	return container, nil
}
