package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kursadbilgin/rowhook/internal/config"
	"github.com/kursadbilgin/rowhook/internal/infra/postgresql"
	"github.com/kursadbilgin/rowhook/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/rowhook/internal/infra/redis"
	"github.com/kursadbilgin/rowhook/internal/observability"
	"github.com/kursadbilgin/rowhook/internal/provider"
	"github.com/kursadbilgin/rowhook/internal/repository"
	"github.com/kursadbilgin/rowhook/internal/service"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// deps holds the optional stores a command runs with. runs is nil without
// REDIS_URL and attempts is nil without DATABASE_DSN.
type deps struct {
	cfg      *config.Config
	logger   *zap.Logger
	rdb      *redis.Client
	sqlDB    *sql.DB
	runs     repository.RunRepository
	attempts repository.AttemptRepository
	closers  []func()
}

func openDeps(ctx context.Context, cfg *config.Config, requireHistory bool) (*deps, error) {
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	d := &deps{cfg: cfg, logger: logger}
	d.closers = append(d.closers, func() { _ = logger.Sync() })

	if cfg.RedisURL != "" {
		rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("redis initialization failed: %w", err)
		}
		d.rdb = rdb
		d.closers = append(d.closers, func() { _ = rdb.Close() })

		runs, err := repository.NewRedisRunRepo(rdb, cfg.HistoryLimit)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.runs = runs
	} else if requireHistory {
		d.Close()
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	if cfg.DatabaseDSN != "" {
		db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("postgres initialization failed: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("postgres underlying db init failed: %w", err)
		}
		d.sqlDB = sqlDB
		d.closers = append(d.closers, func() { _ = sqlDB.Close() })

		if err := migrations.Migrate(db); err != nil {
			d.Close()
			return nil, fmt.Errorf("database migrations failed: %w", err)
		}
		d.attempts = repository.NewGormAttemptRepo(db)
	}

	return d, nil
}

// Close releases stores in reverse order of opening.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

// newPipeline wires the webhook provider and, when a journal database is
// configured, the attempt journal. The journal must be closed after the
// last run finishes.
func (d *deps) newPipeline(metrics *observability.Metrics) (*service.Pipeline, *service.AttemptJournal, error) {
	sender := provider.NewWebhookProvider(d.cfg.RequestTimeout())

	pipeline, err := service.NewPipeline(sender, d.cfg.DispatchDelay(), d.cfg.RetryDelay(), d.logger)
	if err != nil {
		return nil, nil, err
	}
	pipeline.SetMetrics(metrics)

	if d.attempts == nil {
		return pipeline, nil, nil
	}

	journal, err := service.NewAttemptJournal(d.attempts, service.DefaultJournalBuffer, d.logger)
	if err != nil {
		return nil, nil, err
	}
	pipeline.SetObserver(journal)

	return pipeline, journal, nil
}
