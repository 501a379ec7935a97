package db

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	startupAttempts  = 5
	startupBaseDelay = 2 * time.Second
)

// Retry runs fn until it succeeds, with quadratic backoff between attempts.
// It is meant for startup dependencies that may come up after the process.
func Retry(ctx context.Context, log *logger.Logger, op string, fn func(context.Context) error) error {
	return retry(ctx, log, op, startupAttempts, startupBaseDelay, fn)
}

func retry(ctx context.Context, log *logger.Logger, op string, attempts int, base time.Duration, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		log.Warn("startup step failed", "operation", op, "attempt", attempt, "error", err)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt*attempt) * base):
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", op, attempts, err)
}

// Connect opens the pool, retrying while Postgres is unavailable.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := Retry(ctx, log, "database connection", func(ctx context.Context) error {
		p, err := NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	})
	return pool, err
}

// Migrate applies pending migrations from fsys, retrying while Postgres is
// unavailable, and logs each applied file.
func Migrate(ctx context.Context, cfg config.DatabaseConfig, fsys fs.FS, log *logger.Logger) error {
	return Retry(ctx, log, "database migrations", func(ctx context.Context) error {
		applied, err := RunMigrations(ctx, cfg, fsys)
		for _, name := range applied {
			log.Info("migration applied", "file", name)
		}
		return err
	})
}
