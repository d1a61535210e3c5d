package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool открывает пул соединений с PostgreSQL и проверяет доступность.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 4
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// schema — таблицы журнала. Создаются идемпотентно.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		dir          TEXT PRIMARY KEY,
		number       INTEGER NOT NULL,
		name         TEXT NOT NULL,
		input_dir    TEXT NOT NULL,
		status       TEXT NOT NULL,
		state        TEXT,
		started_at   TIMESTAMPTZ,
		finished_at  TIMESTAMPTZ,
		error        TEXT,
		failed_stage TEXT,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS stage_results (
		run_dir     TEXT NOT NULL REFERENCES pipeline_runs(dir) ON DELETE CASCADE,
		stage_id    TEXT NOT NULL,
		status      TEXT NOT NULL,
		exit_code   INTEGER NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL,
		error       TEXT,
		PRIMARY KEY (run_dir, stage_id)
	)`,
	`CREATE TABLE IF NOT EXISTS worldgen_jobs (
		id         UUID PRIMARY KEY,
		image_name TEXT NOT NULL,
		out_name   TEXT NOT NULL,
		prompt     TEXT,
		max_side   INTEGER NOT NULL,
		mode       TEXT NOT NULL,
		status     TEXT NOT NULL,
		artifact   TEXT,
		error      TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started ON pipeline_runs (started_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_worldgen_jobs_created ON worldgen_jobs (created_at DESC)`,
}

// EnsureSchema создаёт таблицы, если их нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// derefString возвращает "" для NULL.
func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
