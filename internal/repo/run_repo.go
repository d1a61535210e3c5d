package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/meshforge/internal/domain"
)

// RunRepo — журнал запусков pipeline (таблица pipeline_runs).
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Upsert сохраняет текущее состояние run.
func (r *RunRepo) Upsert(ctx context.Context, run *domain.Run) error {
	query := `
		INSERT INTO pipeline_runs (dir, number, name, input_dir, status, state,
		                           started_at, finished_at, error, failed_stage, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (dir) DO UPDATE
		SET status = EXCLUDED.status,
		    state = EXCLUDED.state,
		    started_at = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at,
		    error = EXCLUDED.error,
		    failed_stage = EXCLUDED.failed_stage,
		    updated_at = now()
	`
	_, err := r.pool.Exec(ctx, query,
		run.Dir,
		run.Number,
		run.Name,
		run.InputDir,
		string(run.Status),
		nullString(run.State),
		run.StartedAt,
		run.FinishedAt,
		nullString(run.Error),
		nullString(run.FailedStage),
	)
	if err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

// GetByDir возвращает run по абсолютному пути директории.
func (r *RunRepo) GetByDir(ctx context.Context, dir string) (*domain.Run, error) {
	query := `
		SELECT dir, number, name, input_dir, status, state,
		       started_at, finished_at, error, failed_stage
		FROM pipeline_runs
		WHERE dir = $1
	`
	run, err := scanRun(r.pool.QueryRow(ctx, query, dir))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// List возвращает последние runs (новые первыми).
func (r *RunRepo) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT dir, number, name, input_dir, status, state,
		       started_at, finished_at, error, failed_stage
		FROM pipeline_runs
		ORDER BY started_at DESC NULLS LAST
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanRun сканирует одну строку в Run. pgx.Rows тоже реализует pgx.Row.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var status string
	var state, runError, failedStage *string

	err := row.Scan(
		&run.Dir,
		&run.Number,
		&run.Name,
		&run.InputDir,
		&status,
		&state,
		&run.StartedAt,
		&run.FinishedAt,
		&runError,
		&failedStage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Status = domain.ParseRunStatus(status)
	run.State = derefString(state)
	run.Error = derefString(runError)
	run.FailedStage = derefString(failedStage)
	return &run, nil
}
