package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/meshforge/internal/domain"
)

// StageRepo — результаты стадий (таблица stage_results).
type StageRepo struct {
	pool *pgxpool.Pool
}

// NewStageRepo создаёт новый StageRepo.
func NewStageRepo(pool *pgxpool.Pool) *StageRepo {
	return &StageRepo{pool: pool}
}

// Upsert сохраняет результат стадии run.
func (r *StageRepo) Upsert(ctx context.Context, runDir string, res domain.StageResult) error {
	query := `
		INSERT INTO stage_results (run_dir, stage_id, status, exit_code, started_at, finished_at, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_dir, stage_id) DO UPDATE
		SET status = EXCLUDED.status,
		    exit_code = EXCLUDED.exit_code,
		    started_at = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at,
		    error = EXCLUDED.error
	`
	_, err := r.pool.Exec(ctx, query,
		runDir,
		res.StageID,
		string(res.Status),
		res.ExitCode,
		res.StartedAt,
		res.FinishedAt,
		nullString(res.Error),
	)
	if err != nil {
		return fmt.Errorf("upsert stage result: %w", err)
	}
	return nil
}

// ListByRun возвращает результаты стадий run в порядке запуска.
func (r *StageRepo) ListByRun(ctx context.Context, runDir string) ([]domain.StageResult, error) {
	query := `
		SELECT stage_id, status, exit_code, started_at, finished_at, error
		FROM stage_results
		WHERE run_dir = $1
		ORDER BY started_at ASC
	`
	rows, err := r.pool.Query(ctx, query, runDir)
	if err != nil {
		return nil, fmt.Errorf("list stage results: %w", err)
	}
	defer rows.Close()

	var results []domain.StageResult
	for rows.Next() {
		var res domain.StageResult
		var status string
		var resErr *string
		if err := rows.Scan(&res.StageID, &status, &res.ExitCode, &res.StartedAt, &res.FinishedAt, &resErr); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		res.Status = domain.StageStatus(status)
		res.Error = derefString(resErr)
		results = append(results, res)
	}
	return results, rows.Err()
}
