package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/meshforge/internal/domain"
)

// JobRecord — строка worldgen_jobs.
type JobRecord struct {
	ID        uuid.UUID        `json:"id"`
	ImageName string           `json:"image_name"`
	OutName   string           `json:"out_name"`
	Prompt    string           `json:"prompt,omitempty"`
	MaxSide   int              `json:"max_side"`
	Mode      string           `json:"mode"`
	Status    domain.JobStatus `json:"status"`
	Artifact  string           `json:"artifact,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// JobRepo — журнал заданий генерации (таблица worldgen_jobs).
type JobRepo struct {
	pool *pgxpool.Pool
}

// NewJobRepo создаёт новый JobRepo.
func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

// RecordJob сохраняет задание со статусом и, если есть, ответом.
func (r *JobRepo) RecordJob(ctx context.Context, job *domain.WorldgenJob, status domain.JobStatus, res *domain.WorldgenResult) error {
	var artifact, jobErr string
	if res != nil {
		artifact = res.Artifact
		jobErr = res.Error
	}

	query := `
		INSERT INTO worldgen_jobs (id, image_name, out_name, prompt, max_side, mode,
		                           status, artifact, error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    artifact = EXCLUDED.artifact,
		    error = EXCLUDED.error,
		    updated_at = now()
	`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.ImageName,
		job.OutName,
		nullString(job.Prompt),
		job.MaxSide,
		string(job.Mode),
		string(status),
		nullString(artifact),
		nullString(jobErr),
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record job: %w", err)
	}
	return nil
}

// GetByID возвращает задание по ID.
func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*JobRecord, error) {
	query := `
		SELECT id, image_name, out_name, prompt, max_side, mode,
		       status, artifact, error, created_at, updated_at
		FROM worldgen_jobs
		WHERE id = $1
	`
	rec, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List возвращает последние задания (новые первыми).
func (r *JobRepo) List(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, image_name, out_name, prompt, max_side, mode,
		       status, artifact, error, created_at, updated_at
		FROM worldgen_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *rec)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*JobRecord, error) {
	var rec JobRecord
	var status string
	var prompt, artifact, jobErr *string

	err := row.Scan(
		&rec.ID,
		&rec.ImageName,
		&rec.OutName,
		&prompt,
		&rec.MaxSide,
		&rec.Mode,
		&status,
		&artifact,
		&jobErr,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	rec.Status = domain.JobStatus(status)
	rec.Prompt = derefString(prompt)
	rec.Artifact = derefString(artifact)
	rec.Error = derefString(jobErr)
	return &rec, nil
}
