package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/meshforge/internal/domain"
)

// Ledger — журнал pipeline в PostgreSQL. Реализует pipeline.Ledger.
type Ledger struct {
	runs   *RunRepo
	stages *StageRepo
}

// NewLedger создаёт Ledger поверх пула.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{
		runs:   NewRunRepo(pool),
		stages: NewStageRepo(pool),
	}
}

// RecordRun сохраняет состояние run.
func (l *Ledger) RecordRun(ctx context.Context, run *domain.Run) error {
	return l.runs.Upsert(ctx, run)
}

// RecordStage сохраняет результат стадии.
func (l *Ledger) RecordStage(ctx context.Context, run *domain.Run, res domain.StageResult) error {
	return l.stages.Upsert(ctx, run.Dir, res)
}

// Runs возвращает репозиторий runs.
func (l *Ledger) Runs() *RunRepo {
	return l.runs
}

// Stages возвращает репозиторий результатов стадий.
func (l *Ledger) Stages() *StageRepo {
	return l.stages
}
