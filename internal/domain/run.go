package domain

import (
	"time"
)

// Run — одно выполнение pipeline.
//
// Каждый run получает собственную директорию run_<N> внутри общей
// директории финальных результатов. Номер строго растёт: упавший run
// не переиспользуется, повторный запуск получит следующий номер.
type Run struct {
	// Number — числовой суффикс директории (run_<Number>).
	Number int `json:"number"`

	// Name — имя директории, например "run_7".
	Name string `json:"name"`

	// Dir — абсолютный путь к директории run.
	Dir string `json:"dir"`

	// InputDir — исходная директория входных данных (до снапшота).
	InputDir string `json:"input_dir"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// State — последнее состояние контроллера (ALLOCATE_RUN, STAGE:icon, DONE, ...).
	State string `json:"state,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (успешного или с ошибкой).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// FailedStage — ID стадии, на которой run упал.
	// Пусто, если ошибка произошла вне стадий (например, нет входных данных).
	FailedStage string `json:"failed_stage,omitempty"`

	// Stages — результаты выполненных стадий в порядке запуска.
	Stages []StageResult `json:"stages,omitempty"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(stageID string, err string) {
	now := time.Now()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.FailedStage = stageID
	r.Error = err
}

// AddStageResult добавляет результат стадии.
func (r *Run) AddStageResult(res StageResult) {
	r.Stages = append(r.Stages, res)
}
