package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все стадии выполнены, результаты заархивированы.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — run завершился с ошибкой.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}

// StageStatus — статус выполнения одной стадии.
type StageStatus string

const (
	// StageStatusSucceeded — внешний процесс завершился с кодом 0.
	StageStatusSucceeded StageStatus = "SUCCEEDED"

	// StageStatusFailed — внешний процесс завершился с ненулевым кодом
	// или не смог запуститься.
	StageStatusFailed StageStatus = "FAILED"
)

// JobStatus — статус задания удалённой генерации.
type JobStatus string

const (
	// JobStatusQueued — задание отправлено в очередь.
	JobStatusQueued JobStatus = "QUEUED"

	// JobStatusSucceeded — артефакт записан.
	JobStatusSucceeded JobStatus = "SUCCEEDED"

	// JobStatusFailed — генерация завершилась ошибкой.
	JobStatusFailed JobStatus = "FAILED"
)

// ParseRunStatus парсит строку в RunStatus.
func ParseRunStatus(s string) RunStatus {
	switch s {
	case "RUNNING":
		return RunStatusRunning
	case "SUCCEEDED":
		return RunStatusSucceeded
	case "FAILED":
		return RunStatusFailed
	default:
		return RunStatusPending
	}
}
