package pipeline

import (
	"errors"
	"fmt"

	"github.com/shaiso/meshforge/internal/stage"
)

// Ошибки контроллера.
var (
	// ErrMissingInputPath — входная директория не существует или не директория.
	ErrMissingInputPath = errors.New("missing input path")

	// ErrFilesystem — ошибка файловой системы (создание, копирование, удаление).
	ErrFilesystem = errors.New("filesystem error")

	// ErrInvalidPipeline — описание стадий не прошло валидацию.
	ErrInvalidPipeline = errors.New("invalid pipeline")
)

// StageError — ошибка стадии pipeline.
type StageError struct {
	StageID string // ID упавшей стадии
	State   State  // состояние контроллера в момент ошибки
	Err     error  // ошибка runner'а или рендеринга
}

// Error реализует интерфейс error.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.StageID, e.Err)
}

// Unwrap возвращает базовую ошибку.
func (e *StageError) Unwrap() error {
	return e.Err
}

// ExitCode возвращает код завершения процесса для ошибки.
//
//	nil                            → 0
//	внешний процесс с кодом N > 0  → N
//	всё остальное                  → 1
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if code := stage.ExitCodeOf(err); code > 0 {
		return code
	}
	return 1
}
