package stage

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки запуска стадий.
var (
	// ErrUnknownActivator — нет активатора с таким именем.
	ErrUnknownActivator = errors.New("unknown environment activator")

	// ErrEmptyCommand — у invocation пустой argv.
	ErrEmptyCommand = errors.New("empty command")

	// ErrStartFailed — процесс не удалось запустить (нет бинарника, нет прав).
	ErrStartFailed = errors.New("process start failed")

	// ErrProcessFailed — процесс завершился с ненулевым кодом.
	ErrProcessFailed = errors.New("process exited with non-zero status")
)

// ExitError — процесс стадии завершился с ненулевым кодом.
type ExitError struct {
	Env      string   // окружение, в котором шёл запуск
	Args     []string // итоговый argv (с лаунчером окружения)
	ExitCode int      // код завершения; -1 если процесс убит сигналом
}

// Error реализует интерфейс error.
func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d: %s", e.ExitCode, strings.Join(e.Args, " "))
}

// Unwrap возвращает ErrProcessFailed.
func (e *ExitError) Unwrap() error {
	return ErrProcessFailed
}
