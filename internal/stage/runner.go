package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/shaiso/meshforge/internal/domain"
)

// Runner — интерфейс запуска внешнего процесса стадии.
//
// Реализации: ExecRunner. В тестах подменяется fake-реализацией.
// Run блокируется до завершения процесса.
type Runner interface {
	Run(ctx context.Context, inv domain.Invocation) error
}

// RunnerFunc — адаптер функции к Runner.
type RunnerFunc func(ctx context.Context, inv domain.Invocation) error

// Run вызывает f.
func (f RunnerFunc) Run(ctx context.Context, inv domain.Invocation) error {
	return f(ctx, inv)
}

// ExecRunner запускает процессы через os/exec.
type ExecRunner struct {
	activator Activator
	stdout    io.Writer
	stderr    io.Writer
	logger    *slog.Logger
}

// RunnerConfig — конфигурация ExecRunner.
type RunnerConfig struct {
	// Activator — способ активации окружения (default: micromamba).
	Activator Activator

	// Stdout/Stderr — куда направлять вывод процесса (default: os.Stdout/os.Stderr).
	Stdout io.Writer
	Stderr io.Writer

	// Logger
	Logger *slog.Logger
}

// NewExecRunner создаёт ExecRunner.
func NewExecRunner(cfg RunnerConfig) *ExecRunner {
	activator := cfg.Activator
	if activator == nil {
		activator = NewMicromambaActivator()
	}

	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ExecRunner{
		activator: activator,
		stdout:    stdout,
		stderr:    stderr,
		logger:    logger,
	}
}

// Command возвращает итоговый argv для invocation.
func (r *ExecRunner) Command(inv domain.Invocation) []string {
	return r.activator.Wrap(inv.Env, inv.Args)
}

// Run запускает процесс и ждёт его завершения.
//
// Ненулевой код завершения возвращается как *ExitError.
// Ошибка запуска (нет бинарника, нет рабочей директории) оборачивает ErrStartFailed.
func (r *ExecRunner) Run(ctx context.Context, inv domain.Invocation) error {
	argv := r.Command(inv)
	if len(argv) == 0 {
		return ErrEmptyCommand
	}

	r.logger.Debug("starting process",
		"env", inv.Env,
		"activator", r.activator.Name(),
		"dir", inv.Dir,
		"command", strings.Join(argv, " "),
	)

	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStartFailed, argv[0], err)
	}

	cmd := exec.CommandContext(ctx, bin, argv[1:]...)
	cmd.Dir = inv.Dir
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	err = cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{
			Env:      inv.Env,
			Args:     argv,
			ExitCode: exitErr.ExitCode(),
		}
	}

	return fmt.Errorf("%w: %s: %v", ErrStartFailed, argv[0], err)
}

// ExitCodeOf возвращает код завершения процесса из цепочки ошибок.
// Для ошибок без кода процесса возвращает -1.
func ExitCodeOf(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode
	}
	return -1
}
