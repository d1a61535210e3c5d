package rundir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// isArchivedRun проверяет, что запись — директория run_<N>.
// Симлинк на директорию тоже считается директорией.
func isArchivedRun(dir string, e fs.DirEntry) bool {
	if !IsRunDir(e.Name()) {
		return false
	}
	if e.IsDir() {
		return true
	}
	info, err := os.Stat(filepath.Join(dir, e.Name()))
	return err == nil && info.IsDir()
}

// MergeOutputs копирует финальные результаты из srcFinal в dstFinal.
//
// Каждая запись верхнего уровня srcFinal копируется в dstFinal с заменой
// одноимённой записи. Директории run_<N> пропускаются: иначе run
// копировал бы в себя самого себя и все предыдущие архивы.
//
// Повторный вызов при неизменном srcFinal даёт то же состояние dstFinal.
func MergeOutputs(srcFinal, dstFinal string) error {
	entries, err := os.ReadDir(srcFinal)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, srcFinal)
		}
		return fmt.Errorf("read %s: %w", srcFinal, err)
	}

	if err := os.MkdirAll(dstFinal, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dstFinal, err)
	}

	for _, e := range entries {
		if isArchivedRun(srcFinal, e) {
			continue
		}

		src := filepath.Join(srcFinal, e.Name())
		dst := filepath.Join(dstFinal, e.Name())
		if err := copyEntry(src, dst); err != nil {
			return err
		}
	}

	return nil
}

// ClearOutputs удаляет все записи верхнего уровня finalDir,
// кроме директорий run_<N>. Несуществующий finalDir — не ошибка.
func ClearOutputs(finalDir string) error {
	entries, err := os.ReadDir(finalDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", finalDir, err)
	}

	for _, e := range entries {
		if isArchivedRun(finalDir, e) {
			continue
		}
		path := filepath.Join(finalDir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}

	return nil
}
