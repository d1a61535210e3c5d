package rundir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	cp "github.com/otiai10/copy"
)

// copyOptions — опции копирования: симлинки разворачиваются в содержимое,
// время модификации сохраняется.
var copyOptions = cp.Options{
	OnSymlink: func(string) cp.SymlinkAction {
		return cp.Deep
	},
	PreserveTimes: true,
}

// CopyTree копирует директорию src в dst.
//
// Если dst существует, он удаляется целиком до копирования:
// результат — точная копия src без остатков прежнего содержимого.
// Прежнее содержимое dst уничтожается даже если копирование
// затем упадёт (атомарной подмены нет).
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSourceNotFound, src)
		}
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, src)
	}

	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("remove %s: %w", dst, err)
	}

	if err := cp.Copy(src, dst, copyOptions); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return nil
}

// copyEntry копирует файл или директорию src в dst, заменяя dst.
func copyEntry(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("remove %s: %w", dst, err)
	}
	if err := cp.Copy(src, dst, copyOptions); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	return nil
}

// ResetDir удаляет dir со всем содержимым и создаёт пустую директорию заново.
func ResetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
