package gpuworker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"
)

// Uploader сохраняет артефакт под именем name и возвращает его итоговое имя.
//
// Реализации: *objectstore.Store, LocalUploader.
type Uploader interface {
	Upload(ctx context.Context, name, localPath string) (string, error)
}

// LocalUploader копирует артефакты в локальную директорию.
// Используется, когда объектное хранилище выключено.
type LocalUploader struct {
	Dir string
}

// Upload копирует файл в Dir/name.
func (u LocalUploader) Upload(ctx context.Context, name, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := cp.Copy(localPath, filepath.Join(u.Dir, name)); err != nil {
		return "", fmt.Errorf("copy %s: %w", name, err)
	}
	return name, nil
}
