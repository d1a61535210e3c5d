package rundir

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shaiso/meshforge/internal/domain"
)

// ManifestName — имя файла манифеста в директории run.
const ManifestName = "run.json"

// WriteManifest записывает run.json в директорию run.
//
// Запись идёт во временный файл с последующим rename: прерванная
// запись не оставляет обрезанный run.json.
func WriteManifest(dir string, run *domain.Run) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestName)

	tmp, err := os.CreateTemp(dir, "."+ManifestName+".*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ReadManifest читает run.json из директории run.
func ReadManifest(dir string) (*domain.Run, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, dir)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var run domain.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return &run, nil
}

// ReadManifests читает run.json всех run в root по возрастанию номера.
//
// Run без манифеста (ещё идёт или процесс был убит) возвращается
// с пустым Status. Нечитаемый манифест не ломает список: run
// возвращается с пустым Status и текстом ошибки в Error.
func ReadManifests(root string) ([]domain.Run, error) {
	entries, err := scanRuns(root)
	if err != nil {
		return nil, err
	}

	runs := make([]domain.Run, 0, len(entries))
	for _, e := range entries {
		dir := filepath.Join(root, e.name)
		run, err := ReadManifest(dir)
		if err != nil {
			stub := &domain.Run{Number: e.number, Name: e.name, Dir: dir}
			if !errors.Is(err, ErrManifestNotFound) {
				slog.Warn("unreadable run manifest", "run", e.name, "error", err)
				stub.Error = err.Error()
			}
			run = stub
		}
		runs = append(runs, *run)
	}
	return runs, nil
}
