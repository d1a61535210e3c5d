package rundir

import "errors"

// Ошибки пакета rundir.
var (
	// ErrSourceNotFound — исходная директория не существует.
	ErrSourceNotFound = errors.New("source directory not found")

	// ErrNotDirectory — путь существует, но не является директорией.
	ErrNotDirectory = errors.New("not a directory")

	// ErrRunNotFound — в root нет директории run с таким номером.
	ErrRunNotFound = errors.New("run not found")

	// ErrManifestNotFound — в директории run нет run.json.
	ErrManifestNotFound = errors.New("run manifest not found")
)
