package worldgen

import "errors"

var (
	// ErrEmptyInput — путь к изображениям не задан.
	ErrEmptyInput = errors.New("worldgen input is empty")

	// ErrInputNotFound — путь к изображениям не существует.
	ErrInputNotFound = errors.New("input not found")

	// ErrNoImages — по пути нет ни одного поддерживаемого изображения.
	ErrNoImages = errors.New("no images found")

	// ErrJobFailed — GPU-функция вернула ошибку генерации.
	ErrJobFailed = errors.New("worldgen job failed")
)
