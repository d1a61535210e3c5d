package gpuworker

import "errors"

var (
	// ErrEmptyImage — в задании нет данных изображения.
	ErrEmptyImage = errors.New("job has empty image")

	// ErrInvalidOutName — имя артефакта пустое или содержит путь.
	ErrInvalidOutName = errors.New("invalid output name")

	// ErrGenerateFailed — процесс генератора завершился ошибкой.
	ErrGenerateFailed = errors.New("generator failed")

	// ErrOutputMissing — генератор завершился успешно, но файла результата нет.
	ErrOutputMissing = errors.New("generator produced no output")

	// ErrUploadFailed — не удалось сохранить артефакт.
	ErrUploadFailed = errors.New("upload failed")
)
