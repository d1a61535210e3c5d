package config

import "errors"

var (
	// ErrInvalidConfig — конфигурация не прошла валидацию.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrReadConfig — не удалось прочитать или разобрать файл конфигурации.
	ErrReadConfig = errors.New("read config")
)
