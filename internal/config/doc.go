// Package config загружает конфигурацию meshforge.
//
// Приоритет источников: значения по умолчанию → YAML файл → переменные окружения.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("meshforge.yaml").
//	    Load()
//
// Переменные окружения имеют префикс MESHFORGE_ (MESHFORGE_PATHS_INPUT,
// MESHFORGE_PIPELINE_ACTIVATOR, ...). Дополнительно поддерживаются
// исторические имена: LOG_LEVEL, LOG_FORMAT, DB_URL, RABBITMQ_URL,
// WG_INPUT, WG_PROMPT, WG_MAX_SIDE.
package config
