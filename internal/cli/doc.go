// Package cli реализует команды meshforge (cobra).
//
// # Ключевые компоненты
//
// ## App
//
// Загруженная конфигурация (defaults → YAML → env), логгер и метрики.
// App собирает зависимости команд: pipeline.Controller (с журналом
// PostgreSQL и выгрузкой run в MinIO, если они настроены) и
// worldgen.Submitter (RabbitMQ RPC).
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
//
// ## Commands
//
//   - run: однократный запуск pipeline
//   - runs: list, show
//   - worldgen: submit, jobs
//   - schedule: запуск по cron, с --addr — HTTP API (internal/api)
//   - config: show
//
// Каждая команда создаётся фабричной функцией, принимающей appFn и outputFn —
// замыкания для ленивого создания App и Output после парсинга PersistentFlags.
package cli
