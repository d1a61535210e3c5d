// Package telemetry обеспечивает наблюдаемость meshforge.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики
//
// Логи пишутся в stderr: stdout остаётся за выводом внешних процессов стадий.
// Pipeline выгружает метрики в textfile после каждого run, GPU worker
// отдаёт их на /metrics.
package telemetry
