// Package api содержит HTTP API долгоживущих сервисов meshforge.
//
// Структура:
//   - handler.go     — Handler с DI (директория run, trigger, health, metrics)
//   - routes.go      — регистрация маршрутов
//   - middleware.go  — middleware (logging, recovery)
//   - response.go    — унифицированные JSON-ответы
//   - run_handler.go — обработчики для /runs
//
// Маршруты:
//
//	GET  /healthz
//	GET  /metrics
//	GET  /api/v1/runs          (если задан FinalDir)
//	GET  /api/v1/runs/{run}
//	POST /api/v1/runs          (если задан Trigger)
package api
