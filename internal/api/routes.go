package api

import (
	"net/http"
)

// RegisterRoutes регистрирует маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		RequestID(),
		Recovery(h.logger),
		Logging(h.logger),
	)

	mux.HandleFunc("GET /healthz", h.Healthz)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	if h.finalDir == "" {
		return
	}

	// Runs
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{run}", chain(http.HandlerFunc(h.GetRun)))
	if h.trigger != nil {
		mux.Handle("POST /api/v1/runs", chain(http.HandlerFunc(h.TriggerRun)))
	}
}

// Routes возвращает mux со всеми маршрутами.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}
