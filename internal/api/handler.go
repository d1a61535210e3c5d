package api

import (
	"log/slog"
	"net/http"
)

// Handler — HTTP API сервисов meshforge с зависимостями.
type Handler struct {
	finalDir string
	trigger  func() error
	health   func() error
	metrics  http.Handler
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	// FinalDir — директория run_<N>. Пусто — маршруты /runs не регистрируются.
	FinalDir string

	// Trigger запускает pipeline вне расписания. nil — POST /runs недоступен.
	Trigger func() error

	// Health проверяет зависимости сервиса. nil — всегда здоров.
	Health func() error

	// Metrics — обработчик /metrics. nil — маршрут не регистрируется.
	Metrics http.Handler

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		finalDir: cfg.FinalDir,
		trigger:  cfg.Trigger,
		health:   cfg.Health,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
}

// Healthz отвечает 200, если зависимости доступны, иначе 503.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(err.Error()))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
