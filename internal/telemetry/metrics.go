package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics — Prometheus метрики meshforge.
//
// Каждый экземпляр владеет собственным registry, поэтому в тестах
// можно создавать сколько угодно экземпляров.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal      *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	stageResults   *prometheus.CounterVec
	worldgenJobs   *prometheus.CounterVec
	lastRunSuccess prometheus.Gauge
}

// NewMetrics создаёт и регистрирует метрики.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshforge_runs_total",
			Help: "Pipeline runs by final status.",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meshforge_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s .. ~2.3h
		}, []string{"stage"}),
		stageResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshforge_stage_results_total",
			Help: "Pipeline stage results by status.",
		}, []string{"stage", "status"}),
		worldgenJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshforge_worldgen_jobs_total",
			Help: "Worldgen jobs by status.",
		}, []string{"status"}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshforge_last_run_success_timestamp_seconds",
			Help: "Unix time of the last successful pipeline run.",
		}),
	}

	m.registry.MustRegister(
		m.runsTotal,
		m.stageDuration,
		m.stageResults,
		m.worldgenJobs,
		m.lastRunSuccess,
	)

	return m
}

// WithRuntimeCollectors добавляет go/process коллекторы (для долгоживущих сервисов).
func (m *Metrics) WithRuntimeCollectors() *Metrics {
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry возвращает registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRun учитывает завершённый run.
func (m *Metrics) ObserveRun(status string, finishedAt time.Time) {
	m.runsTotal.WithLabelValues(status).Inc()
	if status == "SUCCEEDED" {
		m.lastRunSuccess.Set(float64(finishedAt.Unix()))
	}
}

// ObserveStage учитывает завершённую стадию.
func (m *Metrics) ObserveStage(stageID, status string, d time.Duration) {
	m.stageResults.WithLabelValues(stageID, status).Inc()
	m.stageDuration.WithLabelValues(stageID).Observe(d.Seconds())
}

// ObserveWorldgenJob учитывает задание worldgen.
func (m *Metrics) ObserveWorldgenJob(status string) {
	m.worldgenJobs.WithLabelValues(status).Inc()
}

// WriteTextfile записывает метрики в формате textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Handler возвращает HTTP handler для /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
