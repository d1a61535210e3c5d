package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Output: &buf})

	WithStageID(WithRunName(logger, "run_3"), "deca").Info("stage started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stage started", entry["msg"])
	assert.Equal(t, "run_3", entry["run"])
	assert.Equal(t, "deca", entry["stage_id"])
}

func TestNewLogger_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "WARN", Format: "text", Output: &buf})

	logger.Info("hidden")
	WithJobID(logger, "j1").Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "job_id=j1")
}

func TestFromContext(t *testing.T) {
	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	logger := NewLogger(LogConfig{Output: io.Discard})
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics()

	m.ObserveRun("SUCCEEDED", time.Unix(1700000000, 0))
	m.ObserveRun("FAILED", time.Now())
	m.ObserveRun("FAILED", time.Now())
	m.ObserveStage("icon", "SUCCEEDED", 3*time.Second)
	m.ObserveWorldgenJob("SUCCEEDED")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("SUCCEEDED")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageResults.WithLabelValues("icon", "SUCCEEDED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.worldgenJobs.WithLabelValues("SUCCEEDED")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastRunSuccess))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ObserveRun("SUCCEEDED", time.Now())

	path := filepath.Join(t.TempDir(), "meshforge.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `meshforge_runs_total{status="SUCCEEDED"} 1`)
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics().WithRuntimeCollectors()
	m.ObserveWorldgenJob("FAILED")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `meshforge_worldgen_jobs_total{status="FAILED"} 1`)
	assert.Contains(t, body, "go_goroutines")
}
