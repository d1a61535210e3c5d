package api

import (
	"net/http"
	"strconv"

	"github.com/shaiso/meshforge/internal/rundir"
)

// ListRuns возвращает runs, новые первыми.
// GET /api/v1/runs?limit=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := rundir.ReadManifests(h.finalDir)
	if err != nil {
		HandleRunError(w, h.logger, err)
		return
	}

	// новые первыми
	for i, j := 0, len(runs)-1; i < j; i, j = i+1, j-1 {
		runs[i], runs[j] = runs[j], runs[i]
	}
	total := len(runs)
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}

	List(w, runs, total)
}

// GetRun возвращает run.json одного run.
// GET /api/v1/runs/{run} — N или run_N
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("run")
	n, ok := rundir.ParseRunNumber(name)
	if !ok {
		var err error
		n, err = strconv.Atoi(name)
		if err != nil || n < 1 {
			BadRequest(w, "invalid run: expected N or run_N")
			return
		}
	}

	dir, err := rundir.FindRun(h.finalDir, n)
	if err != nil {
		HandleRunError(w, h.logger, err)
		return
	}

	run, err := rundir.ReadManifest(dir)
	if err != nil {
		HandleRunError(w, h.logger, err)
		return
	}

	Success(w, run)
}

// TriggerRun запускает pipeline вне расписания.
// POST /api/v1/runs → 202, или 409 если run уже идёт.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if err := h.trigger(); err != nil {
		HandleRunError(w, h.logger, err)
		return
	}

	JSON(w, http.StatusAccepted, DataResponse{Data: map[string]string{"status": "started"}})
}
