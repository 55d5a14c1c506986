package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/quantgrid/oppscan/internal/contracts"
	"github.com/quantgrid/oppscan/internal/pipeline"
	"github.com/quantgrid/oppscan/pkg/logger"
)

// RunsHandler serves run history and accepts manual triggers.
type RunsHandler struct {
	store  contracts.RunStore
	runner *pipeline.Runner
	logger *logger.Logger
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(store contracts.RunStore, runner *pipeline.Runner, log *logger.Logger) *RunsHandler {
	return &RunsHandler{store: store, runner: runner, logger: log}
}

// ListRuns returns recent run summaries.
// GET /api/runs?limit=20
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []*contracts.RunResult{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// GetLatest returns the most recent run with its full ranked list.
// GET /api/runs/latest
func (h *RunsHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.LatestRun(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs yet"})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// GetRun returns one run by id.
// GET /api/runs/{id}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	run, err := h.store.GetRun(r.Context(), runID)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// Trigger starts a manual scan in the background. A trigger while a
// run is active is rejected with 409.
// POST /api/runs/trigger
func (h *RunsHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.runner.Busy() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": pipeline.ErrRunInProgress.Error()})
		return
	}

	go func() {
		if _, err := h.runner.Run(context.Background(), contracts.RunTypeManualAPI); err != nil {
			h.logger.WithError(err).Error("Triggered scan failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *RunsHandler) writeError(w http.ResponseWriter, status int, err error) {
	h.logger.WithError(err).Error("Request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
