// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"

	service "github.com/iimb-synergy/synapse/internal/app"
	"github.com/iimb-synergy/synapse/internal/domain/model"
)

// Cycle ids follow the ISO-week form, e.g. "2026-W35".
var cycleIDPattern = regexp.MustCompile(`^\d{4}-W\d{2}$`)

// CyclesHandler handles cycle-run requests.
type CyclesHandler struct {
	runner Runner
}

// NewCyclesHandler creates a new cycles handler.
func NewCyclesHandler(runner Runner) *CyclesHandler {
	return &CyclesHandler{runner: runner}
}

// runCycleRequest mirrors the body of POST /cycles/run. The body is optional;
// an absent or empty cycle_id selects the current ISO week.
type runCycleRequest struct {
	CycleID string `json:"cycle_id"`
}

func (r runCycleRequest) validate() error {
	if r.CycleID != "" && !cycleIDPattern.MatchString(r.CycleID) {
		return errors.New("invalid cycle_id; must look like 2026-W35")
	}
	return nil
}

// runCycleResponse summarizes the finished cycle for the caller.
type runCycleResponse struct {
	CycleID         string   `json:"cycle_id"`
	SlotsIngested   int      `json:"slots_ingested"`
	SlotsSkipped    int      `json:"slots_skipped"`
	BucketsMatched  int      `json:"buckets_matched"`
	MatchesCreated  int      `json:"matches_created"`
	FallbackMatches int      `json:"fallback_matches"`
	SlotsLeftOpen   int      `json:"slots_left_open"`
	SkippedPairs    int      `json:"skipped_pairs"`
	DurationMS      int64    `json:"duration_ms"`
	Errors          []string `json:"errors,omitempty"`
}

func toResponse(rep model.CycleReport) runCycleResponse {
	return runCycleResponse{
		CycleID:         rep.CycleID,
		SlotsIngested:   rep.SlotsIngested,
		SlotsSkipped:    rep.SlotsSkipped,
		BucketsMatched:  rep.BucketsMatched,
		MatchesCreated:  rep.MatchesCreated,
		FallbackMatches: rep.FallbackMatches,
		SlotsLeftOpen:   rep.SlotsLeftOpen,
		SkippedPairs:    rep.SkippedPairs,
		DurationMS:      rep.Duration.Milliseconds(),
		Errors:          rep.Errors,
	}
}

// HandleRunCycle handles POST /cycles/run requests. The run is synchronous:
// the response carries the full cycle report. Re-posting a finished cycle is
// harmless; commit guards make the rerun a no-op. A dropped caller cancels
// the run through the request context.
func (h *CyclesHandler) HandleRunCycle(w http.ResponseWriter, r *http.Request) {
	const op = "api.run_cycle"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req runCycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	cycleID := req.CycleID
	if cycleID == "" {
		cycleID = h.runner.CurrentCycleID()
	}

	rep, err := h.runner.RunCycle(r.Context(), cycleID)
	if err != nil {
		if errors.Is(err, service.ErrCycleInFlight) {
			writeError(w, http.StatusConflict, "cycle_in_flight", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "cycle_failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rep))
}
