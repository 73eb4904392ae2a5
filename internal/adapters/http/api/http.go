// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/iimb-synergy/synapse/internal/domain/model"
)

// Runner triggers matching cycles. Implemented by the service layer.
type Runner interface {
	// RunCycle executes one cycle. An empty cycleID means the current week.
	RunCycle(ctx context.Context, cycleID string) (model.CycleReport, error)

	// CurrentCycleID reports the cycle id the scheduler would use right now.
	CurrentCycleID() string
}

// Server wires HTTP routes for the matching API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	cyclesHandler *CyclesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(runner Runner, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(statsProvider),
		cyclesHandler: NewCyclesHandler(runner),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/cycles/run", MetricsMiddleware(s.cyclesHandler.HandleRunCycle, "cycles_run"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
