// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/patella/internal/adapters/repository"
	"github.com/okian/patella/internal/domain/diagnosis"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	ReadinessProvider

	// Predict diagnoses synchronously.
	Predict(ctx context.Context, obs []diagnosis.Observation) (diagnosis.Result, error)

	// Submit queues an asynchronous diagnosis keyed by requestID. It returns
	// the diagnosis ID and whether requestID was already submitted.
	Submit(ctx context.Context, requestID string, obs []diagnosis.Observation) (string, bool, error)

	// Get returns a stored diagnosis. Jobs still in flight come back with
	// repository.StatusPending.
	Get(ctx context.Context, id string) (repository.Record, error)

	// List returns the history, newest first.
	List(ctx context.Context, limit int) ([]repository.Record, error)

	// Profile returns the pet profile.
	Profile(ctx context.Context) (repository.Profile, error)

	// UpdateProfile applies a partial update and returns the result.
	UpdateProfile(ctx context.Context, patch repository.ProfilePatch) (repository.Profile, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	predictHandler   *PredictHandler
	diagnosesHandler *DiagnosesHandler
	profileHandler   *ProfileHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(deps),
		statsHandler:     NewStatsHandler(statsProvider),
		predictHandler:   NewPredictHandler(deps),
		diagnosesHandler: NewDiagnosesHandler(deps),
		profileHandler:   NewProfileHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("POST /predict", MetricsMiddleware(s.predictHandler.HandlePredict, "predict"))
	mux.HandleFunc("POST /diagnoses", MetricsMiddleware(s.diagnosesHandler.HandleSubmit, "diagnoses_submit"))
	mux.HandleFunc("GET /diagnoses", MetricsMiddleware(s.diagnosesHandler.HandleList, "diagnoses_list"))
	mux.HandleFunc("GET /diagnoses/{id}", MetricsMiddleware(s.diagnosesHandler.HandleGet, "diagnoses_get"))
	mux.HandleFunc("GET /profile", MetricsMiddleware(s.profileHandler.HandleGet, "profile_get"))
	mux.HandleFunc("PUT /profile", MetricsMiddleware(s.profileHandler.HandlePut, "profile_put"))
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

// writeKindError picks the status from the error kind.
func writeKindError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
