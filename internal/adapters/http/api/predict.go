package api

import (
	"fmt"
	"net/http"

	"github.com/okian/patella/internal/domain/classifier"
	"github.com/okian/patella/internal/domain/model"
	"github.com/okian/patella/internal/domain/report"
)

// PredictHandler runs synchronous diagnoses.
type PredictHandler struct {
	deps Dependencies
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps Dependencies) *PredictHandler {
	return &PredictHandler{deps: deps}
}

type predictResponse struct {
	report.Report
	Diagnosis model.BatchDiagnosis `json:"diagnosis"`
	ElapsedMS float64              `json:"elapsed_ms"`
}

// HandlePredict handles POST /predict.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if !h.deps.Ready() {
		writeError(w, http.StatusServiceUnavailable, "unavailable", NewKind(op, classifier.ErrUnavailable))
		return
	}
	req, err := decodeDiagnosisRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	obs, err := req.observations()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Predict(r.Context(), obs)
	if err != nil {
		writeKindError(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{
		Report:    res.Report,
		Diagnosis: res.Diagnosis,
		ElapsedMS: float64(res.Elapsed.Microseconds()) / 1000,
	})
}
