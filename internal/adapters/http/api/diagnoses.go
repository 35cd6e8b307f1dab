package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/patella/internal/adapters/mq/queue"
	"github.com/okian/patella/internal/adapters/repository"
)

// DiagnosesHandler handles asynchronous submissions and the history.
type DiagnosesHandler struct {
	deps Dependencies
}

// NewDiagnosesHandler creates a new diagnoses handler.
func NewDiagnosesHandler(deps Dependencies) *DiagnosesHandler {
	return &DiagnosesHandler{deps: deps}
}

type ackResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type listResponse struct {
	Diagnoses []repository.Record `json:"diagnoses"`
	Count     int                 `json:"count"`
}

// HandleSubmit handles POST /diagnoses requests.
func (h *DiagnosesHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_diagnosis"
	req, err := decodeDiagnosisRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.RequestID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing request_id")))
		return
	}
	obs, err := req.observations()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	id, duplicate, err := h.deps.Submit(r.Context(), req.RequestID, obs)
	if err != nil {
		if errors.Is(err, queue.ErrFull) {
			err = WrapKind(op, ErrBackpressure, err)
		} else {
			err = fmt.Errorf("%s: %w", op, err)
		}
		writeKindError(w, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{ID: id, Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{ID: id, Status: "accepted"})
}

// HandleGet handles GET /diagnoses/{id} requests.
func (h *DiagnosesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_diagnosis"
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	rec, err := h.deps.Get(r.Context(), id)
	if err != nil {
		writeKindError(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	if rec.Status == repository.StatusPending {
		writeJSON(w, http.StatusAccepted, rec)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleList handles GET /diagnoses?limit=N requests.
func (h *DiagnosesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_diagnoses"
	limit := repository.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", v)))
			return
		}
		limit = n
	}
	recs, err := h.deps.List(r.Context(), limit)
	if err != nil {
		writeKindError(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	if recs == nil {
		recs = []repository.Record{}
	}
	writeJSON(w, http.StatusOK, listResponse{Diagnoses: recs, Count: len(recs)})
}
