package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/patella/internal/domain/diagnosis"
	"github.com/okian/patella/internal/domain/features"
)

const maxBodyBytes = 4 << 20

// observationRequest is one frame: a precomputed feature vector or an
// annotated landmark record.
type observationRequest struct {
	Features []float64 `json:"features,omitempty"`
	features.Record
}

func (o observationRequest) observation() (diagnosis.Observation, error) {
	switch {
	case o.Features != nil && len(o.Annotations) > 0:
		return diagnosis.Observation{}, errors.New("features and annotation_info are mutually exclusive")
	case o.Features != nil:
		return diagnosis.Observation{Features: o.Features}, nil
	case len(o.Annotations) > 0:
		in := o.Input()
		return diagnosis.Observation{Input: &in}, nil
	}
	return diagnosis.Observation{}, errors.New("missing features or annotation_info")
}

// diagnosisRequest is the body of POST /predict and POST /diagnoses. It holds
// either a single observation inline or a list of frames.
type diagnosisRequest struct {
	RequestID string `json:"request_id,omitempty"`
	observationRequest
	Frames []observationRequest `json:"frames,omitempty"`
}

func (r diagnosisRequest) observations() ([]diagnosis.Observation, error) {
	if len(r.Frames) == 0 {
		o, err := r.observation()
		if err != nil {
			return nil, err
		}
		return []diagnosis.Observation{o}, nil
	}
	if r.Features != nil || len(r.Annotations) > 0 {
		return nil, errors.New("frames cannot be combined with a top-level observation")
	}
	obs := make([]diagnosis.Observation, 0, len(r.Frames))
	for i, f := range r.Frames {
		o, err := f.observation()
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		obs = append(obs, o)
	}
	return obs, nil
}

// decodeDiagnosisRequest reads a diagnosisRequest. A bare JSON array is
// accepted as a single feature vector.
func decodeDiagnosisRequest(w http.ResponseWriter, r *http.Request) (diagnosisRequest, error) {
	var req diagnosisRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return req, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return req, errors.New("empty request body")
	}
	if body[0] == '[' {
		if err := json.Unmarshal(body, &req.Features); err != nil {
			return req, err
		}
		if req.Features == nil {
			return req, errors.New("feature array must not be null")
		}
		return req, nil
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, err
	}
	return req, nil
}
