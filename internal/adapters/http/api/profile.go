package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/patella/internal/adapters/repository"
)

// ProfileHandler serves the pet profile.
type ProfileHandler struct {
	deps Dependencies
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(deps Dependencies) *ProfileHandler {
	return &ProfileHandler{deps: deps}
}

// HandleGet handles GET /profile requests.
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_profile"
	p, err := h.deps.Profile(r.Context())
	if err != nil {
		writeKindError(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandlePut handles PUT /profile requests. Only the fields present in the
// body change; a null photo_base64 removes the photo.
func (h *ProfileHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_profile"
	patch, err := decodeProfilePatch(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.deps.UpdateProfile(r.Context(), patch)
	if err != nil {
		writeKindError(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// decodeProfilePatch keeps absent fields distinct from null ones, which a
// struct decode cannot do.
func decodeProfilePatch(w http.ResponseWriter, r *http.Request) (repository.ProfilePatch, error) {
	var patch repository.ProfilePatch
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return patch, err
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return patch, errors.New("empty request body")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return patch, err
	}
	if fields == nil {
		return patch, errors.New("profile must be a JSON object")
	}

	for key, dst := range map[string]**string{
		"name":  &patch.Name,
		"breed": &patch.Breed,
		"age":   &patch.Age,
	} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		v, err := optionalString(raw)
		if err != nil {
			return patch, fmt.Errorf("%s: %w", key, err)
		}
		if v == nil {
			// null resets the field to its default.
			v = new(string)
		}
		*dst = v
	}

	if raw, ok := fields["photo_base64"]; ok {
		v, err := optionalString(raw)
		if err != nil {
			return patch, fmt.Errorf("photo_base64: %w", err)
		}
		if v == nil {
			patch.ClearPhoto = true
		} else {
			patch.Photo = v
		}
	}
	return patch, nil
}

// optionalString decodes a JSON string or null. null yields nil.
func optionalString(raw json.RawMessage) (*string, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.New("must be a string or null")
	}
	return &s, nil
}
