package classifier

import "errors"

var (
	// ErrUnavailable reports that no model is loaded.
	ErrUnavailable = errors.New("classifier unavailable")
	// ErrMalformedOutput reports a model response of the wrong shape.
	ErrMalformedOutput = errors.New("classifier returned malformed output")
)
