package model

import "errors"

// Sentinel error kinds for the diagnosis core. These allow errors.Is checks
// by callers; neither is retryable.
var (
	// ErrValidation reports a probability or feature vector of the wrong length.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyInput reports an aggregation request without observations.
	ErrEmptyInput = errors.New("empty input")
)
