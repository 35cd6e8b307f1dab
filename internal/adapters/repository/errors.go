package repository

import "errors"

// Sentinel kinds for history errors.
var (
	ErrNotFound     = errors.New("diagnosis not found")
	ErrInvalidLimit = errors.New("invalid history limit")
	ErrDuplicateID  = errors.New("diagnosis id already stored")
)
