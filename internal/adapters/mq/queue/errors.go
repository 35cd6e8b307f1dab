package queue

import "errors"

var (
	// ErrFull reports that the queue is at capacity.
	ErrFull = errors.New("queue full")
	// ErrClosed reports an enqueue after Close.
	ErrClosed = errors.New("queue closed")
)
