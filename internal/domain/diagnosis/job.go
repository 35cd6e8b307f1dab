package diagnosis

import "time"

// Job is an asynchronous diagnosis request.
type Job struct {
	// ID is the diagnosis ID the result is stored under.
	ID string
	// RequestID is the client-supplied idempotency key.
	RequestID    string
	Observations []Observation
	SubmittedAt  time.Time
}
