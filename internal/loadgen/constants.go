package loadgen

import "time"

// Record statuses reported by the service.
const (
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// Submission outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeFailed    = "failed"
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner defaults.
const (
	DefaultFrames        = 3
	DefaultPollInterval  = 50 * time.Millisecond
	DefaultPollTimeout   = 30 * time.Second
	PercentageMultiplier = 100
)
