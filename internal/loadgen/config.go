// Package loadgen drives a running diagnosis service with synthetic subjects
// and reports how the asynchronous pipeline behaved.
package loadgen

import (
	"time"

	"github.com/okian/patella/internal/domain/features"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL         string        // Base URL of the service
	Subjects        int           // Number of subjects to submit
	Frames          int           // Frames per subject
	Workers         int           // Number of concurrent workers
	Timeout         time.Duration // HTTP request timeout
	DropProbability float64       // Chance that a landmark is missing from a frame
	DuplicateRatio  float64       // Share of subjects resubmitted under the same request id
	Seed            int64         // Seed for the synthetic posture noise; 0 picks one
	PollInterval    time.Duration // Delay between result polls
	PollTimeout     time.Duration // Give up on a pending diagnosis after this long
	OutputFile      string        // Optional JSON dump of the generated subjects
	Verbose         bool          // Enable verbose logging
}

// Subject is one diagnosis request.
type Subject struct {
	RequestID string            `json:"request_id"`
	Frames    []features.Record `json:"frames"`
}

// AckResponse is the acknowledgement of POST /diagnoses.
type AckResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// DiagnosisRecord is the subset of a stored diagnosis the tool inspects.
type DiagnosisRecord struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Class      int     `json:"class"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Frames     int     `json:"frames"`
	Error      string  `json:"error"`
}

// Stats holds run statistics.
type Stats struct {
	SubjectsGenerated int
	Submitted         int
	Accepted          int
	Duplicate         int
	Rejected          int // backpressure
	Failed            int
	Completed         int
	DiagnosisFailed   int
	Unresolved        int
	Listed            int
	Classes           map[string]int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
