// Package repository stores the diagnosis history and the pet profile.
package repository

import (
	"context"
	"time"

	"github.com/okian/patella/internal/domain/model"
	"github.com/okian/patella/internal/domain/report"
)

// Record status values.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// DefaultLimit is the number of records kept when no limit is configured.
const DefaultLimit = 100

// Record is one stored diagnosis.
type Record struct {
	ID             string         `json:"id"`
	RequestID      string         `json:"request_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Status         string         `json:"status"`
	Class          model.Severity `json:"class"`
	Label          string         `json:"label,omitempty"`
	Confidence     float64        `json:"confidence"`
	Frames         int            `json:"frames"`
	Representative int            `json:"representative"`
	Report         *report.Report `json:"report,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Store provides read/write access to the diagnosis history and the
// profile.
type Store interface {
	ProfileStore

	// Append stores r, trimming the oldest records beyond the retention
	// limit. Storing an ID twice is ErrDuplicateID.
	Append(ctx context.Context, r Record) error

	// Get returns the record with the given ID or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)

	// List returns up to limit records, newest first. limit must be positive.
	List(ctx context.Context, limit int) ([]Record, error)

	// Count returns the number of retained records.
	Count(ctx context.Context) (int, error)

	Close() error
}
