package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/patella/pkg/metrics"
)

// MemoryStore keeps the history and the profile in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record // oldest first
	byID    map[string]int
	limit   int
	profile Profile
}

// NewMemoryStore creates an empty in-memory history.
func NewMemoryStore(opts ...Option) *MemoryStore {
	cfg := newStoreConfig(opts)
	return &MemoryStore{
		byID:    make(map[string]int),
		limit:   cfg.limit,
		profile: DefaultProfile(),
	}
}

func (s *MemoryStore) Append(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[r.ID]; ok {
		return fmt.Errorf("append %s: %w", r.ID, ErrDuplicateID)
	}
	s.records = append(s.records, r)
	if over := len(s.records) - s.limit; over > 0 {
		s.records = append(s.records[:0:0], s.records[over:]...)
		s.reindex()
	} else {
		s.byID[r.ID] = len(s.records) - 1
	}
	metrics.UpdateHistoryRecords(len(s.records))
	return nil
}

// reindex must be called with s.mu held.
func (s *MemoryStore) reindex() {
	s.byID = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.byID[r.ID] = i
	}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return Record{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return s.records[i], nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("list %d: %w", limit, ErrInvalidLimit)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := min(limit, len(s.records))
	out := make([]Record, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *MemoryStore) Profile(ctx context.Context) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyProfile(s.profile), nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, patch ProfilePatch) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = patch.Apply(s.profile)
	return copyProfile(s.profile), nil
}

// copyProfile detaches the photo pointer from the stored profile.
func copyProfile(p Profile) Profile {
	if p.Photo != nil {
		photo := *p.Photo
		p.Photo = &photo
	}
	return p
}

func (s *MemoryStore) Close() error { return nil }
