// Package dedupe makes asynchronous diagnosis submissions idempotent by
// mapping client request IDs to the diagnosis they created.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Deduper tracks request IDs to ensure at-most-once processing.
type Deduper interface {
	// Claim atomically binds requestID to diagnosisID unless it is already
	// bound. It returns the bound diagnosis ID and whether the request was a
	// duplicate.
	Claim(ctx context.Context, requestID, diagnosisID string) (string, bool)

	// Release forgets requestID so it can be submitted again. It is used
	// when a claimed request could not be enqueued.
	Release(ctx context.Context, requestID string)

	// Lookup returns the diagnosis bound to requestID.
	Lookup(ctx context.Context, requestID string) (string, bool)

	Size() int64
}

type entry struct {
	requestID   string
	diagnosisID string
}

// inMemoryDeduper keeps claims in insertion order and evicts the oldest
// claim once maxSize is reached. maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	claims  map[string]*list.Element
	order   *list.List // front is newest
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		claims:  make(map[string]*list.Element),
		order:   list.New(),
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, requestID, diagnosisID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.claims[requestID]; ok {
		return el.Value.(*entry).diagnosisID, true
	}
	if d.maxSize > 0 && len(d.claims) >= d.maxSize {
		d.evictOldest()
	}
	d.claims[requestID] = d.order.PushFront(&entry{requestID: requestID, diagnosisID: diagnosisID})
	return diagnosisID, false
}

func (d *inMemoryDeduper) Release(_ context.Context, requestID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.claims[requestID]; ok {
		d.order.Remove(el)
		delete(d.claims, requestID)
	}
}

func (d *inMemoryDeduper) Lookup(_ context.Context, requestID string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.claims[requestID]; ok {
		return el.Value.(*entry).diagnosisID, true
	}
	return "", false
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Back()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.claims, el.Value.(*entry).requestID)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.claims))
}
