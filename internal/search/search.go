// Package search implements the process-wide search-cursor handle registry:
// OPEN -> EXHAUSTED -> CLOSED (or OPEN -> CLOSED on early close), handles
// dense non-zero integers unique for the process lifetime. Used both for
// plain credential search and, with a different item type, for per-referent
// proof-request search.
package search

import (
	"sync"

	"anoncreds/pkg/helpers"
)

type state int

const (
	stateOpen state = iota
	stateExhausted
	stateClosed
)

// Cursor pages through a fixed, already-materialized item slice. total_count
// is fixed at open time, matching the advisory (not recomputed) semantics.
type Cursor[T any] struct {
	mu         sync.Mutex
	items      []T
	pos        int
	state      state
	TotalCount int
}

// NewCursor opens a cursor over items.
func NewCursor[T any](items []T) *Cursor[T] {
	return &Cursor[T]{items: items, state: stateOpen, TotalCount: len(items)}
}

// Fetch returns the next up-to-count items. Fetching a closed cursor fails;
// fetching an exhausted one returns an empty batch without error.
func (c *Cursor[T]) Fetch(count int) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateClosed {
		return nil, helpers.ErrInvalidHandle
	}
	if c.state == stateExhausted {
		return []T{}, nil
	}

	end := c.pos + count
	if end > len(c.items) {
		end = len(c.items)
	}
	batch := make([]T, end-c.pos)
	copy(batch, c.items[c.pos:end])
	c.pos = end

	if c.pos >= len(c.items) {
		c.state = stateExhausted
	}
	return batch, nil
}

// Close marks the cursor CLOSED; any state transitions to CLOSED.
func (c *Cursor[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateClosed
}

// Registry is the process-wide handle table for one cursor item type.
type Registry[T any] struct {
	mu      sync.Mutex
	cursors map[int64]*Cursor[T]
	next    int64
}

// NewRegistry builds an empty Registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{cursors: make(map[int64]*Cursor[T])}
}

// Open allocates a new handle for items and returns it along with the
// advisory total count.
func (r *Registry[T]) Open(items []T) (handle int64, totalCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	handle = r.next
	r.cursors[handle] = NewCursor(items)
	return handle, len(items)
}

func (r *Registry[T]) lookup(handle int64) (*Cursor[T], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.cursors[handle]
	return cur, ok
}

// Fetch pages the cursor behind handle.
func (r *Registry[T]) Fetch(handle int64, count int) ([]T, error) {
	cur, ok := r.lookup(handle)
	if !ok {
		return nil, helpers.ErrInvalidHandle
	}
	return cur.Fetch(count)
}

// Close invalidates handle, removing it from the registry. Closing an
// already-closed or unknown handle fails with InvalidHandle.
func (r *Registry[T]) Close(handle int64) error {
	r.mu.Lock()
	cur, ok := r.cursors[handle]
	if ok {
		delete(r.cursors, handle)
	}
	r.mu.Unlock()
	if !ok {
		return helpers.ErrInvalidHandle
	}
	cur.Close()
	return nil
}
