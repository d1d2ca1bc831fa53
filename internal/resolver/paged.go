package resolver

import (
	"sync"

	"anoncreds/internal/search"
	"anoncreds/pkg/helpers"
)

// PagedSearch is one open prover_search_credentials_for_proof_req call: a
// composite handle bundling one search.Cursor per referent, so
// fetch(item_referent, count) advances only that referent's cursor.
type PagedSearch struct {
	attrs map[string]*search.Cursor[CredInfo]
	preds map[string]*search.Cursor[PredCredInfo]
}

func newPagedSearch(resolved *Resolved) *PagedSearch {
	p := &PagedSearch{
		attrs: make(map[string]*search.Cursor[CredInfo], len(resolved.Attrs)),
		preds: make(map[string]*search.Cursor[PredCredInfo], len(resolved.Predicates)),
	}
	for referent, items := range resolved.Attrs {
		p.attrs[referent] = search.NewCursor(items)
	}
	for referent, items := range resolved.Predicates {
		p.preds[referent] = search.NewCursor(items)
	}
	return p
}

// PagedRegistry is the process-wide handle table for paged proof-request
// searches.
type PagedRegistry struct {
	mu      sync.Mutex
	next    int64
	entries map[int64]*PagedSearch
}

// NewPagedRegistry builds an empty PagedRegistry.
func NewPagedRegistry() *PagedRegistry {
	return &PagedRegistry{entries: make(map[int64]*PagedSearch)}
}

// Open registers a new composite handle over an already-resolved proof
// request.
func (r *PagedRegistry) Open(resolved *Resolved) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	handle := r.next
	r.entries[handle] = newPagedSearch(resolved)
	return handle
}

func (r *PagedRegistry) lookup(handle int64) (*PagedSearch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[handle]
	return entry, ok
}

// FetchAttrs advances only itemReferent's attribute cursor under handle.
func (r *PagedRegistry) FetchAttrs(handle int64, itemReferent string, count int) ([]CredInfo, error) {
	entry, ok := r.lookup(handle)
	if !ok {
		return nil, helpers.ErrInvalidHandle
	}
	cur, ok := entry.attrs[itemReferent]
	if !ok {
		return nil, helpers.ErrInvalidStructure
	}
	return cur.Fetch(count)
}

// FetchPredicates advances only itemReferent's predicate cursor under
// handle.
func (r *PagedRegistry) FetchPredicates(handle int64, itemReferent string, count int) ([]PredCredInfo, error) {
	entry, ok := r.lookup(handle)
	if !ok {
		return nil, helpers.ErrInvalidHandle
	}
	cur, ok := entry.preds[itemReferent]
	if !ok {
		return nil, helpers.ErrInvalidStructure
	}
	return cur.Fetch(count)
}

// Close invalidates handle.
func (r *PagedRegistry) Close(handle int64) error {
	r.mu.Lock()
	_, ok := r.entries[handle]
	if ok {
		delete(r.entries, handle)
	}
	r.mu.Unlock()
	if !ok {
		return helpers.ErrInvalidHandle
	}
	return nil
}
