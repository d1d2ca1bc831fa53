package httpserver

import (
	"sync"

	"github.com/lithammer/shortuuid/v4"

	"anoncreds/pkg/helpers"
)

// cursors maps the opaque tokens this HTTP surface hands callers to the
// dense int64 search handles internal/search and internal/resolver use
// internally. The command-surface proper (spec.md's native bindings) deals
// in those integers directly; a paged HTTP API gives out short
// unguessable-looking tokens instead so a handle can't be walked by a
// caller incrementing an id.
type cursors struct {
	mu   sync.Mutex
	byID map[string]int64
}

func newCursors() *cursors {
	return &cursors{byID: make(map[string]int64)}
}

// open mints a fresh token for handle.
func (c *cursors) open(handle int64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	token := shortuuid.New()
	c.byID[token] = handle
	return token
}

// resolve looks up the handle a token names.
func (c *cursors) resolve(token string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	handle, ok := c.byID[token]
	if !ok {
		return 0, helpers.ErrInvalidHandle
	}
	return handle, nil
}

// close forgets token, mirroring the underlying registry's Close.
func (c *cursors) close(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byID, token)
}
