// Package quotecache implements the quote cache (C3): a short-TTL store
// binding a quote id to a pre-computed route payload, consumed at most
// once by a later execute-quote call.
package quotecache

import (
	"sync"
	"time"

	"github.com/dexgate/gateway/internal/model"
	"github.com/google/uuid"
)

// Entry is a cached quote. Route holds the opaque computed route payload
// (model.QuoteResult plus whatever the DEX route builder attached); it is
// never mutated between creation and consumption.
type Entry struct {
	QuoteID         string
	Route           model.QuoteResult
	OriginalRequest model.SwapRequest
	CreatedAt       time.Time
	TTL             time.Duration
}

func (e *Entry) expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) > e.TTL
}

// Cache is the process-wide quote store.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	ttl     time.Duration
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{
		entries: make(map[string]*Entry),
		ttl:     ttl,
	}
}

// Put stores a route payload under a new quote id and returns it.
func (c *Cache) Put(req model.SwapRequest, route model.QuoteResult) string {
	id := uuid.New().String()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = &Entry{
		QuoteID:         id,
		Route:           route,
		OriginalRequest: req,
		CreatedAt:       time.Now(),
		TTL:             c.ttl,
	}
	return id
}

// Get returns the entry for quoteID, or false if absent or expired (Q2).
// An expired entry is lazily evicted on lookup.
func (c *Cache) Get(quoteID string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[quoteID]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(c.entries, quoteID)
		return nil, false
	}
	return e, true
}

// Delete removes a quote id unconditionally (Q1: called on CONFIRMED).
func (c *Cache) Delete(quoteID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, quoteID)
}
