package history

import (
	"container/ring"
	"sync"
	"time"
)

type entry struct {
	key string
	at  time.Time
}

// History is a ring buffer of recently seen keys. A key is forgotten once it
// is older than the ttl or once newer keys push it out of the ring.
type History struct {
	mu   sync.Mutex
	r    *ring.Ring
	keys map[string]time.Time
	ttl  time.Duration

	// Now is the clock, time.Now unless replaced
	Now func() time.Time
}

// New returns a history of sz size. A ttl of zero never expires keys.
func New(sz int, ttl time.Duration) *History {
	return &History{
		r:    ring.New(sz),
		keys: make(map[string]time.Time, sz),
		ttl:  ttl,
		Now:  time.Now,
	}
}

// Seen reports whether key is still remembered
func (h *History) Seen(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fresh(key, h.Now())
}

func (h *History) fresh(key string, now time.Time) bool {
	at, ok := h.keys[key]
	return ok && (h.ttl <= 0 || now.Sub(at) < h.ttl)
}

// CheckOrAdd reports whether key is still remembered, and remembers it when it is not
func (h *History) CheckOrAdd(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.Now()
	if h.fresh(key, now) {
		return true
	}
	h.append(key, now)
	return false
}

func (h *History) append(key string, now time.Time) {
	if old, ok := h.r.Value.(entry); ok && h.keys[old.key].Equal(old.at) {
		delete(h.keys, old.key)
	}
	h.r.Value = entry{key: key, at: now}
	h.r = h.r.Next()
	h.keys[key] = now
}

// Last gets the most recently added key, "" when empty
func (h *History) Last() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if e, ok := h.r.Prev().Value.(entry); ok {
		return e.key
	}
	return ""
}

// Len is the number of keys remembered, expired or not
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.keys)
}
