// Package ephemeral tracks messages that must be retracted after a while, such as
// "working on it" notices.
package ephemeral

import (
	"strconv"
	"sync"
	"time"
)

// DefaultTimeout is how long a notice stays up when nobody retracts it
const DefaultTimeout = 90 * time.Second

type entry struct {
	timer   *time.Timer
	retract func()
}

// Tracker maps keys to pending retractions. The zero value is not usable; call New.
type Tracker struct {
	mu      sync.Mutex
	next    uint64
	entries map[string]*entry
}

func New() *Tracker {
	return &Tracker{entries: make(map[string]*entry)}
}

// Watch schedules retract to run after timeout and returns the key that cancels it early.
// A non-positive timeout uses DefaultTimeout.
func (t *Tracker) Watch(retract func(), timeout time.Duration) string {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	key := strconv.FormatUint(t.next, 36)
	t.next++
	e := &entry{retract: retract}
	t.entries[key] = e
	e.timer = time.AfterFunc(timeout, func() { t.fire(key) })
	return key
}

// Cancel retracts the entry for key right away.
// It returns false when the key is unknown or has already fired.
func (t *Tracker) Cancel(key string) bool {
	e := t.take(key)
	if e == nil {
		return false
	}
	e.timer.Stop()
	e.retract()
	return true
}

// Len is the number of pending entries
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracker) fire(key string) {
	if e := t.take(key); e != nil {
		e.retract()
	}
}

// take removes and returns the entry; whoever takes it owns the retraction.
func (t *Tracker) take(key string) *entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return nil
	}
	delete(t.entries, key)
	return e
}
