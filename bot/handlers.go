// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

package bot

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/stats"
)

// gate decides whether a plugin's handler should see an event
type gate interface {
	NeedHandleEvent(name string, botID int64, ev event.Event) bool
}

type registration struct {
	handler Handler
	weight  int
	// owner is the plugin name, "" for internal handlers
	owner string
	key   string
	kind  event.Kind
}

// Bus keeps one weight-ordered handler chain per event kind
type Bus struct {
	mu        sync.RWMutex
	chains    map[event.Kind][]registration
	installed map[event.Kind]bool
	sources   []EventSource

	gate  gate
	stats *stats.Stats
}

// NewBus creates a bus that consults g before running plugin handlers.
// g may be nil, in which case every handler runs.
func NewBus(g gate, s *stats.Stats) *Bus {
	if s == nil {
		s = stats.New()
	}
	return &Bus{
		chains:    make(map[event.Kind][]registration),
		installed: make(map[event.Kind]bool),
		gate:      g,
		stats:     s,
	}
}

// Register adds a plugin handler for kind. Lower weights run first.
// It returns a key that Unregister accepts.
func (b *Bus) Register(owner string, kind event.Kind, h Handler, weight int) string {
	key := fmt.Sprintf("%s-%s-%s", owner, kind, uuid.NewString())
	b.add(registration{handler: h, weight: weight, owner: owner, key: key, kind: kind})
	log.Info().
		Str("plugin", owner).
		Stringer("kind", kind).
		Int("weight", weight).
		Msg("registered event handler")
	return key
}

// RegisterInternal adds a handler that no plugin owns. It always runs, whatever the
// state or scope of any plugin.
func (b *Bus) RegisterInternal(kind event.Kind, h Handler, weight int) string {
	key := fmt.Sprintf("%s-%s", kind, uuid.NewString())
	b.add(registration{handler: h, weight: weight, key: key, kind: kind})
	log.Info().
		Stringer("kind", kind).
		Int("weight", weight).
		Msg("registered internal event handler")
	return key
}

func (b *Bus) add(r registration) {
	b.mu.Lock()
	old := b.chains[r.kind]
	// chains are replaced, never edited, so a running dispatch keeps its snapshot
	chain := make([]registration, len(old), len(old)+1)
	copy(chain, old)
	chain = append(chain, r)
	sort.SliceStable(chain, func(i, j int) bool { return chain[i].weight < chain[j].weight })
	b.chains[r.kind] = chain

	install := !b.installed[r.kind]
	b.installed[r.kind] = true
	sources := append([]EventSource{}, b.sources...)
	b.mu.Unlock()

	if install {
		for _, src := range sources {
			src.RegisterEvent(r.kind, b.callback())
		}
	}
}

// Unregister removes the handler with the given key
func (b *Bus) Unregister(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for kind, old := range b.chains {
		for i, r := range old {
			if r.key != key {
				continue
			}
			chain := make([]registration, 0, len(old)-1)
			chain = append(chain, old[:i]...)
			chain = append(chain, old[i+1:]...)
			b.chains[kind] = chain
			return true
		}
	}
	return false
}

// UnregisterOwner removes every handler the named plugin registered and reports how many
func (b *Bus) UnregisterOwner(owner string) int {
	if owner == "" {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for kind, old := range b.chains {
		chain := make([]registration, 0, len(old))
		for _, r := range old {
			if r.owner == owner {
				n++
				continue
			}
			chain = append(chain, r)
		}
		b.chains[kind] = chain
	}
	return n
}

// Attach connects an event source. Every kind that has handlers, now or later,
// gets exactly one callback installed with src.
func (b *Bus) Attach(src EventSource) {
	b.mu.Lock()
	b.sources = append(b.sources, src)
	kinds := make([]event.Kind, 0, len(b.installed))
	for k := range b.installed {
		kinds = append(kinds, k)
	}
	b.mu.Unlock()

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		src.RegisterEvent(k, b.callback())
	}
}

func (b *Bus) callback() Callback {
	return b.Dispatch
}

// Len is the number of handlers registered for kind
func (b *Bus) Len(kind event.Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.chains[kind])
}

// Dispatch runs the chain for ev.Kind() in weight order and returns once it is done.
// Plugin handlers are skipped when their plugin is disabled or out of scope.
// A Prevent stops the chain. An error stops the chain and is returned.
func (b *Bus) Dispatch(ctx context.Context, conn Connector, ev event.Event) error {
	kind := ev.Kind()
	b.mu.RLock()
	chain := b.chains[kind]
	b.mu.RUnlock()

	log.Debug().Stringer("kind", kind).Int("handlers", len(chain)).Msg("dispatching event")
	b.stats.EventsDispatched.WithLabelValues(kind.String()).Inc()

	var botID int64
	if conn != nil {
		botID = conn.SelfID()
	}

	for _, r := range chain {
		label := stats.PluginLabel(r.owner)
		if r.owner != "" && b.gate != nil && !b.gate.NeedHandleEvent(r.owner, botID, ev) {
			b.stats.HandlersSkipped.WithLabelValues(kind.String(), label).Inc()
			continue
		}
		log.Debug().Str("plugin", label).Stringer("kind", kind).Msg("calling handler")
		b.stats.HandlersInvoked.WithLabelValues(kind.String(), label).Inc()

		act, err := r.handler(ctx, conn, ev)
		if err != nil {
			b.stats.HandlerErrors.WithLabelValues(kind.String(), label).Inc()
			return fmt.Errorf("%s handler from %s: %w", kind, label, err)
		}
		if act == Prevent {
			b.stats.EventsPrevented.WithLabelValues(kind.String(), label).Inc()
			return nil
		}
	}
	return nil
}
