// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

package bot

import (
	"context"
	"math"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/velour/catqq/bot/ephemeral"
	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/scope"
	"github.com/velour/catqq/bot/stats"
	"github.com/velour/catqq/config"
)

// Bot ties together everything one host process needs: the event bus, the plugin
// registry, the command router and the notice tracker.
type Bot struct {
	Bus      *Bus
	Registry *Registry
	Router   *Router
	Tracker  *ephemeral.Tracker
	Stats    *stats.Stats

	Config  *config.Config
	Version string
}

// New creates a Bot for cfg. A nil cfg serves every bot account and keeps plugin
// data in memory.
func New(cfg *config.Config) *Bot {
	if cfg == nil {
		cfg = &config.Config{}
	}
	s := stats.New()
	t := ephemeral.New()
	s.TrackPending(t.Len)

	b := &Bot{
		Tracker: t,
		Stats:   s,
		Config:  cfg,
	}
	b.Registry = NewRegistry(b)
	b.Bus = NewBus(b.Registry, s)
	b.Router = NewRouter(b.Bus, b.Registry, t, s)
	if len(cfg.Bots) > 0 {
		b.allowBots(cfg.Bots)
	}
	return b
}

// allowBots drops events for accounts outside bots before any other handler sees them
func (b *Bot) allowBots(bots []int64) {
	allowed := make(map[int64]struct{}, len(bots))
	for _, id := range bots {
		allowed[id] = struct{}{}
	}
	gate := func(ctx context.Context, conn Connector, ev event.Event) (Action, error) {
		if conn == nil {
			return Pass, nil
		}
		if _, ok := allowed[conn.SelfID()]; !ok {
			log.Debug().Int64("bot", conn.SelfID()).Stringer("kind", ev.Kind()).Msg("bot not in allow-list")
			return Prevent, nil
		}
		return Pass, nil
	}
	for _, k := range event.Kinds() {
		b.Bus.RegisterInternal(k, gate, math.MinInt)
	}
}

// Attach starts delivering events from src
func (b *Bot) Attach(src EventSource) {
	b.Bus.Attach(src)
}

// Register adds an event handler owned by the named plugin
func (b *Bot) Register(owner string, kind event.Kind, h Handler, weight int) string {
	return b.Bus.Register(owner, kind, h, weight)
}

// RegisterCommand adds commands owned by the named plugin
func (b *Bot) RegisterCommand(owner string, cmds []string, kinds []event.Kind, h CommandHandler) error {
	return b.Router.RegisterCommand(owner, cmds, kinds, h)
}

// BuildCreate wraps a plugin factory into a loader
func (b *Bot) BuildCreate(f Factory) Loader {
	return b.Registry.BuildCreate(f)
}

// SetEnabled enables or disables the named plugin
func (b *Bot) SetEnabled(ctx context.Context, name string, enable bool) error {
	return b.Registry.SetEnabled(ctx, name, enable)
}

// DataDir is where the named plugin keeps its files, "" when plugin data is kept in memory
func (b *Bot) DataDir(name string) string {
	if b.Config.Runtime == "" {
		return ""
	}
	return filepath.Join(b.Config.Runtime, name)
}

// Load builds every configured plugin whose type is in catalog. A plugin that fails
// to load is logged and skipped. It returns how many plugins loaded.
func (b *Bot) Load(ctx context.Context, catalog map[string]Factory, plugins map[string]config.PluginConfig) int {
	names := make([]string, 0, len(plugins))
	for name := range plugins {
		names = append(names, name)
	}
	sort.Strings(names)

	loaded := 0
	for _, name := range names {
		pc := plugins[name]
		f, ok := catalog[pc.Plugin]
		if !ok {
			log.Error().Str("plugin", name).Msgf("cannot load plugin: no plugin type %q", pc.Plugin)
			continue
		}
		services := make([]scope.ID, 0, len(pc.Service))
		for _, s := range pc.Service {
			id, err := scope.Parse(s)
			if err != nil {
				log.Warn().Err(err).Str("plugin", name).Msg("ignoring service entry")
				continue
			}
			services = append(services, id)
		}
		if err := b.BuildCreate(f)(ctx, name, pc.Plugin, pc.Config, pc.Bot, services); err != nil {
			log.Error().Err(err).Str("plugin", name).Msg("cannot load plugin")
			continue
		}
		loaded++
	}
	log.Info().Msgf("loaded %d of %d plugins", loaded, len(plugins))
	return loaded
}

// EnableAll enables every loaded plugin in load order. Failures are logged and the
// plugin stays disabled.
func (b *Bot) EnableAll(ctx context.Context) {
	for _, name := range b.Registry.Names() {
		if err := b.SetEnabled(ctx, name, true); err != nil {
			log.Error().Err(err).Str("plugin", name).Msg("plugin did not start")
		}
	}
}
