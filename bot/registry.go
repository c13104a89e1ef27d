package bot

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/scope"
)

// State is where a plugin is in its lifecycle
type State int

const (
	// Loaded plugins have been built but never enabled
	Loaded State = iota
	Enabled
	Disabled
)

func (s State) String() string {
	switch s {
	case Loaded:
		return "loaded"
	case Enabled:
		return "enabled"
	case Disabled:
		return "disabled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Plugin is what a plugin factory hands back. Every field is optional.
type Plugin struct {
	OnEnable  func(ctx context.Context) error
	OnDisable func(ctx context.Context) error
	// Help returns anything msg.From accepts, or nil for no help
	Help func(req HelpRequest) any
	// NoClose plugins can never be disabled
	NoClose bool
}

// HelpRequest says who is asking for help, and where
type HelpRequest struct {
	Sender  int64
	Bot     int64
	GroupID int64
}

// PluginContext is everything a plugin factory gets to work with
type PluginContext struct {
	Name   string
	Type   string
	Config yaml.Node

	Bots []int64
	// BotScope is nil when the plugin serves every bot
	BotScope map[int64]struct{}
	Services []scope.ID
	// ServiceScope is nil when the plugin serves every target
	ServiceScope scope.Set

	Logger zerolog.Logger
	Bot    *Bot
}

// Decode unpacks the plugin's config section into v. A missing section leaves v alone.
func (pc *PluginContext) Decode(v any) error {
	if pc.Config.Kind == 0 {
		return nil
	}
	return pc.Config.Decode(v)
}

// ServesBot reports whether the plugin is configured for the bot id
func (pc *PluginContext) ServesBot(id int64) bool {
	if pc.BotScope == nil {
		return true
	}
	_, ok := pc.BotScope[id]
	return ok
}

// Register adds an event handler owned by this plugin
func (pc *PluginContext) Register(kind event.Kind, h Handler, weight int) string {
	return pc.Bot.Bus.Register(pc.Name, kind, h, weight)
}

// RegisterCommand adds commands owned by this plugin
func (pc *PluginContext) RegisterCommand(cmds []string, kinds []event.Kind, h CommandHandler) error {
	return pc.Bot.Router.RegisterCommand(pc.Name, cmds, kinds, h)
}

// Factory builds a plugin instance
type Factory func(pc *PluginContext) (*Plugin, error)

// Loader is the uniform constructor the bootstrapper calls for every configured plugin
type Loader func(ctx context.Context, name, typ string, cfg yaml.Node, bots []int64, services []scope.ID) error

// PluginInfo is a read-only view of a registered plugin
type PluginInfo struct {
	Name     string
	Type     string
	State    State
	NoClose  bool
	Bots     []int64
	Services []scope.ID
	Help     func(req HelpRequest) any
}

// ServesBot reports whether the plugin is configured for the bot id
func (pi PluginInfo) ServesBot(id int64) bool {
	if len(pi.Bots) == 0 {
		return true
	}
	for _, b := range pi.Bots {
		if b == id {
			return true
		}
	}
	return false
}

type record struct {
	pc     *PluginContext
	plugin *Plugin
	state  State
}

func (r *record) covers(botID int64, id scope.ID) bool {
	if botID != 0 && !r.pc.ServesBot(botID) {
		return false
	}
	if id != "" && !r.pc.ServiceScope.Covers(id) {
		return false
	}
	return true
}

// Registry holds every loaded plugin and its lifecycle state
type Registry struct {
	mu      sync.RWMutex
	records map[string]*record
	order   []string
	isAdmin func(userID int64) bool

	bot *Bot
}

// NewRegistry creates an empty registry. Plugin contexts it builds point at b.
func NewRegistry(b *Bot) *Registry {
	return &Registry{
		records: make(map[string]*record),
		bot:     b,
	}
}

// SetAdminCheck installs the predicate that lets administrators bypass scope
// limits in private chats.
func (r *Registry) SetAdminCheck(f func(userID int64) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.isAdmin = f
}

// IsAdmin asks the installed admin predicate, false when there is none
func (r *Registry) IsAdmin(userID int64) bool {
	r.mu.RLock()
	f := r.isAdmin
	r.mu.RUnlock()
	return f != nil && f(userID)
}

// BuildCreate wraps a factory into a Loader. The loader fails when the name is taken
// or the factory fails, and stores nothing in either case. Handlers and commands a
// failing factory registered are removed again.
func (r *Registry) BuildCreate(f Factory) Loader {
	return func(ctx context.Context, name, typ string, cfg yaml.Node, bots []int64, services []scope.ID) error {
		if r.exists(name) {
			return fmt.Errorf("%w: %s", ErrDuplicatePlugin, name)
		}

		var botScope map[int64]struct{}
		if len(bots) > 0 {
			botScope = make(map[int64]struct{}, len(bots))
			for _, id := range bots {
				botScope[id] = struct{}{}
			}
		}
		pc := &PluginContext{
			Name:         name,
			Type:         typ,
			Config:       cfg,
			Bots:         bots,
			BotScope:     botScope,
			Services:     services,
			ServiceScope: scope.NewSet(services),
			Logger:       log.With().Str("plugin", name).Str("type", typ).Logger(),
			Bot:          r.bot,
		}

		p, err := f(pc)
		if err != nil {
			r.rollback(name)
			return fmt.Errorf("building plugin %s: %w", name, err)
		}
		if p == nil {
			p = &Plugin{}
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.records[name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicatePlugin, name)
		}
		r.records[name] = &record{pc: pc, plugin: p, state: Loaded}
		r.order = append(r.order, name)
		log.Info().Str("plugin", name).Str("type", typ).Msg("loaded plugin")
		return nil
	}
}

// rollback drops whatever a failed factory managed to register
func (r *Registry) rollback(name string) {
	if r.bot == nil {
		return
	}
	handlers, cmds := 0, 0
	if r.bot.Bus != nil {
		handlers = r.bot.Bus.UnregisterOwner(name)
	}
	if r.bot.Router != nil {
		cmds = r.bot.Router.Forget(name)
	}
	if handlers+cmds > 0 {
		log.Debug().Str("plugin", name).Msgf("dropped %d handlers and %d commands", handlers, cmds)
	}
}

func (r *Registry) exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[name]
	return ok
}

func (r *Registry) get(name string) *record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.records[name]
}

// SetEnabled moves a plugin to the enabled or disabled state, running its
// lifecycle callback. A failing callback leaves the plugin disabled.
func (r *Registry) SetEnabled(ctx context.Context, name string, enable bool) error {
	rec := r.get(name)
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	if !enable && rec.plugin.NoClose {
		return fmt.Errorf("%w: %s", ErrNoClose, name)
	}

	verb, target, fn := "enable", Enabled, rec.plugin.OnEnable
	if !enable {
		verb, target, fn = "disable", Disabled, rec.plugin.OnDisable
	}
	err := lifecycle(ctx, fn)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		rec.state = Disabled
		log.Error().Err(err).Str("plugin", name).Msgf("could not %s plugin", verb)
		return fmt.Errorf("could not %s plugin %s: %w", verb, name, err)
	}
	rec.state = target
	log.Info().Str("plugin", name).Msgf("plugin %sd", verb)
	return nil
}

func lifecycle(ctx context.Context, fn func(context.Context) error) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

// IsEnabled reports whether the named plugin is enabled
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	return ok && rec.state == Enabled
}

// NeedHandle reports whether the named plugin should handle something for botID in
// scope id. A zero botID or empty id is not checked. Channel scopes fall back to
// their guild.
func (r *Registry) NeedHandle(name string, botID int64, id scope.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[name]
	if !ok || rec.state != Enabled {
		return false
	}
	return rec.covers(botID, id)
}

// NeedHandleEvent is NeedHandle with the scope taken from ev. Private messages from
// an administrator skip the scope checks.
func (r *Registry) NeedHandleEvent(name string, botID int64, ev event.Event) bool {
	if !r.IsEnabled(name) {
		return false
	}
	if pm, ok := ev.(*event.PrivateMessage); ok && r.IsAdmin(pm.UserID) {
		return true
	}
	return r.NeedHandle(name, botID, ScopeOf(ev))
}

// ScopeOf derives the target scope of an event, "" for events without one
func ScopeOf(ev event.Event) scope.ID {
	switch e := ev.(type) {
	case *event.PrivateMessage:
		return scope.ForUser(e.UserID)
	case *event.GroupMessage:
		return scope.ForGroup(e.GroupID)
	case *event.ChannelMessage:
		return scope.ForChannel(e.GuildID, e.ChannelID)
	case *event.GroupUploadNotice:
		return scope.ForGroup(e.GroupID)
	case *event.GroupAdminNotice:
		return scope.ForGroup(e.GroupID)
	case *event.GroupDecreaseNotice:
		return scope.ForGroup(e.GroupID)
	case *event.GroupIncreaseNotice:
		return scope.ForGroup(e.GroupID)
	case *event.GroupBanNotice:
		return scope.ForGroup(e.GroupID)
	case *event.GroupRecallNotice:
		return scope.ForGroup(e.GroupID)
	case *event.GroupRequest:
		return scope.ForGroup(e.GroupID)
	case *event.FriendAddNotice:
		return scope.ForUser(e.UserID)
	case *event.FriendRecallNotice:
		return scope.ForUser(e.UserID)
	case *event.FriendRequest:
		return scope.ForUser(e.UserID)
	}
	return ""
}

// Names lists plugins in load order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.order...)
}

// Plugins describes every plugin in load order
func (r *Registry) Plugins() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PluginInfo, 0, len(r.order))
	for _, name := range r.order {
		rec := r.records[name]
		out = append(out, PluginInfo{
			Name:     name,
			Type:     rec.pc.Type,
			State:    rec.state,
			NoClose:  rec.plugin.NoClose,
			Bots:     rec.pc.Bots,
			Services: rec.pc.Services,
			Help:     rec.plugin.Help,
		})
	}
	return out
}

// Types returns the distinct plugin types in use, sorted
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[string]bool{}
	out := []string{}
	for _, rec := range r.records {
		if !seen[rec.pc.Type] {
			seen[rec.pc.Type] = true
			out = append(out, rec.pc.Type)
		}
	}
	sort.Strings(out)
	return out
}
