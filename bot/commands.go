package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rs/zerolog/log"

	"github.com/velour/catqq/bot/ephemeral"
	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/msg"
	"github.com/velour/catqq/bot/stats"
)

const (
	// Tag starts every command
	Tag = "!"
	// NamespaceSep joins a plugin name and a command, as in admin:enable
	NamespaceSep = ":"
)

// CommandHandler runs one command invocation
type CommandHandler func(ctx context.Context, c *Command) error

// CommandInfo describes a routing table entry
type CommandInfo struct {
	Name  string
	Owner string
	Cmd   string
	Kinds []event.Kind
}

type route struct {
	owner    string
	cmd      string
	handlers map[event.Kind]CommandHandler
}

// Router turns tagged messages into command invocations
type Router struct {
	mu       sync.RWMutex
	commands map[string]*route

	registry *Registry
	tracker  *ephemeral.Tracker
	stats    *stats.Stats

	// NoticeTimeout is how long loading notices stay up, ephemeral.DefaultTimeout when zero
	NoticeTimeout time.Duration
}

var messageKinds = []event.Kind{
	event.KindPrivateMessage,
	event.KindGroupMessage,
	event.KindChannelMessage,
}

// NewRouter creates a router and hooks it into bus for every message kind.
// registry may be nil, in which case every command runs.
func NewRouter(bus *Bus, registry *Registry, tracker *ephemeral.Tracker, s *stats.Stats) *Router {
	if tracker == nil {
		tracker = ephemeral.New()
	}
	if s == nil {
		s = stats.New()
	}
	r := &Router{
		commands: make(map[string]*route),
		registry: registry,
		tracker:  tracker,
		stats:    s,
	}
	for _, kind := range messageKinds {
		kind := kind
		bus.RegisterInternal(kind, func(ctx context.Context, conn Connector, ev event.Event) (Action, error) {
			return Pass, r.route(ctx, conn, ev, kind)
		}, 0)
	}
	return r
}

// RegisterCommand routes each of cmds, for the given message kinds, to h.
// Every command is also reachable as owner:cmd. A bare name that another plugin
// already owns is left alone and a warning is logged.
func (r *Router) RegisterCommand(owner string, cmds []string, kinds []event.Kind, h CommandHandler) error {
	for _, c := range cmds {
		if c == "" || strings.Contains(c, NamespaceSep) || strings.IndexFunc(c, unicode.IsSpace) >= 0 {
			return fmt.Errorf("%w: %q", ErrBadCommand, c)
		}
	}
	for _, k := range kinds {
		if k.MessageType() == "" {
			return fmt.Errorf("%w: %s is not a message kind", ErrBadCommand, k)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range cmds {
		if old, ok := r.commands[c]; !ok || old.owner == owner {
			r.set(c, owner, c, kinds, h)
		} else {
			log.Warn().
				Str("plugin", owner).
				Str("owner", old.owner).
				Msgf("command %s%s is already taken, use %s%s%s%s", Tag, c, Tag, owner, NamespaceSep, c)
		}
		r.set(owner+NamespaceSep+c, owner, c, kinds, h)
	}
	log.Info().Str("plugin", owner).Strs("commands", cmds).Msg("registered commands")
	return nil
}

func (r *Router) set(name, owner, cmd string, kinds []event.Kind, h CommandHandler) {
	handlers := map[event.Kind]CommandHandler{}
	if old, ok := r.commands[name]; ok {
		for k, v := range old.handlers {
			handlers[k] = v
		}
	}
	for _, k := range kinds {
		handlers[k] = h
	}
	r.commands[name] = &route{owner: owner, cmd: cmd, handlers: handlers}
}

// Forget drops every command the named plugin owns, freeing its bare names
func (r *Router) Forget(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for name, rt := range r.commands {
		if rt.owner == owner {
			delete(r.commands, name)
			n++
		}
	}
	return n
}

// Commands lists the routing table sorted by name
func (r *Router) Commands() []CommandInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CommandInfo, 0, len(r.commands))
	for name, rt := range r.commands {
		kinds := make([]event.Kind, 0, len(rt.handlers))
		for k := range rt.handlers {
			kinds = append(kinds, k)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
		out = append(out, CommandInfo{Name: name, Owner: rt.owner, Cmd: rt.cmd, Kinds: kinds})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Router) lookup(name string, kind event.Kind) (*route, CommandHandler) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.commands[name]
	if !ok {
		return nil, nil
	}
	return rt, rt.handlers[kind]
}

func (r *Router) route(ctx context.Context, conn Connector, ev event.Event, kind event.Kind) error {
	m, ok := ev.(event.Message)
	if !ok || conn == nil {
		return nil
	}
	head := m.Head()
	if head.MessageType != kind.MessageType() {
		log.Error().Msgf("cannot route message: message type %q does not match %s", head.MessageType, kind)
		return nil
	}
	if head.PostType != event.PostTypeMessage {
		log.Error().Msgf("cannot route message: post type %q is not %q", head.PostType, event.PostTypeMessage)
		return nil
	}

	segs := head.Message
	if len(segs) == 0 {
		return nil
	}
	if segs[0].Type == msg.TypeAt {
		self := head.SelfID
		if self == 0 {
			self = conn.SelfID()
		}
		if segs[0].Target() != strconv.FormatInt(self, 10) {
			return nil
		}
		segs = segs[1:]
	} else if kind != event.KindPrivateMessage {
		return nil
	}
	if len(segs) == 0 || segs[0].Type != msg.TypeText {
		return nil
	}

	text := strings.TrimLeftFunc(segs[0].Text(), unicode.IsSpace)
	token, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		token, rest = text[:i], strings.TrimSpace(text[i:])
	}
	if len(token) <= len(Tag) || !strings.HasPrefix(token, Tag) {
		return nil
	}
	realCmd := token[len(Tag):]

	rt, h := r.lookup(realCmd, kind)
	if h == nil {
		return nil
	}
	if r.registry != nil && !r.registry.NeedHandleEvent(rt.owner, conn.SelfID(), ev) {
		log.Debug().Str("plugin", rt.owner).Msgf("skipping %s%s", Tag, realCmd)
		return nil
	}

	args := msg.Message{}
	if rest != "" {
		args = append(args, msg.Text(rest))
	}
	args = append(args, segs[1:]...)

	c := &Command{
		Cmd:     rt.cmd,
		RealCmd: realCmd,
		Args:    args,
		Conn:    conn,
		Event:   m,
		Kind:    kind,
		router:  r,
	}
	log.Debug().Str("plugin", rt.owner).Str("cmd", realCmd).Str("args", args.String()).Msg("running command")
	r.stats.CommandsRun.WithLabelValues(rt.owner, rt.cmd).Inc()
	if err := h(ctx, c); err != nil {
		return fmt.Errorf("command %s%s: %w", Tag, realCmd, err)
	}
	return nil
}

// Command is one routed invocation
type Command struct {
	// Cmd is the command name without any namespace
	Cmd string
	// RealCmd is what the user typed after the tag, possibly namespaced
	RealCmd string
	// Args is the rest of the message with the command token removed
	Args  msg.Message
	Conn  Connector
	Event event.Message
	Kind  event.Kind

	router    *Router
	mu        sync.Mutex
	noticeKey string
}

// Back replies to where the command came from. The mode defaults to Reply.
// An empty message sends nothing and returns "".
func (c *Command) Back(ctx context.Context, m any, mode ...Mode) (string, error) {
	md := Reply
	if len(mode) > 0 {
		md = mode[0]
	}
	id, err := SendBack(ctx, c.Conn, c.Event, m, md)
	if err == nil && c.router != nil && msg.From(m) != nil {
		c.router.stats.MessagesSent.WithLabelValues(c.Kind.MessageType()).Inc()
	}
	return id, err
}

// LoadingNotice replaces the command's temporary notice with m. The notice is
// retracted when the next notice replaces it, when called with nil, or after the
// router's NoticeTimeout. Channels have no notices and always report false.
func (c *Command) LoadingNotice(ctx context.Context, m any, mode ...Mode) (bool, error) {
	if c.Kind == event.KindChannelMessage {
		return false, nil
	}
	c.mu.Lock()
	key := c.noticeKey
	c.noticeKey = ""
	c.mu.Unlock()
	if key != "" {
		c.router.tracker.Cancel(key)
	}
	if m == nil {
		return true, nil
	}

	id, err := c.Back(ctx, m, mode...)
	if err != nil {
		return false, err
	}
	if id == "" {
		log.Warn().Msg("no message id came back, the client may be too old to retract messages")
		return false, nil
	}
	conn := c.Conn
	key = c.router.tracker.Watch(func() {
		if err := conn.DeleteMessage(context.Background(), id); err != nil {
			log.Error().Err(err).Str("id", id).Msg("could not retract notice")
		}
	}, c.router.NoticeTimeout)

	c.mu.Lock()
	c.noticeKey = key
	c.mu.Unlock()
	return true, nil
}
