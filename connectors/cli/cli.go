// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

// Package cli is a connector that takes chat input over HTTP and keeps the bot's
// replies for the caller to read back.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ggicci/httpin"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/velour/catqq/bot"
	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/msg"
	"github.com/velour/catqq/bot/user"
	"github.com/velour/catqq/bot/web"
)

// Outgoing is one message the bot sent through the connector
type Outgoing struct {
	ID      string      `json:"id"`
	Target  string      `json:"target"`
	To      int64       `json:"to,omitempty"`
	Guild   uint64      `json:"guild,omitempty"`
	Channel uint64      `json:"channel,omitempty"`
	Text    string      `json:"text"`
	Message msg.Message `json:"message"`
}

// CLI is both the connection and the event source for one bot account
type CLI struct {
	id int64

	mu        sync.Mutex
	callbacks map[event.Kind]bot.Callback
	counter   int
	outbox    []Outgoing
	members   map[int64]map[int64]user.Member
}

func New(id int64) *CLI {
	return &CLI{
		id:        id,
		callbacks: make(map[event.Kind]bot.Callback),
		members:   make(map[int64]map[int64]user.Member),
	}
}

// RegisterWeb mounts the connector's endpoints at /cli
func (c *CLI) RegisterWeb(w *web.Web) {
	w.RegisterWebName(c.Router(), "/cli", "CLI")
}

// Router serves the input page and the API
func (c *CLI) Router() http.Handler {
	r := chi.NewRouter()
	r.With(httpin.NewInput(SayReq{})).Post("/api", c.handleSay)
	r.With(httpin.NewInput(EventReq{})).Post("/event/{kind}", c.handleEvent)
	r.Get("/outbox", c.handleOutbox)
	r.Get("/", c.handleWeb)
	return r
}

func (c *CLI) handleWeb(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

// SayReq is a chat message typed into the connector. Group wins over guild, and
// neither means a private message.
type SayReq struct {
	From    int64  `in:"form=from"`
	Name    string `in:"form=name"`
	Group   int64  `in:"form=group"`
	Guild   uint64 `in:"form=guild"`
	Channel uint64 `in:"form=channel"`
	Text    string `in:"form=text"`
	// Mention puts a mention of the bot in front, as group commands need
	Mention bool `in:"form=mention"`
}

func (c *CLI) handleSay(w http.ResponseWriter, r *http.Request) {
	input := r.Context().Value(httpin.Input).(*SayReq)
	log.Debug().Interface("postbody", input).Msg("Got a POST")
	if input.From == 0 || input.Text == "" {
		writeJSON(w, http.StatusBadRequest, struct{ Err string }{"from and text are required"})
		return
	}
	ev := c.Message(input)
	if err := c.Deliver(r.Context(), ev); err != nil {
		log.Error().Err(err).Msg("handling cli message")
		writeJSON(w, http.StatusInternalServerError, struct{ Err string }{err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, c.Drain())
}

// EventReq injects any event kind with its JSON payload as the body
type EventReq struct {
	Kind string `in:"path=kind"`
}

func (c *CLI) handleEvent(w http.ResponseWriter, r *http.Request) {
	input := r.Context().Value(httpin.Input).(*EventReq)
	kind, err := event.ParseKind(input.Kind)
	if err != nil {
		writeJSON(w, http.StatusNotFound, struct{ Err string }{err.Error()})
		return
	}
	ev, _ := event.New(kind)
	if err := json.NewDecoder(r.Body).Decode(ev); err != nil {
		writeJSON(w, http.StatusBadRequest, struct{ Err string }{err.Error()})
		return
	}
	if err := c.Deliver(r.Context(), ev); err != nil {
		writeJSON(w, http.StatusInternalServerError, struct{ Err string }{err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, c.Drain())
}

func (c *CLI) handleOutbox(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.Drain())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("could not write response")
	}
}

// Message builds the event a client would deliver for input. Group senders are
// remembered as group members.
func (c *CLI) Message(input *SayReq) event.Message {
	sender := &user.Sender{UserID: input.From, Nickname: input.Name}
	segs := msg.Message{}
	if input.Mention {
		segs = append(segs, msg.AtUser(c.id, "bot"))
	}
	segs = append(segs, msg.Text(input.Text))

	c.mu.Lock()
	c.counter++
	head := event.Header{
		Base:       event.Base{Time: time.Now().Unix(), SelfID: c.id},
		PostType:   event.PostTypeMessage,
		MessageID:  "in" + strconv.Itoa(c.counter),
		Message:    segs,
		RawMessage: input.Text,
		Sender:     sender,
	}
	if input.Group != 0 {
		if c.members[input.Group] == nil {
			c.members[input.Group] = map[int64]user.Member{}
		}
		c.members[input.Group][input.From] = user.Member{
			GroupID:  input.Group,
			UserID:   input.From,
			Nickname: input.Name,
			Role:     "member",
		}
	}
	c.mu.Unlock()

	switch {
	case input.Group != 0:
		head.MessageType = event.MessageTypeGroup
		return &event.GroupMessage{Header: head, GroupID: input.Group, UserID: input.From}
	case input.Guild != 0:
		head.MessageType = event.MessageTypeChannel
		sender.TinyID = uint64(input.From)
		return &event.ChannelMessage{Header: head, GuildID: input.Guild, ChannelID: input.Channel}
	}
	head.MessageType = event.MessageTypePrivate
	return &event.PrivateMessage{Header: head, UserID: input.From}
}

// RegisterEvent installs the callback for kind
func (c *CLI) RegisterEvent(kind event.Kind, cb bot.Callback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks[kind] = cb
}

// Deliver hands ev to the callback installed for its kind, if any
func (c *CLI) Deliver(ctx context.Context, ev event.Event) error {
	c.mu.Lock()
	cb := c.callbacks[ev.Kind()]
	c.mu.Unlock()
	if cb == nil {
		log.Debug().Stringer("kind", ev.Kind()).Msg("no callback installed")
		return nil
	}
	return cb(ctx, c, ev)
}

// Connect announces the connection to the bot
func (c *CLI) Connect(ctx context.Context) error {
	return c.Deliver(ctx, &event.Connect{})
}

// Drain returns and forgets everything sent so far
func (c *CLI) Drain() []Outgoing {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.outbox
	c.outbox = nil
	if out == nil {
		out = []Outgoing{}
	}
	return out
}

func (c *CLI) SelfID() int64 { return c.id }

// Close announces the disconnect
func (c *CLI) Close() error {
	return c.Deliver(context.Background(), &event.Disconnect{})
}

func (c *CLI) send(o Outgoing) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	o.ID = strconv.Itoa(c.counter)
	o.Text = o.Message.String()
	c.outbox = append(c.outbox, o)
	log.Info().Str("target", o.Target).Msg(o.Text)
	return o.ID, nil
}

func (c *CLI) SendPrivateMessage(ctx context.Context, userID int64, m msg.Message) (string, error) {
	return c.send(Outgoing{Target: event.MessageTypePrivate, To: userID, Message: m})
}

func (c *CLI) SendGroupMessage(ctx context.Context, groupID int64, m msg.Message) (string, error) {
	return c.send(Outgoing{Target: event.MessageTypeGroup, To: groupID, Message: m})
}

func (c *CLI) SendChannelMessage(ctx context.Context, guildID, channelID uint64, m msg.Message) (string, error) {
	return c.send(Outgoing{Target: event.MessageTypeChannel, Guild: guildID, Channel: channelID, Message: m})
}

// DeleteMessage drops the message from the outbox if nobody read it yet
func (c *CLI) DeleteMessage(ctx context.Context, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, o := range c.outbox {
		if o.ID == messageID {
			c.outbox = append(c.outbox[:i], c.outbox[i+1:]...)
			break
		}
	}
	log.Debug().Str("id", messageID).Msg("retracted")
	return nil
}

// GroupMemberList lists everyone who has spoken in the group
func (c *CLI) GroupMemberList(ctx context.Context, groupID int64) ([]user.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []user.Member{}
	for _, m := range c.members[groupID] {
		out = append(out, m)
	}
	sortMembers(out)
	return out, nil
}

func sortMembers(ms []user.Member) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].UserID < ms[j].UserID })
}
