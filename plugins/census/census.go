// © 2016 the CatBase Authors under the WTFPL license. See AUTHORS for the list of authors.

// Package census records every message the bots see into sqlite
package census

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/velour/catqq/bot"
	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/history"
	"github.com/velour/catqq/bot/scope"
	"github.com/velour/catqq/store"
)

const (
	DefaultRingSize = 500
	DefaultTTL      = time.Minute
	// Weight runs census after the ban filter and before commands
	Weight = -10
)

type Config struct {
	RingSize int           `yaml:"ring_size"`
	TTL      time.Duration `yaml:"ttl"`
}

// Record is one logged message
type Record struct {
	Time    time.Time `db:"time"`
	Bot     int64     `db:"bot"`
	Type    string    `db:"type"`
	User    string    `db:"user"`
	Group   *int64    `db:"group"`
	Channel *string   `db:"channel"`
	Guild   *string   `db:"guild"`
	Msg     string    `db:"msg"`
}

type Census struct {
	pc  *bot.PluginContext
	log zerolog.Logger

	mu   sync.Mutex
	db   *sqlx.DB
	seen *history.History
}

// New creates the census plugin
func New(pc *bot.PluginContext) (*bot.Plugin, error) {
	_, p, err := newCensus(pc)
	return p, err
}

func newCensus(pc *bot.PluginContext) (*Census, *bot.Plugin, error) {
	cfg := Config{RingSize: DefaultRingSize, TTL: DefaultTTL}
	if err := pc.Decode(&cfg); err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	if cfg.RingSize <= 0 {
		cfg.RingSize = DefaultRingSize
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	c := &Census{
		pc:   pc,
		log:  pc.Logger,
		seen: history.New(cfg.RingSize, cfg.TTL),
	}
	pc.Register(event.KindPrivateMessage, c.private, Weight)
	pc.Register(event.KindGroupMessage, c.group, Weight)
	pc.Register(event.KindChannelMessage, c.channel, Weight)

	return c, &bot.Plugin{
		OnEnable:  c.enable,
		OnDisable: c.disable,
	}, nil
}

func (c *Census) enable(ctx context.Context) error {
	db, err := store.Open(c.pc.Bot.DataDir(c.pc.Name))
	if err != nil {
		return err
	}
	err = store.Migrate(db, `create table if not exists msg (
		"time" timestamp not null default current_timestamp,
		"bot" integer not null,
		"type" text not null,
		"user" text not null,
		"group" integer,
		"channel" text,
		"guild" text,
		"msg" text not null
	)`)
	if err != nil {
		db.Close()
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		c.db.Close()
	}
	c.db = db
	c.log.Info().Msg("plugin started")
	return nil
}

func (c *Census) disable(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Info().Msg("plugin stopped")
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *Census) private(ctx context.Context, conn bot.Connector, ev event.Event) (bot.Action, error) {
	e := ev.(*event.PrivateMessage)
	sc := scope.ForUser(e.UserID)
	if c.duplicate(sc, e.MessageID) {
		return bot.Pass, nil
	}
	return bot.Pass, c.write(Record{
		Bot:  conn.SelfID(),
		Type: string(scope.User),
		User: strconv.FormatInt(e.UserID, 10),
		Msg:  text(&e.Header),
	})
}

func (c *Census) group(ctx context.Context, conn bot.Connector, ev event.Event) (bot.Action, error) {
	e := ev.(*event.GroupMessage)
	sc := scope.ForGroup(e.GroupID)
	if c.duplicate(sc, e.MessageID) {
		return bot.Pass, nil
	}
	group := e.GroupID
	return bot.Pass, c.write(Record{
		Bot:   conn.SelfID(),
		Type:  string(scope.Group),
		User:  strconv.FormatInt(e.UserID, 10),
		Group: &group,
		Msg:   text(&e.Header),
	})
}

func (c *Census) channel(ctx context.Context, conn bot.Connector, ev event.Event) (bot.Action, error) {
	e := ev.(*event.ChannelMessage)
	sc := scope.ForChannel(e.GuildID, e.ChannelID)
	if c.duplicate(sc, e.MessageID) {
		return bot.Pass, nil
	}
	if e.Sender == nil {
		return bot.Pass, nil
	}
	channel := strconv.FormatUint(e.ChannelID, 10)
	guild := strconv.FormatUint(e.GuildID, 10)
	return bot.Pass, c.write(Record{
		Bot:     conn.SelfID(),
		Type:    string(scope.Channel),
		User:    strconv.FormatUint(e.Sender.TinyID, 10),
		Channel: &channel,
		Guild:   &guild,
		Msg:     text(&e.Header),
	})
}

func text(h *event.Header) string {
	if h.RawMessage != "" {
		return h.RawMessage
	}
	return h.Message.String()
}

func (c *Census) write(r Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	_, err := c.db.NamedExec(`insert into msg ("bot", "type", "user", "group", "channel", "guild", "msg")
		values (:bot, :type, :user, :group, :channel, :guild, :msg)`, r)
	if err != nil {
		c.log.Error().Err(err).Msg("could not record message")
	}
	return err
}

// Records returns everything logged so far, oldest first
func (c *Census) Records() ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil, errors.New("census is not enabled")
	}
	out := []Record{}
	err := c.db.Select(&out, `select "time", "bot", "type", "user", "group", "channel", "guild", "msg"
		from msg order by rowid`)
	return out, err
}

// duplicate reports whether the message was already logged through another bot.
// Messages without an id are never duplicates.
func (c *Census) duplicate(sc scope.ID, id string) bool {
	if id == "" {
		return false
	}
	return c.seen.CheckOrAdd(string(sc) + " " + id)
}
