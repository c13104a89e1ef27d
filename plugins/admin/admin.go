// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/velour/catqq/bot"
	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/msg"
	"github.com/velour/catqq/store"
)

// AdminPlugin keeps the administrator list and lets administrators switch plugins
// on and off from chat.
type AdminPlugin struct {
	pc  *bot.PluginContext
	log zerolog.Logger

	mu     sync.RWMutex
	db     *sqlx.DB
	admins map[int64]struct{}
	seed   []int64
}

type Config struct {
	// Admin accounts are added on every start
	Admin []int64 `yaml:"admin"`
}

var kinds = []event.Kind{event.KindPrivateMessage, event.KindGroupMessage}

// New creates the admin plugin. Only one may be loaded per bot.
func New(pc *bot.PluginContext) (*bot.Plugin, error) {
	for _, pi := range pc.Bot.Registry.Plugins() {
		if pi.Type == pc.Type {
			return nil, fmt.Errorf("%s is already loaded, only one %s plugin may be used", pi.Name, pc.Type)
		}
	}
	var cfg Config
	if err := pc.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	p := &AdminPlugin{
		pc:     pc,
		log:    pc.Logger,
		admins: map[int64]struct{}{},
		seed:   cfg.Admin,
	}

	cmds := []struct {
		name string
		h    bot.CommandHandler
	}{
		{"admin", p.adminCmd},
		{"plugins", p.pluginsCmd},
		{"enable", p.switchCmd(true)},
		{"disable", p.switchCmd(false)},
	}
	for _, c := range cmds {
		if err := pc.RegisterCommand([]string{c.name}, kinds, p.onlyAdmins(c.h)); err != nil {
			return nil, err
		}
	}
	pc.Bot.SetAdminCheck(p.IsAdmin)

	return &bot.Plugin{
		OnEnable:  p.enable,
		OnDisable: p.disable,
		Help:      p.help,
		NoClose:   true,
	}, nil
}

func (p *AdminPlugin) mkDB(db *sqlx.DB) error {
	return store.Migrate(db, `create table if not exists admins (
		id integer primary key
	)`)
}

func (p *AdminPlugin) enable(ctx context.Context) error {
	db, err := store.Open(p.pc.Bot.DataDir(p.pc.Name))
	if err != nil {
		return err
	}
	if err := p.mkDB(db); err != nil {
		db.Close()
		return err
	}
	for _, id := range p.seed {
		if _, err := db.Exec(`insert or ignore into admins (id) values (?)`, id); err != nil {
			db.Close()
			return err
		}
	}
	ids := []int64{}
	if err := db.Select(&ids, `select id from admins`); err != nil {
		db.Close()
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		p.db.Close()
	}
	p.db = db
	p.admins = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		p.admins[id] = struct{}{}
	}
	p.log.Info().Int("admins", len(ids)).Msg("plugin started")
	return nil
}

func (p *AdminPlugin) disable(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log.Info().Msg("plugin stopped")
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// IsAdmin reports whether id is an administrator
func (p *AdminPlugin) IsAdmin(id int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.admins[id]
	return ok
}

// Admins lists administrators in ascending order
func (p *AdminPlugin) Admins() []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]int64, 0, len(p.admins))
	for id := range p.admins {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Toggle grants id administrator rights, or takes them away when id already has them.
// It reports whether id is an administrator afterwards.
func (p *AdminPlugin) Toggle(id int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return false, errors.New("admin plugin is not enabled")
	}
	if _, ok := p.admins[id]; ok {
		if _, err := p.db.Exec(`delete from admins where id=?`, id); err != nil {
			return true, err
		}
		delete(p.admins, id)
		return false, nil
	}
	if _, err := p.db.Exec(`insert or ignore into admins (id) values (?)`, id); err != nil {
		return false, err
	}
	p.admins[id] = struct{}{}
	return true, nil
}

func (p *AdminPlugin) onlyAdmins(h bot.CommandHandler) bot.CommandHandler {
	return func(ctx context.Context, c *bot.Command) error {
		from, _ := bot.SenderOf(c.Event)
		if !p.IsAdmin(from) {
			p.log.Debug().Msgf("%d is not an admin", from)
			return nil
		}
		return h(ctx, c)
	}
}

func (p *AdminPlugin) adminCmd(ctx context.Context, c *bot.Command) error {
	id, raw, ok := msg.Number(c.Args)
	var reply any
	switch {
	case raw == "":
		lines := []string{"Admins:"}
		for i, a := range p.Admins() {
			lines = append(lines, fmt.Sprintf("%d. %d", i+1, a))
		}
		reply = lines
	case !ok:
		reply = fmt.Sprintf("invalid account: [%s]", raw)
	default:
		isAdmin, err := p.Toggle(id)
		if err != nil {
			p.log.Error().Err(err).Msg("could not update admins")
			reply = fmt.Sprintf("could not update admins: %s", err)
		} else if isAdmin {
			reply = fmt.Sprintf("%d is now an admin", id)
		} else {
			reply = fmt.Sprintf("%d is no longer an admin", id)
		}
	}
	_, err := c.Back(ctx, reply)
	return err
}

func (p *AdminPlugin) pluginsCmd(ctx context.Context, c *bot.Command) error {
	lines := []string{"Plugins:"}
	for _, pi := range p.pc.Bot.Registry.Plugins() {
		lines = append(lines, fmt.Sprintf("%s (%s): %s", pi.Name, pi.Type, pi.State))
	}
	_, err := c.Back(ctx, lines)
	return err
}

func (p *AdminPlugin) switchCmd(enable bool) bot.CommandHandler {
	verb := "disabled"
	if enable {
		verb = "enabled"
	}
	return func(ctx context.Context, c *bot.Command) error {
		name := strings.TrimSpace(c.Args.String())
		if name == "" {
			_, err := c.Back(ctx, fmt.Sprintf("usage: %s%s <plugin>", bot.Tag, c.Cmd))
			return err
		}
		reply := fmt.Sprintf("%s %s", name, verb)
		if err := p.pc.Bot.SetEnabled(ctx, name, enable); err != nil {
			reply = fmt.Sprintf("I couldn't do that: %s", err)
		}
		_, err := c.Back(ctx, reply)
		return err
	}
}

func (p *AdminPlugin) help(req bot.HelpRequest) any {
	if !p.IsAdmin(req.Sender) {
		return nil
	}
	return []string{
		bot.Tag + "admin    list admins",
		bot.Tag + "admin <account>    grant or revoke admin rights",
		bot.Tag + "plugins    list plugins and their state",
		bot.Tag + "enable <plugin> / " + bot.Tag + "disable <plugin>    switch a plugin on or off",
	}
}
