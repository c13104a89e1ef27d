// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

package ban

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"

	"github.com/velour/catqq/bot"
	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/msg"
	"github.com/velour/catqq/store"
)

// Weight puts the ban filter ahead of commands and every default weighted plugin
const Weight = -1000

// BanPlugin keeps a list of banned accounts. Their messages never reach other
// handlers.
type BanPlugin struct {
	pc  *bot.PluginContext
	log zerolog.Logger

	mu   sync.RWMutex
	db   *sqlx.DB
	bans map[int64]struct{}
}

var kinds = []event.Kind{event.KindPrivateMessage, event.KindGroupMessage}

func New(pc *bot.PluginContext) (*bot.Plugin, error) {
	p := &BanPlugin{
		pc:   pc,
		log:  pc.Logger,
		bans: map[int64]struct{}{},
	}
	cmds := []struct {
		name string
		h    bot.CommandHandler
	}{
		{"ban", p.banCmd},
		{"unban", p.unbanCmd},
		{"ban-check", p.checkCmd},
	}
	for _, c := range cmds {
		if err := pc.RegisterCommand([]string{c.name}, kinds, p.onlyAdmins(c.h)); err != nil {
			return nil, err
		}
	}
	for _, k := range []event.Kind{event.KindPrivateMessage, event.KindGroupMessage, event.KindChannelMessage} {
		pc.Register(k, p.filter, Weight)
	}
	return &bot.Plugin{
		OnEnable:  p.enable,
		OnDisable: p.disable,
		Help:      p.help,
	}, nil
}

func (p *BanPlugin) enable(ctx context.Context) error {
	db, err := store.Open(p.pc.Bot.DataDir(p.pc.Name))
	if err != nil {
		return err
	}
	err = store.Migrate(db, `create table if not exists bans (
		id integer primary key,
		created timestamp not null default current_timestamp
	)`)
	if err != nil {
		db.Close()
		return err
	}
	ids := []int64{}
	if err := db.Select(&ids, `select id from bans`); err != nil {
		db.Close()
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		p.db.Close()
	}
	p.db = db
	p.bans = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		p.bans[id] = struct{}{}
	}
	p.log.Info().Int("bans", len(ids)).Msg("plugin started")
	return nil
}

func (p *BanPlugin) disable(ctx context.Context) error {
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

// IsBanned reports whether id is on the ban list
func (p *BanPlugin) IsBanned(id int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.bans[id]
	return ok
}

// Bans lists banned accounts in ascending order
func (p *BanPlugin) Bans() []int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]int64, 0, len(p.bans))
	for id := range p.bans {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Add bans id. It returns false when id was already banned.
func (p *BanPlugin) Add(id int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return false, errors.New("ban plugin is not enabled")
	}
	if _, ok := p.bans[id]; ok {
		return false, nil
	}
	if _, err := p.db.Exec(`insert or ignore into bans (id) values (?)`, id); err != nil {
		return false, err
	}
	p.bans[id] = struct{}{}
	return true, nil
}

// Remove lifts the ban on id. It returns false when id was not banned.
func (p *BanPlugin) Remove(id int64) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return false, errors.New("ban plugin is not enabled")
	}
	if _, ok := p.bans[id]; !ok {
		return false, nil
	}
	if _, err := p.db.Exec(`delete from bans where id=?`, id); err != nil {
		return false, err
	}
	delete(p.bans, id)
	return true, nil
}

func (p *BanPlugin) count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.bans)
}

// filter stops messages from banned accounts. Administrators are never filtered.
func (p *BanPlugin) filter(ctx context.Context, conn bot.Connector, ev event.Event) (bot.Action, error) {
	from, _ := bot.SenderOf(ev)
	if from == 0 || !p.IsBanned(from) || p.pc.Bot.IsAdmin(from) {
		return bot.Pass, nil
	}
	p.log.Debug().Int64("user", from).Msg("dropping message from banned user")
	return bot.Prevent, nil
}

func (p *BanPlugin) onlyAdmins(h bot.CommandHandler) bot.CommandHandler {
	return func(ctx context.Context, c *bot.Command) error {
		from, _ := bot.SenderOf(c.Event)
		if !p.pc.Bot.IsAdmin(from) {
			return nil
		}
		return h(ctx, c)
	}
}

func (p *BanPlugin) banCmd(ctx context.Context, c *bot.Command) error {
	id, raw, ok := msg.Number(c.Args)
	var reply any
	switch {
	case raw == "":
		lines := []string{"Ban list:"}
		for i, b := range p.Bans() {
			lines = append(lines, fmt.Sprintf("%d. %d", i+1, b))
		}
		reply = lines
	case !ok:
		reply = fmt.Sprintf("invalid account: [%s]", raw)
	default:
		added, err := p.Add(id)
		switch {
		case err != nil:
			p.log.Error().Err(err).Msg("could not ban")
			reply = fmt.Sprintf("could not ban [%d]: %s", id, err)
		case added:
			reply = fmt.Sprintf("[%d] is now banned\n%d on the list", id, p.count())
		default:
			reply = fmt.Sprintf("[%d] is already banned\n%d on the list", id, p.count())
		}
	}
	_, err := c.Back(ctx, reply)
	return err
}

func (p *BanPlugin) unbanCmd(ctx context.Context, c *bot.Command) error {
	id, raw, ok := msg.Number(c.Args)
	var reply any
	switch {
	case raw == "":
		reply = "give me an account"
		if c.Kind != event.KindPrivateMessage {
			reply = "give me an account, or mention them"
		}
	case !ok:
		reply = fmt.Sprintf("invalid account: [%s]", raw)
	default:
		removed, err := p.Remove(id)
		switch {
		case err != nil:
			p.log.Error().Err(err).Msg("could not unban")
			reply = fmt.Sprintf("could not unban [%d]: %s", id, err)
		case removed:
			reply = fmt.Sprintf("[%d] is no longer banned\n%d on the list", id, p.count())
		default:
			reply = fmt.Sprintf("[%d] is not banned\n%d on the list", id, p.count())
		}
	}
	_, err := c.Back(ctx, reply)
	return err
}

func (p *BanPlugin) checkCmd(ctx context.Context, c *bot.Command) error {
	group, raw, ok := msg.Number(c.Args)
	if raw == "" {
		if gm, isGroup := c.Event.(*event.GroupMessage); isGroup {
			group, ok = gm.GroupID, true
		}
	}
	switch {
	case raw == "" && !ok:
		_, err := c.Back(ctx, "give me a group, or ask in the group")
		return err
	case !ok:
		_, err := c.Back(ctx, fmt.Sprintf("invalid group: [%s]", raw))
		return err
	}

	members, err := c.Conn.GroupMemberList(ctx, group)
	if err != nil {
		p.log.Error().Err(err).Int64("group", group).Msg("could not list members")
		_, err := c.Back(ctx, fmt.Sprintf("could not get the member list of group [%d]", group))
		return err
	}

	rows := [][]string{}
	for _, m := range members {
		if p.IsBanned(m.UserID) {
			rows = append(rows, []string{
				fmt.Sprintf("%d.", len(rows)+1),
				strconv.FormatInt(m.UserID, 10),
				m.Name(),
			})
		}
	}
	if len(rows) == 0 {
		_, err := c.Back(ctx, "nobody in this group is banned")
		return err
	}

	var sb strings.Builder
	table := tablewriter.NewWriter(&sb)
	table.SetHeader([]string{"No.", "Account", "Nickname"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
	_, err = c.Back(ctx, trimLines(sb.String()))
	return err
}

func (p *BanPlugin) help(req bot.HelpRequest) any {
	group := "<group>"
	if req.GroupID != 0 {
		group = "[group]"
	}
	return []string{
		bot.Tag + "ban    show the ban list",
		bot.Tag + "ban <account|mention>    ban someone",
		bot.Tag + "unban <account|mention>    lift a ban",
		bot.Tag + "ban-check " + group + "    list banned members of a group",
	}
}

// trimLines drops the padding tablewriter leaves at line ends
func trimLines(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n")
}
