// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

package help

import (
	"context"
	"fmt"

	"github.com/velour/catqq/bot"
	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/msg"
)

// NoHelp is the reply when no plugin has anything to say
const NoHelp = "no help available"

type HelpPlugin struct {
	pc *bot.PluginContext
}

// New creates the help plugin
func New(pc *bot.PluginContext) (*bot.Plugin, error) {
	p := &HelpPlugin{pc: pc}
	kinds := []event.Kind{event.KindPrivateMessage, event.KindGroupMessage}
	if err := pc.RegisterCommand([]string{"help", "帮助"}, kinds, p.helpCmd); err != nil {
		return nil, err
	}
	return &bot.Plugin{
		OnEnable: func(context.Context) error {
			pc.Logger.Info().Msg("plugin started")
			return nil
		},
		OnDisable: func(context.Context) error {
			pc.Logger.Info().Msg("plugin stopped")
			return nil
		},
		Help: func(bot.HelpRequest) any {
			return bot.Tag + "help / " + bot.Tag + "帮助    list help"
		},
		NoClose: true,
	}, nil
}

func (p *HelpPlugin) helpCmd(ctx context.Context, c *bot.Command) error {
	req := bot.HelpRequest{Bot: c.Conn.SelfID()}
	req.Sender, _ = bot.SenderOf(c.Event)
	if g, ok := c.Event.(*event.GroupMessage); ok {
		req.GroupID = g.GroupID
	}
	var reply any = NoHelp
	if h := Collect(p.pc.Bot.Registry.Plugins(), req); h != nil {
		reply = h
	}
	_, err := c.Back(ctx, reply, bot.At)
	return err
}

// Collect joins the help of every enabled plugin serving req.Bot, in load order.
// It returns nil when there is none.
func Collect(plugins []bot.PluginInfo, req bot.HelpRequest) msg.Message {
	out := msg.Message{}
	for _, pi := range plugins {
		if pi.State != bot.Enabled || pi.Help == nil || !pi.ServesBot(req.Bot) {
			continue
		}
		h := msg.From(pi.Help(req))
		if h == nil {
			continue
		}
		out = append(out, msg.Text(fmt.Sprintf("· %s (%s) help:\n", pi.Name, pi.Type)))
		out = append(out, h...)
		out = append(out, msg.Text("\n\n\n"))
	}
	if len(out) == 0 {
		return nil
	}
	return out[:len(out)-1]
}
