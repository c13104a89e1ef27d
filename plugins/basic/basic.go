// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

// Package basic logs bots coming and going
package basic

import (
	"context"

	"github.com/velour/catqq/bot"
	"github.com/velour/catqq/bot/event"
)

// New creates the basic plugin
func New(pc *bot.PluginContext) (*bot.Plugin, error) {
	watch := func(what string) bot.Handler {
		return func(ctx context.Context, conn bot.Connector, ev event.Event) (bot.Action, error) {
			if id := conn.SelfID(); pc.ServesBot(id) {
				pc.Logger.Info().Int64("bot", id).Msgf("bot %s", what)
			}
			return bot.Pass, nil
		}
	}
	pc.Register(event.KindConnect, watch("connected"), 0)
	pc.Register(event.KindDisconnect, watch("disconnected"), 0)

	return &bot.Plugin{
		OnEnable: func(context.Context) error {
			pc.Logger.Info().Msg("plugin started")
			return nil
		},
		OnDisable: func(context.Context) error {
			pc.Logger.Info().Msg("plugin stopped")
			return nil
		},
	}, nil
}
