// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/velour/catqq/bot"
	"github.com/velour/catqq/bot/web"
	"github.com/velour/catqq/config"
	"github.com/velour/catqq/connectors/cli"
	"github.com/velour/catqq/plugins"
)

// Version is set at build time
var Version = "dev"

func newRootCommand() *cobra.Command {
	var (
		path  string
		botID int64
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "catqq",
		Short: "catqq chat bot host",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), path, botID, debug)
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "config.yml", "Config file to load, written with defaults when missing")
	cmd.Flags().Int64Var(&botID, "bot", 10000, "Account id of the local web connector")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func run(ctx context.Context, path string, botID int64, debug bool) error {
	cfg, err := config.Read(path)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug || cfg.Debug {
		log.Logger = log.Logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	b := bot.New(cfg)
	b.Version = Version
	b.Load(ctx, plugins.Catalog, cfg.Plugins)
	b.EnableAll(ctx)

	w := web.New(b, web.WithLogger())
	c := cli.New(botID)
	c.RegisterWeb(w)
	b.Attach(c)
	if err := c.Connect(ctx); err != nil {
		log.Error().Err(err).Msg("connect")
	}
	defer c.Close()

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP).Msg("serving")
		errc <- w.ListenAndServe(cfg.HTTP)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		return nil
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("catqq")
		os.Exit(1)
	}
}
