package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ggicci/httpin"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/velour/catqq/bot"
	"github.com/velour/catqq/bot/event"

	httpin_integration "github.com/ggicci/httpin/integration"
)

func init() {
	httpin_integration.UseGochiURLParam("path", chi.URLParam)
}

// Web is the HTTP surface: plugin management, the command table and metrics
type Web struct {
	bot           *bot.Bot
	router        *chi.Mux
	httpEndPoints []EndPoint

	// RequestLimit is how many requests one address may make per RequestWindow, 0 for no limit
	RequestLimit  int
	RequestWindow time.Duration
	// UseLogger logs every request
	UseLogger bool
}

type EndPoint struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Option func(*Web)

// WithRateLimit limits each client address to n requests per window
func WithRateLimit(n int, window time.Duration) Option {
	return func(ws *Web) {
		ws.RequestLimit = n
		ws.RequestWindow = window
	}
}

// WithLogger turns on per request logging
func WithLogger() Option {
	return func(ws *Web) { ws.UseLogger = true }
}

func New(b *bot.Bot, opts ...Option) *Web {
	ws := &Web{
		bot:           b,
		router:        chi.NewRouter(),
		RequestLimit:  500,
		RequestWindow: 5 * time.Second,
	}
	for _, o := range opts {
		o(ws)
	}
	ws.setupHTTP()
	return ws
}

func (ws *Web) setupHTTP() {
	if ws.UseLogger {
		ws.router.Use(middleware.Logger)
	}
	if ws.RequestLimit > 0 && ws.RequestWindow > 0 {
		ws.router.Use(httprate.LimitByIP(ws.RequestLimit, ws.RequestWindow))
	}

	ws.router.Use(middleware.RequestID)
	ws.router.Use(middleware.Recoverer)
	ws.router.Use(middleware.StripSlashes)

	ws.router.Get("/", ws.serveRoot)
	ws.router.Get("/nav", ws.serveNav)
	ws.router.Get("/plugins", ws.servePlugins)
	ws.router.With(httpin.NewInput(PluginReq{})).
		Post("/plugins/{name}/enable", ws.handleEnable(true))
	ws.router.With(httpin.NewInput(PluginReq{})).
		Post("/plugins/{name}/disable", ws.handleEnable(false))
	ws.router.Get("/commands", ws.serveCommands)
	ws.router.Handle("/metrics", promhttp.HandlerFor(ws.bot.Stats.Registry, promhttp.HandlerOpts{}))
}

// ServeHTTP lets Web be used directly as a handler
func (ws *Web) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws.router.ServeHTTP(w, r)
}

// RegisterWeb mounts r under root
func (ws *Web) RegisterWeb(r http.Handler, root string) {
	ws.router.Mount(root, r)
}

// RegisterWebName mounts r under root and lists it in the navigation
func (ws *Web) RegisterWebName(r http.Handler, root, name string) {
	ws.httpEndPoints = append(ws.httpEndPoints, EndPoint{name, root})
	ws.router.Mount(root, r)
}

// GetWebNavigation lists the named endpoints
func (ws *Web) GetWebNavigation() []EndPoint {
	return append([]EndPoint{}, ws.httpEndPoints...)
}

func (ws *Web) ListenAndServe(addr string) error {
	log.Debug().Msgf("starting web service at %s", addr)
	return http.ListenAndServe(addr, ws.router)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("could not write response")
	}
}

func writeErr(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, struct {
		Err string `json:"error"`
	}{err.Error()})
}

func (ws *Web) serveRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Version   string     `json:"version"`
		Uptime    string     `json:"uptime"`
		Plugins   int        `json:"plugins"`
		Pending   int        `json:"pending_notices"`
		EndPoints []EndPoint `json:"endpoints"`
	}{
		Version:   ws.bot.Version,
		Uptime:    ws.bot.Stats.Uptime(),
		Plugins:   len(ws.bot.Registry.Names()),
		Pending:   ws.bot.Tracker.Len(),
		EndPoints: ws.GetWebNavigation(),
	})
}

func (ws *Web) serveNav(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ws.GetWebNavigation())
}

type pluginView struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	State    string   `json:"state"`
	NoClose  bool     `json:"no_close"`
	Bots     []int64  `json:"bots"`
	Services []string `json:"services"`
}

func (ws *Web) servePlugins(w http.ResponseWriter, r *http.Request) {
	out := []pluginView{}
	for _, pi := range ws.bot.Registry.Plugins() {
		services := []string{}
		for _, s := range pi.Services {
			services = append(services, s.String())
		}
		bots := pi.Bots
		if bots == nil {
			bots = []int64{}
		}
		out = append(out, pluginView{
			Name:     pi.Name,
			Type:     pi.Type,
			State:    pi.State.String(),
			NoClose:  pi.NoClose,
			Bots:     bots,
			Services: services,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type PluginReq struct {
	Name string `in:"path=name"`
}

func (ws *Web) handleEnable(enable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input := r.Context().Value(httpin.Input).(*PluginReq)
		err := ws.bot.SetEnabled(r.Context(), input.Name, enable)
		switch {
		case errors.Is(err, bot.ErrUnknownPlugin):
			writeErr(w, http.StatusNotFound, err)
		case errors.Is(err, bot.ErrNoClose):
			writeErr(w, http.StatusConflict, err)
		case err != nil:
			writeErr(w, http.StatusInternalServerError, err)
		default:
			writeJSON(w, http.StatusOK, struct {
				Name    string `json:"name"`
				Enabled bool   `json:"enabled"`
			}{input.Name, ws.bot.Registry.IsEnabled(input.Name)})
		}
	}
}

type commandView struct {
	Name  string   `json:"name"`
	Owner string   `json:"owner"`
	Cmd   string   `json:"cmd"`
	Kinds []string `json:"kinds"`
}

func (ws *Web) serveCommands(w http.ResponseWriter, r *http.Request) {
	out := []commandView{}
	for _, ci := range ws.bot.Router.Commands() {
		kinds := []string{}
		for _, k := range ci.Kinds {
			kinds = append(kinds, kindLabel(k))
		}
		out = append(out, commandView{Name: ci.Name, Owner: ci.Owner, Cmd: ci.Cmd, Kinds: kinds})
	}
	writeJSON(w, http.StatusOK, out)
}

func kindLabel(k event.Kind) string {
	if t := k.MessageType(); t != "" {
		return t
	}
	return k.String()
}
