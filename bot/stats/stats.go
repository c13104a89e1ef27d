package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats counts what the bot does. Each Stats owns its registry so several bots
// (and tests) can coexist in one process.
type Stats struct {
	Registry *prometheus.Registry

	EventsDispatched *prometheus.CounterVec
	HandlersInvoked  *prometheus.CounterVec
	HandlersSkipped  *prometheus.CounterVec
	EventsPrevented  *prometheus.CounterVec
	HandlerErrors    *prometheus.CounterVec
	CommandsRun      *prometheus.CounterVec
	MessagesSent     *prometheus.CounterVec
	NoticesPending   prometheus.GaugeFunc

	startTime time.Time
}

func New() *Stats {
	s := &Stats{
		Registry:  prometheus.NewRegistry(),
		startTime: time.Now(),
		EventsDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catqq_events_dispatched_total",
				Help: "Events dispatched through the bus",
			},
			[]string{"kind"},
		),
		HandlersInvoked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catqq_handlers_invoked_total",
				Help: "Handler invocations",
			},
			[]string{"kind", "plugin"},
		),
		HandlersSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catqq_handlers_skipped_total",
				Help: "Handlers skipped because their plugin is disabled or out of scope",
			},
			[]string{"kind", "plugin"},
		),
		EventsPrevented: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catqq_events_prevented_total",
				Help: "Dispatches stopped early by a handler",
			},
			[]string{"kind", "plugin"},
		),
		HandlerErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catqq_handler_errors_total",
				Help: "Handler invocations that returned an error",
			},
			[]string{"kind", "plugin"},
		),
		CommandsRun: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catqq_commands_run_total",
				Help: "Commands routed to a handler",
			},
			[]string{"plugin", "cmd"},
		),
		MessagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catqq_messages_sent_total",
				Help: "Replies sent through a connector",
			},
			[]string{"target"},
		),
	}
	s.Registry.MustRegister(
		s.EventsDispatched,
		s.HandlersInvoked,
		s.HandlersSkipped,
		s.EventsPrevented,
		s.HandlerErrors,
		s.CommandsRun,
		s.MessagesSent,
	)
	return s
}

// TrackPending exposes a live count of pending ephemeral notices
func (s *Stats) TrackPending(count func() int) {
	s.NoticesPending = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "catqq_notices_pending",
			Help: "Loading notices waiting to be retracted",
		},
		func() float64 { return float64(count()) },
	)
	s.Registry.MustRegister(s.NoticesPending)
}

// PluginLabel keeps internal handlers apart from plugin handlers in metric labels
func PluginLabel(owner string) string {
	if owner == "" {
		return "<internal>"
	}
	return owner
}

func (s *Stats) Uptime() string {
	return time.Since(s.startTime).Truncate(time.Second).String()
}
