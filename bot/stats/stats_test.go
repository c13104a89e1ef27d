package stats

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	s := New()
	s.EventsDispatched.WithLabelValues("handleGroupMessage").Inc()
	s.EventsDispatched.WithLabelValues("handleGroupMessage").Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(s.EventsDispatched.WithLabelValues("handleGroupMessage")))
}

func TestPending(t *testing.T) {
	s := New()
	n := 3
	s.TrackPending(func() int { return n })
	assert.Equal(t, 3.0, testutil.ToFloat64(s.NoticesPending))
}

func TestPluginLabel(t *testing.T) {
	assert.Equal(t, "<internal>", PluginLabel(""))
	assert.Equal(t, "admin", PluginLabel("admin"))
}

func TestTwoInstancesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
