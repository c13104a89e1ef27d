package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/velour/catqq/bot"
	"github.com/velour/catqq/bot/event"
)

func setup(t *testing.T) (*bot.Bot, *Web) {
	t.Helper()
	b := bot.New(nil)
	ctx := context.Background()
	for name, p := range map[string]*bot.Plugin{
		"admin": {NoClose: true},
		"ping":  {},
	} {
		p := p
		err := b.BuildCreate(func(pc *bot.PluginContext) (*bot.Plugin, error) { return p, nil })(
			ctx, name, name, yaml.Node{}, nil, nil)
		require.NoError(t, err)
	}
	b.EnableAll(ctx)
	require.NoError(t, b.RegisterCommand("ping", []string{"ping"}, []event.Kind{event.KindGroupMessage},
		func(ctx context.Context, c *bot.Command) error { return nil }))
	return b, New(b, WithRateLimit(0, 0))
}

func do(t *testing.T, ws *Web, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	ws.ServeHTTP(rec, req)
	return rec
}

func TestPlugins(t *testing.T) {
	_, ws := setup(t)
	rec := do(t, ws, http.MethodGet, "/plugins")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []pluginView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	for _, pv := range out {
		assert.Equal(t, "enabled", pv.State)
		assert.Equal(t, pv.Name == "admin", pv.NoClose)
	}
}

func TestDisable(t *testing.T) {
	b, ws := setup(t)
	rec := do(t, ws, http.MethodPost, "/plugins/ping/disable")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, b.Registry.IsEnabled("ping"))

	rec = do(t, ws, http.MethodPost, "/plugins/ping/enable")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, b.Registry.IsEnabled("ping"))
}

func TestDisableErrors(t *testing.T) {
	b, ws := setup(t)
	rec := do(t, ws, http.MethodPost, "/plugins/admin/disable")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.True(t, b.Registry.IsEnabled("admin"))

	rec = do(t, ws, http.MethodPost, "/plugins/ghost/enable")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown plugin")
}

func TestCommands(t *testing.T) {
	_, ws := setup(t)
	rec := do(t, ws, http.MethodGet, "/commands")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []commandView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "ping", out[0].Name)
	assert.Equal(t, "ping:ping", out[1].Name)
	assert.Equal(t, []string{"group"}, out[0].Kinds)
}

func TestMetrics(t *testing.T) {
	_, ws := setup(t)
	rec := do(t, ws, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "catqq_notices_pending")
}

func TestNav(t *testing.T) {
	_, ws := setup(t)
	ws.RegisterWebName(http.NotFoundHandler(), "/thing", "Thing")
	rec := do(t, ws, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"url":"/thing"`)
	assert.Contains(t, rec.Body.String(), `"plugins":2`)
}
