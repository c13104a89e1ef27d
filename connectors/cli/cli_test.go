package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/velour/catqq/bot"
	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/web"
)

const self = 4242

func setup(t *testing.T) (*bot.Bot, *CLI, http.Handler) {
	t.Helper()
	b := bot.New(nil)
	ctx := context.Background()
	err := b.BuildCreate(func(pc *bot.PluginContext) (*bot.Plugin, error) {
		err := pc.RegisterCommand([]string{"echo"}, []event.Kind{event.KindPrivateMessage, event.KindGroupMessage},
			func(ctx context.Context, c *bot.Command) error {
				_, err := c.Back(ctx, c.Args)
				return err
			})
		return &bot.Plugin{}, err
	})(ctx, "echo", "echo", yaml.Node{}, nil, nil)
	require.NoError(t, err)
	b.EnableAll(ctx)

	c := New(self)
	b.Attach(c)
	return b, c, c.Router()
}

func post(t *testing.T, h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSayPrivate(t *testing.T) {
	_, _, h := setup(t)
	rec := post(t, h, "/api", url.Values{"from": {"7"}, "text": {"!echo hello"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out []Outgoing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "hello", out[0].Text)
	assert.Equal(t, event.MessageTypePrivate, out[0].Target)
	assert.Equal(t, int64(7), out[0].To)
}

func TestSayGroupNeedsMention(t *testing.T) {
	_, c, h := setup(t)
	rec := post(t, h, "/api", url.Values{"from": {"7"}, "group": {"9"}, "text": {"!echo hi"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = post(t, h, "/api", url.Values{"from": {"7"}, "name": {"seven"}, "group": {"9"}, "mention": {"true"}, "text": {"!echo hi"}})
	require.Equal(t, http.StatusOK, rec.Code)
	var out []Outgoing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "@7\nhi", out[0].Text)

	members, err := c.GroupMemberList(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "seven", members[0].Nickname)
}

func TestSayBadRequest(t *testing.T) {
	_, _, h := setup(t)
	rec := post(t, h, "/api", url.Values{"text": {"hi"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventInjection(t *testing.T) {
	b, _, h := setup(t)
	got := 0
	b.Register("echo", event.KindGroupBanNotice, func(ctx context.Context, conn bot.Connector, ev event.Event) (bot.Action, error) {
		if n, ok := ev.(*event.GroupBanNotice); ok && n.Duration == 60 {
			got++
		}
		return bot.Pass, nil
	}, 0)

	req := httptest.NewRequest(http.MethodPost, "/event/handleGroupBanNotice",
		strings.NewReader(`{"group_id": 1, "user_id": 2, "duration": 60}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, got)

	req = httptest.NewRequest(http.MethodPost, "/event/nope", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDropsFromOutbox(t *testing.T) {
	_, c, _ := setup(t)
	ctx := context.Background()
	id, err := c.SendPrivateMessage(ctx, 1, nil)
	require.NoError(t, err)
	_, err = c.SendPrivateMessage(ctx, 1, nil)
	require.NoError(t, err)
	require.NoError(t, c.DeleteMessage(ctx, id))
	assert.Len(t, c.Drain(), 1)
	assert.Empty(t, c.Drain())
}

func TestRegisterWeb(t *testing.T) {
	b, c, _ := setup(t)
	ws := web.New(b, web.WithRateLimit(0, 0))
	c.RegisterWeb(ws)
	assert.Equal(t, []web.EndPoint{{Name: "CLI", URL: "/cli"}}, ws.GetWebNavigation())

	rec := post(t, ws, "/cli/api", url.Values{"from": {"7"}, "text": {"!echo routed"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "routed")
}
