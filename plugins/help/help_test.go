package help

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/velour/catqq/bot"
	"github.com/velour/catqq/bot/msg"
)

const self = 10001

func helper(text string) bot.Factory {
	return func(pc *bot.PluginContext) (*bot.Plugin, error) {
		return &bot.Plugin{Help: func(bot.HelpRequest) any { return text }}, nil
	}
}

func setup(t *testing.T) (*bot.Bot, *bot.MockConnector) {
	t.Helper()
	ctx := context.Background()
	b := bot.New(nil)
	require.NoError(t, b.BuildCreate(New)(ctx, "help", "help", yaml.Node{}, nil, nil))
	require.NoError(t, b.BuildCreate(helper("pal stuff"))(ctx, "pal", "pal", yaml.Node{}, nil, nil))
	require.NoError(t, b.BuildCreate(helper("elsewhere"))(ctx, "other", "pal", yaml.Node{}, []int64{42}, nil))
	require.NoError(t, b.BuildCreate(helper(""))(ctx, "quiet", "quiet", yaml.Node{}, nil, nil))
	b.EnableAll(ctx)
	return b, bot.NewMockConnector(self)
}

func TestHelpPrivate(t *testing.T) {
	b, conn := setup(t)
	ev := bot.PrivateText(self, 3, msg.Text("!help"))
	require.NoError(t, b.Bus.Dispatch(context.Background(), conn, ev))
	assert.Equal(t, []string{
		"· help (help) help:\n!help / !帮助    list help\n\n\n· pal (pal) help:\npal stuff",
	}, conn.Texts())
}

func TestHelpGroupMentionsSender(t *testing.T) {
	b, conn := setup(t)
	var asked bot.HelpRequest
	require.NoError(t, b.BuildCreate(func(pc *bot.PluginContext) (*bot.Plugin, error) {
		return &bot.Plugin{Help: func(req bot.HelpRequest) any {
			asked = req
			return nil
		}}, nil
	})(context.Background(), "spy", "spy", yaml.Node{}, nil, nil))
	require.NoError(t, b.SetEnabled(context.Background(), "spy", true))

	ev := bot.GroupText(self, 77, 3, msg.AtUser(self, ""), msg.Text(" !帮助"))
	require.NoError(t, b.Bus.Dispatch(context.Background(), conn, ev))
	texts := conn.Texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "@3\n· help (help) help:")
	assert.Equal(t, bot.HelpRequest{Sender: 3, Bot: self, GroupID: 77}, asked)
}

func TestHelpSkipsDisabled(t *testing.T) {
	b, conn := setup(t)
	require.NoError(t, b.SetEnabled(context.Background(), "pal", false))
	ev := bot.PrivateText(self, 3, msg.Text("!help"))
	require.NoError(t, b.Bus.Dispatch(context.Background(), conn, ev))
	assert.NotContains(t, conn.Texts()[0], "pal stuff")
}

func TestCollectEmpty(t *testing.T) {
	assert.Nil(t, Collect(nil, bot.HelpRequest{}))
	assert.Nil(t, Collect([]bot.PluginInfo{{Name: "x", State: bot.Enabled}}, bot.HelpRequest{}))
}

func TestCollectBotScope(t *testing.T) {
	plugins := []bot.PluginInfo{{
		Name:  "other",
		Type:  "pal",
		State: bot.Enabled,
		Bots:  []int64{42},
		Help:  func(bot.HelpRequest) any { return "elsewhere" },
	}}
	assert.Nil(t, Collect(plugins, bot.HelpRequest{Bot: self}))
	assert.Equal(t, "· other (pal) help:\nelsewhere", Collect(plugins, bot.HelpRequest{Bot: 42}).String())
}
