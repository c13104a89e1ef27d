package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/msg"
)

const self = 10001

func enabled(t *testing.T, b *Bot, names ...string) {
	t.Helper()
	for _, n := range names {
		load(t, b, n, &Plugin{}, nil)
		require.NoError(t, b.SetEnabled(context.Background(), n, true))
	}
}

func capture(got **Command) CommandHandler {
	return func(ctx context.Context, c *Command) error {
		*got = c
		return nil
	}
}

func TestRegisterCommandRejectsSeparator(t *testing.T) {
	b, _ := setup(t)
	for _, bad := range []string{"a:b", ":", "", "two words"} {
		err := b.RegisterCommand("p", []string{"ok", bad}, []event.Kind{event.KindGroupMessage}, nil)
		assert.ErrorIs(t, err, ErrBadCommand, bad)
	}
	assert.Empty(t, b.Router.Commands())

	err := b.RegisterCommand("p", []string{"ok"}, []event.Kind{event.KindConnect}, nil)
	assert.ErrorIs(t, err, ErrBadCommand)
}

func TestPingScenario(t *testing.T) {
	b, conn := setup(t)
	enabled(t, b, "core")
	var got *Command
	require.NoError(t, b.RegisterCommand("core", []string{"ping"}, []event.Kind{event.KindGroupMessage}, capture(&got)))

	ev := GroupText(self, 5, 7, msg.AtUser(self, "bot"), msg.Text("!ping"))
	require.NoError(t, b.Bus.Dispatch(context.Background(), conn, ev))
	require.NotNil(t, got)
	assert.Equal(t, "ping", got.RealCmd)
	assert.Equal(t, "ping", got.Cmd)
	assert.Empty(t, got.Args)
	assert.Equal(t, event.KindGroupMessage, got.Kind)
	assert.Same(t, conn, got.Conn)
}

func TestGroupNeedsMention(t *testing.T) {
	b, conn := setup(t)
	enabled(t, b, "core")
	var got *Command
	require.NoError(t, b.RegisterCommand("core", []string{"ping"}, []event.Kind{event.KindGroupMessage}, capture(&got)))

	ctx := context.Background()
	require.NoError(t, b.Bus.Dispatch(ctx, conn, GroupText(self, 5, 7, msg.Text("!ping"))))
	assert.Nil(t, got)
	require.NoError(t, b.Bus.Dispatch(ctx, conn, GroupText(self, 5, 7, msg.AtUser(99, "other"), msg.Text("!ping"))))
	assert.Nil(t, got)
}

func TestPrivateArgs(t *testing.T) {
	b, conn := setup(t)
	enabled(t, b, "core")
	var got *Command
	require.NoError(t, b.RegisterCommand("core", []string{"echo"}, []event.Kind{event.KindPrivateMessage}, capture(&got)))

	img := msg.Image("a.png", "")
	ev := PrivateText(self, 7, msg.Text("  !echo  hello there "), img)
	require.NoError(t, b.Bus.Dispatch(context.Background(), conn, ev))
	require.NotNil(t, got)
	assert.Equal(t, msg.Message{msg.Text("hello there"), img}, got.Args)
	// the inbound event is left alone
	assert.Equal(t, "  !echo  hello there ", ev.Message[0].Text())
}

func TestCommandKinds(t *testing.T) {
	b, conn := setup(t)
	enabled(t, b, "core")
	var got *Command
	require.NoError(t, b.RegisterCommand("core", []string{"g"}, []event.Kind{event.KindGroupMessage}, capture(&got)))

	require.NoError(t, b.Bus.Dispatch(context.Background(), conn, PrivateText(self, 7, msg.Text("!g"))))
	assert.Nil(t, got)
}

func TestIgnoresNonCommands(t *testing.T) {
	b, conn := setup(t)
	enabled(t, b, "core")
	calls := 0
	require.NoError(t, b.RegisterCommand("core", []string{"x"}, []event.Kind{event.KindPrivateMessage},
		func(ctx context.Context, c *Command) error { calls++; return nil }))

	ctx := context.Background()
	for _, m := range []msg.Message{
		{},
		{msg.Text("x")},
		{msg.Text("!")},
		{msg.Text("!y")},
		{msg.Image("f", "")},
		{msg.AtUser(self, "bot")},
	} {
		require.NoError(t, b.Bus.Dispatch(ctx, conn, PrivateText(self, 7, m...)))
	}
	assert.Zero(t, calls)

	bad := PrivateText(self, 7, msg.Text("!x"))
	bad.MessageType = event.MessageTypeGroup
	require.NoError(t, b.Bus.Dispatch(ctx, conn, bad))
	assert.Zero(t, calls)

	require.NoError(t, b.Bus.Dispatch(ctx, conn, PrivateText(self, 7, msg.Text("!x"))))
	assert.Equal(t, 1, calls)
}

func TestConflictScenario(t *testing.T) {
	b, conn := setup(t)
	enabled(t, b, "a", "b")
	answered := []string{}
	answer := func(name string) CommandHandler {
		return func(ctx context.Context, c *Command) error {
			answered = append(answered, name+" "+c.RealCmd)
			return nil
		}
	}
	kinds := []event.Kind{event.KindPrivateMessage}
	require.NoError(t, b.RegisterCommand("a", []string{"x"}, kinds, answer("a")))
	require.NoError(t, b.RegisterCommand("b", []string{"x"}, kinds, answer("b")))

	ctx := context.Background()
	for _, text := range []string{"!x", "!a:x", "!b:x"} {
		require.NoError(t, b.Bus.Dispatch(ctx, conn, PrivateText(self, 7, msg.Text(text))))
	}
	assert.Equal(t, []string{"a x", "a a:x", "b b:x"}, answered)

	names := []string{}
	for _, ci := range b.Router.Commands() {
		names = append(names, ci.Name)
		assert.Equal(t, "x", ci.Cmd)
	}
	assert.Equal(t, []string{"a:x", "b:x", "x"}, names)
}

func TestCommandSkippedWhenDisabled(t *testing.T) {
	b, conn := setup(t)
	enabled(t, b, "core")
	calls := 0
	require.NoError(t, b.RegisterCommand("core", []string{"x"}, []event.Kind{event.KindPrivateMessage},
		func(ctx context.Context, c *Command) error { calls++; return nil }))
	require.NoError(t, b.SetEnabled(context.Background(), "core", false))

	require.NoError(t, b.Bus.Dispatch(context.Background(), conn, PrivateText(self, 7, msg.Text("!x"))))
	assert.Zero(t, calls)
}

func TestCommandError(t *testing.T) {
	b, conn := setup(t)
	enabled(t, b, "core")
	boom := errors.New("boom")
	require.NoError(t, b.RegisterCommand("core", []string{"x"}, []event.Kind{event.KindPrivateMessage},
		func(ctx context.Context, c *Command) error { return boom }))

	err := b.Bus.Dispatch(context.Background(), conn, PrivateText(self, 7, msg.Text("!x")))
	assert.ErrorIs(t, err, boom)
}

func TestBack(t *testing.T) {
	b, conn := setup(t)
	enabled(t, b, "core")
	require.NoError(t, b.RegisterCommand("core", []string{"hi"}, []event.Kind{event.KindGroupMessage},
		func(ctx context.Context, c *Command) error {
			if id, err := c.Back(ctx, ""); err != nil || id != "" {
				return fmt.Errorf("empty reply sent %q: %v", id, err)
			}
			_, err := c.Back(ctx, "hello")
			return err
		}))

	ev := GroupText(self, 5, 7, msg.AtUser(self, "bot"), msg.Text("!hi"))
	require.NoError(t, b.Bus.Dispatch(context.Background(), conn, ev))
	sent := conn.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(5), sent[0].To)
	assert.Equal(t, "@7\nhello", sent[0].Message.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(b.Stats.MessagesSent.WithLabelValues(event.MessageTypeGroup)))
}

func TestLoadingNotice(t *testing.T) {
	b, conn := setup(t)
	enabled(t, b, "core")
	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, b.RegisterCommand("core", []string{"slow"}, []event.Kind{event.KindPrivateMessage},
		func(ctx context.Context, c *Command) error {
			defer wg.Done()
			ok, err := c.LoadingNotice(ctx, "working")
			assert.NoError(t, err)
			assert.True(t, ok)
			ok, err = c.LoadingNotice(ctx, "still working")
			assert.NoError(t, err)
			assert.True(t, ok)
			ok, err = c.LoadingNotice(ctx, nil)
			assert.NoError(t, err)
			assert.True(t, ok)
			return nil
		}))

	require.NoError(t, b.Bus.Dispatch(ctx, conn, PrivateText(self, 7, msg.Text("!slow"))))
	wg.Wait()
	assert.Equal(t, []string{"working", "still working"}, conn.Texts())
	assert.Equal(t, []string{"m1", "m2"}, conn.Deleted())
	assert.Zero(t, b.Tracker.Len())
}

func TestLoadingNoticeExpires(t *testing.T) {
	b, conn := setup(t)
	enabled(t, b, "core")
	b.Router.NoticeTimeout = 20 * time.Millisecond
	require.NoError(t, b.RegisterCommand("core", []string{"slow"}, []event.Kind{event.KindPrivateMessage},
		func(ctx context.Context, c *Command) error {
			_, err := c.LoadingNotice(ctx, "working")
			return err
		}))

	require.NoError(t, b.Bus.Dispatch(context.Background(), conn, PrivateText(self, 7, msg.Text("!slow"))))
	assert.Eventually(t, func() bool { return len(conn.Deleted()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, b.Tracker.Len())
}

func TestLoadingNoticeWithoutReceipt(t *testing.T) {
	b, conn := setup(t)
	conn.NoReceipts = true
	enabled(t, b, "core")
	var ok bool
	require.NoError(t, b.RegisterCommand("core", []string{"slow"}, []event.Kind{event.KindPrivateMessage},
		func(ctx context.Context, c *Command) (err error) {
			ok, err = c.LoadingNotice(ctx, "working")
			return err
		}))

	require.NoError(t, b.Bus.Dispatch(context.Background(), conn, PrivateText(self, 7, msg.Text("!slow"))))
	assert.False(t, ok)
	assert.Len(t, conn.Messages(), 1)
	assert.Zero(t, b.Tracker.Len())
}

func TestLoadingNoticeChannel(t *testing.T) {
	b, conn := setup(t)
	enabled(t, b, "core")
	ok := true
	require.NoError(t, b.RegisterCommand("core", []string{"slow"}, []event.Kind{event.KindChannelMessage},
		func(ctx context.Context, c *Command) (err error) {
			ok, err = c.LoadingNotice(ctx, "working")
			return err
		}))

	ev := ChannelText(self, 1, 2, 3, msg.AtUser(self, "bot"), msg.Text("!slow"))
	require.NoError(t, b.Bus.Dispatch(context.Background(), conn, ev))
	assert.False(t, ok)
	assert.Empty(t, conn.Messages())
}
