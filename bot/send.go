package bot

import (
	"context"
	"fmt"
	"strconv"

	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/msg"
)

// SendBack replies to where ev came from. Anything msg.From accepts can be sent;
// an empty result sends nothing and returns "".
// Groups cannot quote, so Reply becomes At there. Channels only mention senders
// that carry a tiny id.
func SendBack(ctx context.Context, conn Connector, ev event.Message, in any, mode Mode) (string, error) {
	m := msg.From(in)
	if m == nil {
		return "", nil
	}
	switch e := ev.(type) {
	case *event.PrivateMessage:
		return conn.SendPrivateMessage(ctx, e.UserID, m)
	case *event.GroupMessage:
		if mode == Reply {
			mode = At
		}
		if mode == At {
			m = addressed(m, msg.AtUser(e.UserID, e.Sender.Name()))
		}
		return conn.SendGroupMessage(ctx, e.GroupID, m)
	case *event.ChannelMessage:
		if mode == At && e.Sender != nil && e.Sender.TinyID != 0 {
			m = addressed(m, msg.At(strconv.FormatUint(e.Sender.TinyID, 10), e.Sender.Name()))
		}
		return conn.SendChannelMessage(ctx, e.GuildID, e.ChannelID, m)
	}
	return "", fmt.Errorf("cannot reply to %T", ev)
}

// addressed puts a mention and a line break in front of m without touching m
func addressed(m msg.Message, at msg.Segment) msg.Message {
	out := make(msg.Message, 0, len(m)+2)
	out = append(out, at, msg.Text("\n"))
	return append(out, m...)
}
