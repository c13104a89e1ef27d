// © 2016 the CatBase Authors under the WTFPL license. See AUTHORS for the list of authors.

package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/msg"
	"github.com/velour/catqq/bot/user"
)

// Sent is one message a MockConnector was asked to deliver
type Sent struct {
	ID      string
	Target  string
	To      int64
	Guild   uint64
	Channel uint64
	Message msg.Message
}

// MockConnector records everything sent through it. Member lists come from
// testify expectations.
type MockConnector struct {
	mock.Mock
	ID int64
	// NoReceipts makes sends return an empty message id
	NoReceipts bool

	mu      sync.Mutex
	next    int
	sent    []Sent
	deleted []string
	closed  bool
}

func NewMockConnector(id int64) *MockConnector {
	return &MockConnector{ID: id}
}

func (mc *MockConnector) SelfID() int64 { return mc.ID }

func (mc *MockConnector) Close() error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.closed = true
	return nil
}

func (mc *MockConnector) record(s Sent) (string, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.next++
	if !mc.NoReceipts {
		s.ID = fmt.Sprintf("m%d", mc.next)
	}
	mc.sent = append(mc.sent, s)
	return s.ID, nil
}

func (mc *MockConnector) SendPrivateMessage(ctx context.Context, userID int64, m msg.Message) (string, error) {
	return mc.record(Sent{Target: event.MessageTypePrivate, To: userID, Message: m})
}

func (mc *MockConnector) SendGroupMessage(ctx context.Context, groupID int64, m msg.Message) (string, error) {
	return mc.record(Sent{Target: event.MessageTypeGroup, To: groupID, Message: m})
}

func (mc *MockConnector) SendChannelMessage(ctx context.Context, guildID, channelID uint64, m msg.Message) (string, error) {
	return mc.record(Sent{Target: event.MessageTypeChannel, Guild: guildID, Channel: channelID, Message: m})
}

func (mc *MockConnector) DeleteMessage(ctx context.Context, messageID string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.deleted = append(mc.deleted, messageID)
	return nil
}

func (mc *MockConnector) GroupMemberList(ctx context.Context, groupID int64) ([]user.Member, error) {
	args := mc.Called(groupID)
	members, _ := args.Get(0).([]user.Member)
	return members, args.Error(1)
}

// Messages returns copies of everything sent so far
func (mc *MockConnector) Messages() []Sent {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return append([]Sent{}, mc.sent...)
}

// Texts renders every sent message as text
func (mc *MockConnector) Texts() []string {
	out := []string{}
	for _, s := range mc.Messages() {
		out = append(out, s.Message.String())
	}
	return out
}

// Deleted lists retracted message ids in order
func (mc *MockConnector) Deleted() []string {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return append([]string{}, mc.deleted...)
}

// MockSource is an EventSource that keeps callbacks for tests to fire
type MockSource struct {
	mu        sync.Mutex
	callbacks map[event.Kind][]Callback
}

func NewMockSource() *MockSource {
	return &MockSource{callbacks: map[event.Kind][]Callback{}}
}

func (ms *MockSource) RegisterEvent(kind event.Kind, cb Callback) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.callbacks[kind] = append(ms.callbacks[kind], cb)
}

// Installed is how many callbacks were installed for kind
func (ms *MockSource) Installed(kind event.Kind) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return len(ms.callbacks[kind])
}

// Fire delivers ev through every callback installed for its kind
func (ms *MockSource) Fire(ctx context.Context, conn Connector, ev event.Event) error {
	ms.mu.Lock()
	cbs := append([]Callback{}, ms.callbacks[ev.Kind()]...)
	ms.mu.Unlock()
	for _, cb := range cbs {
		if err := cb(ctx, conn, ev); err != nil {
			return err
		}
	}
	return nil
}

// GroupText builds a group message event as a client would deliver it
func GroupText(self, group, from int64, segs ...msg.Segment) *event.GroupMessage {
	return &event.GroupMessage{
		Header: event.Header{
			Base:        event.Base{SelfID: self},
			PostType:    event.PostTypeMessage,
			MessageType: event.MessageTypeGroup,
			Message:     msg.Message(segs),
			Sender:      &user.Sender{UserID: from, Nickname: fmt.Sprintf("user%d", from)},
		},
		GroupID: group,
		UserID:  from,
	}
}

// PrivateText builds a private message event as a client would deliver it
func PrivateText(self, from int64, segs ...msg.Segment) *event.PrivateMessage {
	return &event.PrivateMessage{
		Header: event.Header{
			Base:        event.Base{SelfID: self},
			PostType:    event.PostTypeMessage,
			MessageType: event.MessageTypePrivate,
			Message:     msg.Message(segs),
			Sender:      &user.Sender{UserID: from, Nickname: fmt.Sprintf("user%d", from)},
		},
		UserID: from,
	}
}

// ChannelText builds a channel message event as a client would deliver it
func ChannelText(self int64, guild, channel, tiny uint64, segs ...msg.Segment) *event.ChannelMessage {
	return &event.ChannelMessage{
		Header: event.Header{
			Base:        event.Base{SelfID: self},
			PostType:    event.PostTypeMessage,
			MessageType: event.MessageTypeChannel,
			Message:     msg.Message(segs),
			Sender:      &user.Sender{Nickname: "member", TinyID: tiny},
		},
		GuildID:   guild,
		ChannelID: channel,
	}
}
