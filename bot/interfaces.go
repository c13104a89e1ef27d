// © 2016 the CatBase Authors under the WTFPL license. See AUTHORS for the list of authors.

package bot

import (
	"context"
	"errors"

	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/msg"
	"github.com/velour/catqq/bot/user"
)

// Action tells the bus whether to keep running the handler chain
type Action int

const (
	// Pass lets the event continue to the next handler. It is the zero value.
	Pass Action = iota
	// Prevent stops the chain for this dispatch
	Prevent
)

func (a Action) String() string {
	if a == Prevent {
		return "prevent"
	}
	return "pass"
}

// Handler reacts to one event. Returning an error stops the chain and hands the error
// back to whoever called Dispatch.
type Handler func(ctx context.Context, conn Connector, ev event.Event) (Action, error)

// Callback is what an EventSource calls for each inbound event of a kind
type Callback func(ctx context.Context, conn Connector, ev event.Event) error

// Connector is one bot account on the chat backend
type Connector interface {
	// SelfID is the bot's own account number
	SelfID() int64
	Close() error

	SendPrivateMessage(ctx context.Context, userID int64, m msg.Message) (string, error)
	SendGroupMessage(ctx context.Context, groupID int64, m msg.Message) (string, error)
	SendChannelMessage(ctx context.Context, guildID, channelID uint64, m msg.Message) (string, error)
	// DeleteMessage retracts a message by the id a Send call returned
	DeleteMessage(ctx context.Context, messageID string) error

	GroupMemberList(ctx context.Context, groupID int64) ([]user.Member, error)
}

// EventSource delivers inbound events. The bus installs exactly one callback per kind.
type EventSource interface {
	RegisterEvent(kind event.Kind, cb Callback)
}

// Mode picks how a reply addresses the sender
type Mode int

const (
	// Reply quotes the original message. Groups fall back to At.
	Reply Mode = iota
	// At mentions the sender before the reply
	At
	// Plain sends the reply as is
	Plain
)

var (
	ErrUnknownPlugin   = errors.New("unknown plugin")
	ErrDuplicatePlugin = errors.New("plugin already loaded")
	ErrNoClose         = errors.New("plugin cannot be disabled")
	ErrBadCommand      = errors.New("invalid command")
)
