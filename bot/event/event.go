// © 2016 the CatBase Authors under the WTFPL license. See AUTHORS for the list of authors.

// Package event defines every kind of inbound protocol event the bot reacts to.
// Each kind has its own payload type; handlers pick them apart with a type switch.
package event

import (
	"fmt"

	"github.com/velour/catqq/bot/msg"
	"github.com/velour/catqq/bot/user"
)

type Kind int

const (
	_ Kind = iota

	KindConnect
	KindDisconnect
	KindPrivateMessage
	KindGroupMessage
	KindChannelMessage
	KindGroupUploadNotice
	KindGroupAdminNotice
	KindGroupDecreaseNotice
	KindGroupIncreaseNotice
	KindGroupBanNotice
	KindFriendAddNotice
	KindGroupRecallNotice
	KindFriendRecallNotice
	KindFriendRequest
	KindGroupRequest
)

var kindNames = map[Kind]string{
	KindConnect:             "handleConnect",
	KindDisconnect:          "handleDisconnect",
	KindPrivateMessage:      "handlePrivateMessage",
	KindGroupMessage:        "handleGroupMessage",
	KindChannelMessage:      "handleChannelMessage",
	KindGroupUploadNotice:   "handleGroupUploadNotice",
	KindGroupAdminNotice:    "handleGroupAdminNotice",
	KindGroupDecreaseNotice: "handleGroupDecreaseNotice",
	KindGroupIncreaseNotice: "handleGroupIncreaseNotice",
	KindGroupBanNotice:      "handleGroupBanNotice",
	KindFriendAddNotice:     "handleFriendAddNotice",
	KindGroupRecallNotice:   "handleGroupRecallNotice",
	KindFriendRecallNotice:  "handleFriendRecallNotice",
	KindFriendRequest:       "handleFriendRequest",
	KindGroupRequest:        "handleGroupRequest",
}

// Kinds lists every kind in declaration order
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := KindConnect; k <= KindGroupRequest; k++ {
		out = append(out, k)
	}
	return out
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts either the handler name (handleGroupMessage) or the
// short message type (private, group, channel).
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if n == s {
			return k, nil
		}
	}
	switch s {
	case MessageTypePrivate:
		return KindPrivateMessage, nil
	case MessageTypeGroup:
		return KindGroupMessage, nil
	case MessageTypeChannel:
		return KindChannelMessage, nil
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Values of Header.PostType and Header.MessageType
const (
	PostTypeMessage = "message"
	PostTypeNotice  = "notice"
	PostTypeRequest = "request"

	MessageTypePrivate = "private"
	MessageTypeGroup   = "group"
	MessageTypeChannel = "channel"
)

// MessageType returns the message type a message kind carries, or "" for other kinds.
func (k Kind) MessageType() string {
	switch k {
	case KindPrivateMessage:
		return MessageTypePrivate
	case KindGroupMessage:
		return MessageTypeGroup
	case KindChannelMessage:
		return MessageTypeChannel
	}
	return ""
}

// Event is any inbound event payload
type Event interface {
	Kind() Kind
}

// Message is implemented by the three message events
type Message interface {
	Event
	Head() *Header
}

// Base carries the fields common to every protocol event
type Base struct {
	Time   int64 `json:"time"`
	SelfID int64 `json:"self_id"`
}

// Header carries the fields common to message events
type Header struct {
	Base
	PostType    string       `json:"post_type"`
	MessageType string       `json:"message_type"`
	SubType     string       `json:"sub_type,omitempty"`
	MessageID   string       `json:"message_id"`
	Message     msg.Message  `json:"message"`
	RawMessage  string       `json:"raw_message"`
	Sender      *user.Sender `json:"sender,omitempty"`
}

func (h *Header) Head() *Header { return h }

type Connect struct{}

func (*Connect) Kind() Kind { return KindConnect }

type Disconnect struct{}

func (*Disconnect) Kind() Kind { return KindDisconnect }

type PrivateMessage struct {
	Header
	UserID int64 `json:"user_id"`
}

func (*PrivateMessage) Kind() Kind { return KindPrivateMessage }

type GroupMessage struct {
	Header
	GroupID int64 `json:"group_id"`
	UserID  int64 `json:"user_id"`
}

func (*GroupMessage) Kind() Kind { return KindGroupMessage }

type ChannelMessage struct {
	Header
	GuildID   uint64 `json:"guild_id"`
	ChannelID uint64 `json:"channel_id"`
}

func (*ChannelMessage) Kind() Kind { return KindChannelMessage }

// File describes an uploaded group file
type File struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url,omitempty"`
}

type GroupUploadNotice struct {
	Base
	GroupID int64 `json:"group_id"`
	UserID  int64 `json:"user_id"`
	File    File  `json:"file"`
}

func (*GroupUploadNotice) Kind() Kind { return KindGroupUploadNotice }

type GroupAdminNotice struct {
	Base
	// SubType is set or unset
	SubType string `json:"sub_type"`
	GroupID int64  `json:"group_id"`
	UserID  int64  `json:"user_id"`
}

func (*GroupAdminNotice) Kind() Kind { return KindGroupAdminNotice }

type GroupDecreaseNotice struct {
	Base
	// SubType is leave, kick or kick_me
	SubType    string `json:"sub_type"`
	GroupID    int64  `json:"group_id"`
	OperatorID int64  `json:"operator_id"`
	UserID     int64  `json:"user_id"`
}

func (*GroupDecreaseNotice) Kind() Kind { return KindGroupDecreaseNotice }

type GroupIncreaseNotice struct {
	Base
	// SubType is approve or invite
	SubType    string `json:"sub_type"`
	GroupID    int64  `json:"group_id"`
	OperatorID int64  `json:"operator_id"`
	UserID     int64  `json:"user_id"`
}

func (*GroupIncreaseNotice) Kind() Kind { return KindGroupIncreaseNotice }

type GroupBanNotice struct {
	Base
	// SubType is ban or lift_ban
	SubType    string `json:"sub_type"`
	GroupID    int64  `json:"group_id"`
	OperatorID int64  `json:"operator_id"`
	UserID     int64  `json:"user_id"`
	// Duration in seconds
	Duration int64 `json:"duration"`
}

func (*GroupBanNotice) Kind() Kind { return KindGroupBanNotice }

type FriendAddNotice struct {
	Base
	UserID int64 `json:"user_id"`
}

func (*FriendAddNotice) Kind() Kind { return KindFriendAddNotice }

type GroupRecallNotice struct {
	Base
	GroupID    int64  `json:"group_id"`
	UserID     int64  `json:"user_id"`
	OperatorID int64  `json:"operator_id"`
	MessageID  string `json:"message_id"`
}

func (*GroupRecallNotice) Kind() Kind { return KindGroupRecallNotice }

type FriendRecallNotice struct {
	Base
	UserID    int64  `json:"user_id"`
	MessageID string `json:"message_id"`
}

func (*FriendRecallNotice) Kind() Kind { return KindFriendRecallNotice }

type FriendRequest struct {
	Base
	UserID  int64  `json:"user_id"`
	Comment string `json:"comment"`
	Flag    string `json:"flag"`
}

func (*FriendRequest) Kind() Kind { return KindFriendRequest }

type GroupRequest struct {
	Base
	// SubType is add or invite
	SubType string `json:"sub_type"`
	GroupID int64  `json:"group_id"`
	UserID  int64  `json:"user_id"`
	Comment string `json:"comment"`
	Flag    string `json:"flag"`
}

func (*GroupRequest) Kind() Kind { return KindGroupRequest }

// New returns an empty payload of the given kind, ready to be decoded into.
func New(k Kind) (Event, error) {
	switch k {
	case KindConnect:
		return &Connect{}, nil
	case KindDisconnect:
		return &Disconnect{}, nil
	case KindPrivateMessage:
		return &PrivateMessage{}, nil
	case KindGroupMessage:
		return &GroupMessage{}, nil
	case KindChannelMessage:
		return &ChannelMessage{}, nil
	case KindGroupUploadNotice:
		return &GroupUploadNotice{}, nil
	case KindGroupAdminNotice:
		return &GroupAdminNotice{}, nil
	case KindGroupDecreaseNotice:
		return &GroupDecreaseNotice{}, nil
	case KindGroupIncreaseNotice:
		return &GroupIncreaseNotice{}, nil
	case KindGroupBanNotice:
		return &GroupBanNotice{}, nil
	case KindFriendAddNotice:
		return &FriendAddNotice{}, nil
	case KindGroupRecallNotice:
		return &GroupRecallNotice{}, nil
	case KindFriendRecallNotice:
		return &FriendRecallNotice{}, nil
	case KindFriendRequest:
		return &FriendRequest{}, nil
	case KindGroupRequest:
		return &GroupRequest{}, nil
	}
	return nil, fmt.Errorf("unknown event kind %d", int(k))
}
