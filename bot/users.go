// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

package bot

import (
	"github.com/velour/catqq/bot/event"
	"github.com/velour/catqq/bot/user"
)

// SenderOf returns who sent ev, with the sender details when the event carries them.
// Events without a single sender return 0.
func SenderOf(ev event.Event) (int64, *user.Sender) {
	switch e := ev.(type) {
	case *event.PrivateMessage:
		return e.UserID, e.Sender
	case *event.GroupMessage:
		return e.UserID, e.Sender
	case *event.ChannelMessage:
		if e.Sender == nil {
			return 0, nil
		}
		return e.Sender.UserID, e.Sender
	case *event.GroupUploadNotice:
		return e.UserID, nil
	case *event.GroupRequest:
		return e.UserID, nil
	case *event.FriendRequest:
		return e.UserID, nil
	case *event.FriendAddNotice:
		return e.UserID, nil
	}
	return 0, nil
}

// IsAdmin reports whether userID is a bot administrator
func (b *Bot) IsAdmin(userID int64) bool {
	return b.Registry.IsAdmin(userID)
}

// SetAdminCheck installs the administrator predicate
func (b *Bot) SetAdminCheck(f func(userID int64) bool) {
	b.Registry.SetAdminCheck(f)
}
