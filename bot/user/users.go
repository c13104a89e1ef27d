// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

package user

// Sender describes who sent a message event
type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	// Card is the group display name, if any
	Card string `json:"card,omitempty"`
	// TinyID identifies the sender inside guild channels
	TinyID uint64 `json:"tiny_id,omitempty"`
}

// Name returns the best display name for the sender, or "-" when none is known.
func (s *Sender) Name() string {
	if s == nil {
		return "-"
	}
	if s.Card != "" {
		return s.Card
	}
	if s.Nickname != "" {
		return s.Nickname
	}
	return "-"
}

// Member is one entry of a group member list
type Member struct {
	GroupID  int64  `json:"group_id"`
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card,omitempty"`
	Role     string `json:"role,omitempty"`
}

// Name is the group card when set, else the nickname
func (m Member) Name() string {
	if m.Card != "" {
		return m.Card
	}
	return m.Nickname
}
