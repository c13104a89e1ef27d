// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

// Package scope names the targets a plugin can be limited to: a user, a group, a guild
// or a single channel inside a guild.
package scope

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the leading letter of an ID
type Kind byte

const (
	User    Kind = 'U'
	Group   Kind = 'G'
	Channel Kind = 'C'
)

// ID is a comparable scope key such as U123, G456, C789 or C789/1011.
// The zero value means "no scope".
type ID string

var idRegex = regexp.MustCompile(`^([UGC]\d+|C\d+/\d+)$`)

// ForUser returns the scope of a private conversation with userID.
func ForUser(userID int64) ID {
	return ID("U" + strconv.FormatInt(userID, 10))
}

// ForGroup returns the scope of a group.
func ForGroup(groupID int64) ID {
	return ID("G" + strconv.FormatInt(groupID, 10))
}

// ForGuild returns the guild-level scope covering every channel of guildID.
func ForGuild(guildID uint64) ID {
	return ID("C" + strconv.FormatUint(guildID, 10))
}

// ForChannel returns the scope of one channel inside a guild.
// A zero channelID yields the guild-level scope.
func ForChannel(guildID, channelID uint64) ID {
	if channelID == 0 {
		return ForGuild(guildID)
	}
	return ID(fmt.Sprintf("C%d/%d", guildID, channelID))
}

// Parse validates s and returns it as an ID
func Parse(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if !idRegex.MatchString(s) {
		return "", fmt.Errorf("invalid scope %q", s)
	}
	return ID(s), nil
}

// Valid reports whether id is well formed
func (id ID) Valid() bool {
	return idRegex.MatchString(string(id))
}

// Kind returns the target kind, or 0 for an empty ID.
func (id ID) Kind() Kind {
	if id == "" {
		return 0
	}
	return Kind(id[0])
}

// Parent returns the guild-level scope of a channel scope.
// Every other scope has no parent and yields "".
func (id ID) Parent() ID {
	if id.Kind() != Channel {
		return ""
	}
	i := strings.IndexByte(string(id), '/')
	if i < 0 {
		return ""
	}
	return id[:i]
}

func (id ID) String() string { return string(id) }

// Set is a lookup set of scopes. A nil Set means "every scope".
type Set map[ID]struct{}

// NewSet deduplicates ids into a Set, returning nil when ids is empty.
func NewSet(ids []ID) Set {
	if len(ids) == 0 {
		return nil
	}
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set
func (s Set) Has(id ID) bool {
	_, ok := s[id]
	return ok
}

// Covers reports whether the set accepts id, either exactly or through its parent.
// A nil set covers everything.
func (s Set) Covers(id ID) bool {
	if s == nil {
		return true
	}
	if s.Has(id) {
		return true
	}
	if p := id.Parent(); p != "" && s.Has(p) {
		return true
	}
	return false
}
