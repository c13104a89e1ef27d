// © 2013 the CatBase Authors under the WTFPL. See AUTHORS for the list of authors.

package msg

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment types understood by the core. Anything else is passed through untouched.
const (
	TypeText  = "text"
	TypeAt    = "at"
	TypeImage = "image"
)

// Segment is one typed piece of a message
type Segment struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data,omitempty"`
}

// Message is an ordered list of segments
type Message []Segment

func Text(s string) Segment {
	return Segment{Type: TypeText, Data: map[string]string{"text": s}}
}

// At mentions the identity id, showing name where the client supports it.
func At(id, name string) Segment {
	return Segment{Type: TypeAt, Data: map[string]string{"qq": id, "name": name}}
}

// AtUser mentions a numeric user id
func AtUser(id int64, name string) Segment {
	return At(strconv.FormatInt(id, 10), name)
}

func Image(file, url string) Segment {
	return Segment{Type: TypeImage, Data: map[string]string{"file": file, "url": url}}
}

// Text returns the text of a text segment and "" for any other segment
func (s Segment) Text() string {
	if s.Type != TypeText {
		return ""
	}
	return s.Data["text"]
}

// Target returns the identity an at segment points at
func (s Segment) Target() string {
	if s.Type != TypeAt {
		return ""
	}
	return s.Data["qq"]
}

func (s Segment) emptyText() bool {
	return s.Type == TypeText && s.Data["text"] == ""
}

// Empty reports whether the message has nothing worth sending
func (m Message) Empty() bool {
	for _, s := range m {
		if !s.emptyText() {
			return false
		}
	}
	return true
}

// String renders the message as plain text, mentions as @id and other segments as [type]
func (m Message) String() string {
	var sb strings.Builder
	for _, s := range m {
		switch s.Type {
		case TypeText:
			sb.WriteString(s.Text())
		case TypeAt:
			sb.WriteString("@" + s.Target())
		default:
			sb.WriteString("[" + s.Type + "]")
		}
	}
	return sb.String()
}

// Clone copies the segment list. Segment data maps are shared.
func (m Message) Clone() Message {
	if m == nil {
		return nil
	}
	out := make(Message, len(m))
	copy(out, m)
	return out
}

// From turns the loose values a plugin hands back into a Message.
// It accepts nil, string, []string, Segment, Message, []Segment and []any mixing those.
// A nil result means there is nothing to send.
func From(in any) Message {
	switch v := in.(type) {
	case nil:
		return nil
	case string:
		return fromString(v)
	case Message:
		if v.Empty() {
			return nil
		}
		return v
	case []Segment:
		return From(Message(v))
	case Segment:
		if v.emptyText() {
			return nil
		}
		return Message{v}
	case []string:
		return fromString(strings.Join(v, "\n"))
	case []Message:
		items := make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
		return fromSlice(items)
	case []any:
		return fromSlice(v)
	case fmt.Stringer:
		return fromString(v.String())
	default:
		return fromString(fmt.Sprint(v))
	}
}

func fromString(s string) Message {
	if s == "" {
		return nil
	}
	return Message{Text(s)}
}

// fromSlice joins plain strings with newlines. When anything richer is mixed in, every
// element but the last is followed by a newline.
func fromSlice(in []any) Message {
	items := make([]any, 0, len(in))
	rich := false
	for _, x := range in {
		if x == nil {
			continue
		}
		if _, ok := x.(string); !ok {
			rich = true
		}
		items = append(items, x)
	}

	if !rich {
		strs := make([]string, len(items))
		for i, x := range items {
			strs[i] = x.(string)
		}
		return fromString(strings.Join(strs, "\n"))
	}

	flat := make([]any, 0, len(items))
	for _, x := range items {
		switch y := x.(type) {
		case Message:
			for _, s := range y {
				flat = append(flat, s)
			}
		case []Segment:
			for _, s := range y {
				flat = append(flat, s)
			}
		default:
			flat = append(flat, x)
		}
	}

	out := Message{}
	for i, x := range flat {
		last := i == len(flat)-1
		switch y := x.(type) {
		case Segment:
			out = append(out, y)
			if !last {
				out = append(out, Text("\n"))
			}
		case string:
			if !last {
				y += "\n"
			}
			out = append(out, Text(y))
		default:
			s := fmt.Sprint(y)
			if !last {
				s += "\n"
			}
			out = append(out, Text(s))
		}
	}
	if out.Empty() {
		return nil
	}
	return out
}

// Number reads a numeric id from the start of args, either a mention or a text token.
// ok is true only for a valid number. raw holds what was read, and is empty when args
// carry nothing at all.
func Number(args Message) (n int64, raw string, ok bool) {
	for _, s := range args {
		switch s.Type {
		case TypeAt:
			raw = s.Target()
		case TypeText:
			fields := strings.Fields(s.Text())
			if len(fields) == 0 {
				continue
			}
			raw = fields[0]
		default:
			raw = "[" + s.Type + "]"
			return 0, raw, false
		}
		break
	}
	if raw == "" {
		return 0, "", false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, raw, false
	}
	return n, raw, true
}
