package conversation

import "strings"

// Kind identifies what sort of chat a Key refers to.
type Kind string

const (
	KindUser    Kind = "user"
	KindGroup   Kind = "group"
	KindRoom    Kind = "room"
	KindUnknown Kind = "unknown"
)

// Source is the raw source descriptor carried by an inbound event.
type Source struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// Key identifies one conversation: a one-to-one chat, a group or a room.
// It is comparable and used directly as a map key.
type Key struct {
	Kind Kind
	ID   string
}

// Unknown is returned for sources that cannot be resolved.
var Unknown = Key{Kind: KindUnknown}

// Resolve derives the conversation key of a source. It never fails; anything
// it cannot make sense of maps to Unknown.
func Resolve(src Source) Key {
	var kind Kind
	var id string
	switch strings.ToLower(strings.TrimSpace(src.Type)) {
	case "user":
		kind, id = KindUser, src.UserID
	case "group":
		kind, id = KindGroup, src.GroupID
	case "room":
		kind, id = KindRoom, src.RoomID
	default:
		return Unknown
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Unknown
	}
	return Key{Kind: kind, ID: id}
}

// IsDirect reports whether the key is a one-to-one chat.
func (k Key) IsDirect() bool { return k.Kind == KindUser }

// IsUnknown reports whether the key is the Unknown sentinel.
func (k Key) IsUnknown() bool { return k.Kind == KindUnknown || k.ID == "" }

// PushTarget returns the id used for push messages, or "" when there is none.
// For groups and rooms it is the group/room id, for direct chats the user id.
func (k Key) PushTarget() string {
	if k.IsUnknown() {
		return ""
	}
	return k.ID
}

func (k Key) String() string {
	if k.IsUnknown() {
		return string(KindUnknown)
	}
	return string(k.Kind) + ":" + k.ID
}
