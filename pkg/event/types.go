// Package event defines the closed set of gateway events and the static
// registry that decodes raw frames into them.
//
// Every event kind is identified by an EventType (post_type, sub_type) pair.
// The pair is derived from the frame's discriminator fields, never guessed
// from the shape of the payload.
package event

import (
	"encoding/json"
	"fmt"
)

// EventType is the lookup key shared by the decoder registry and the
// handler table. Comparable, so it can key a map directly.
type EventType struct {
	PostType string
	SubType  string
}

func (t EventType) String() string {
	return t.PostType + "." + t.SubType
}

const (
	PostMessage   = "message"
	PostNotice    = "notice"
	PostMetaEvent = "meta_event"
)

var (
	KeyPrivateMsg          = EventType{PostMessage, "private"}
	KeyGroupMsg            = EventType{PostMessage, "group"}
	KeyEnable              = EventType{PostMetaEvent, "enable"}
	KeyDisable             = EventType{PostMetaEvent, "disable"}
	KeyConnect             = EventType{PostMetaEvent, "connect"}
	KeyGroupUploadNotice   = EventType{PostNotice, "group_upload"}
	KeyGroupAdminNotice    = EventType{PostNotice, "group_admin"}
	KeyGroupDecreaseNotice = EventType{PostNotice, "group_decrease"}
	KeyGroupIncreaseNotice = EventType{PostNotice, "group_increase"}
	KeyGroupBanNotice      = EventType{PostNotice, "group_ban"}
	KeyFriendAddNotice     = EventType{PostNotice, "friend_add"}
	KeyGroupRecallNotice   = EventType{PostNotice, "group_recall"}
	KeyFriendRecallNotice  = EventType{PostNotice, "friend_recall"}
	KeyGroupNotifyNotice   = EventType{PostNotice, "group_notify"}
)

// Event is implemented by exactly the fourteen kinds in this package.
type Event interface {
	Type() EventType
	Meta() Base
}

// Base carries the fields every event has. Raw keeps the undecoded frame so
// handlers can read fields this package does not model.
type Base struct {
	Time   int64           `json:"time"`
	SelfID int64           `json:"self_id"`
	Raw    json.RawMessage `json:"-"`
}

func (b Base) Meta() Base { return b }

func (b *Base) setRaw(raw []byte) {
	b.Raw = append(json.RawMessage(nil), raw...)
}

// Field decodes a single top-level field of the raw frame into v.
func (b Base) Field(name string, v any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b.Raw, &fields); err != nil {
		return err
	}
	raw, ok := fields[name]
	if !ok {
		return fmt.Errorf("field %q not present", name)
	}
	return json.Unmarshal(raw, v)
}

// Sender is the sender block attached to message events.
type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card,omitempty"`
	Sex      string `json:"sex,omitempty"`
	Age      int32  `json:"age,omitempty"`
	Area     string `json:"area,omitempty"`
	Level    string `json:"level,omitempty"`
	Role     string `json:"role,omitempty"`
	Title    string `json:"title,omitempty"`
}

// DecodeError reports a frame that matched a registered key but could not
// be decoded into its kind.
type DecodeError struct {
	Key   EventType
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode %s: field %q: %v", e.Key, e.Field, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
