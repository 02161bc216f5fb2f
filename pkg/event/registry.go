package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

// Decoder turns a raw frame into one concrete Event. Decoders fail closed:
// a missing required field or a field of the wrong JSON type is an error,
// never a zero-valued event.
type Decoder func(raw []byte) (Event, error)

var ErrUnknownType = errors.New("unknown event type")

var registry = map[EventType]Decoder{
	KeyPrivateMsg:          decoderFor[PrivateMsg]("user_id", "raw_message"),
	KeyGroupMsg:            decoderFor[GroupMsg]("group_id", "user_id", "raw_message"),
	KeyEnable:              decoderFor[EnableEvent](),
	KeyDisable:             decoderFor[DisableEvent](),
	KeyConnect:             decoderFor[ConnectEvent](),
	KeyGroupUploadNotice:   decoderFor[GroupUploadNotice]("group_id", "user_id", "file"),
	KeyGroupAdminNotice:    decoderFor[GroupAdminNotice]("group_id", "user_id"),
	KeyGroupDecreaseNotice: decoderFor[GroupDecreaseNotice]("group_id", "user_id"),
	KeyGroupIncreaseNotice: decoderFor[GroupIncreaseNotice]("group_id", "user_id"),
	KeyGroupBanNotice:      decoderFor[GroupBanNotice]("group_id", "user_id"),
	KeyFriendAddNotice:     decoderFor[FriendAddNotice]("user_id"),
	KeyGroupRecallNotice:   decoderFor[GroupRecallNotice]("group_id", "user_id", "message_id"),
	KeyFriendRecallNotice:  decoderFor[FriendRecallNotice]("user_id", "message_id"),
	KeyGroupNotifyNotice:   decoderFor[GroupNotifyNotice]("group_id", "user_id"),
}

// Lookup returns the decoder registered for key. Unknown keys are not an
// error: the gateway may speak extensions this client does not model.
func Lookup(key EventType) (Decoder, bool) {
	d, ok := registry[key]
	return d, ok
}

// Keys lists every registered key in a stable order.
func Keys() []EventType {
	keys := make([]EventType, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// KeyOf derives the EventType from a frame's discriminator fields. The
// sub-type field depends on post_type: message_type for messages,
// notice_type for notices and sub_type for meta events. ok is false when the
// frame has no string post_type at all.
func KeyOf(raw []byte) (key EventType, ok bool) {
	post := gjson.GetBytes(raw, "post_type")
	if post.Type != gjson.String {
		return EventType{}, false
	}

	key.PostType = post.Str
	var sub gjson.Result
	switch key.PostType {
	case PostMessage:
		sub = gjson.GetBytes(raw, "message_type")
	case PostMetaEvent:
		sub = gjson.GetBytes(raw, "sub_type")
	case PostNotice:
		sub = gjson.GetBytes(raw, "notice_type")
	}
	if sub.Type == gjson.String {
		key.SubType = sub.Str
	}
	return key, true
}

// Decode classifies and decodes raw in one step.
func Decode(raw []byte) (Event, error) {
	key, ok := KeyOf(raw)
	if !ok {
		return nil, errors.New("frame has no post_type")
	}
	dec, ok := Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, key)
	}
	return dec(raw)
}

var nullLiteral = []byte("null")

func decoderFor[E Event](required ...string) Decoder {
	var zero E
	key := zero.Type()
	required = append([]string{"time", "self_id"}, required...)

	return func(raw []byte) (Event, error) {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, &DecodeError{Key: key, Err: err}
		}
		for _, name := range required {
			v, ok := fields[name]
			if !ok || bytes.Equal(bytes.TrimSpace(v), nullLiteral) {
				return nil, &DecodeError{Key: key, Field: name, Err: errors.New("required field missing")}
			}
		}

		ev := new(E)
		if err := json.Unmarshal(raw, ev); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				return nil, &DecodeError{Key: key, Field: typeErr.Field, Err: err}
			}
			return nil, &DecodeError{Key: key, Err: err}
		}
		if r, ok := any(ev).(interface{ setRaw([]byte) }); ok {
			r.setRaw(raw)
		}
		return *ev, nil
	}
}
