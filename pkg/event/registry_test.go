package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_GroupMsg(t *testing.T) {
	raw := []byte(`{"post_type":"message","message_type":"group","group_id":100,"user_id":7,"raw_message":"hi","time":1,"self_id":9}`)

	ev, err := Decode(raw)
	require.NoError(t, err)

	msg, ok := ev.(GroupMsg)
	require.True(t, ok, "expected GroupMsg, got %T", ev)
	assert.Equal(t, KeyGroupMsg, msg.Type())
	assert.Equal(t, int64(100), msg.GroupID)
	assert.Equal(t, int64(7), msg.UserID)
	assert.Equal(t, "hi", msg.RawMessage)
	assert.Equal(t, int64(1), msg.Time)
	assert.Equal(t, int64(9), msg.SelfID)
	assert.JSONEq(t, string(raw), string(msg.Meta().Raw))
}

func TestDecode_AllKinds(t *testing.T) {
	tests := []struct {
		raw  string
		want EventType
	}{
		{`{"post_type":"message","message_type":"private","user_id":1,"raw_message":"x","time":1,"self_id":2,"sub_type":"friend"}`, KeyPrivateMsg},
		{`{"post_type":"meta_event","meta_event_type":"lifecycle","sub_type":"enable","time":1,"self_id":2}`, KeyEnable},
		{`{"post_type":"meta_event","meta_event_type":"lifecycle","sub_type":"disable","time":1,"self_id":2}`, KeyDisable},
		{`{"post_type":"meta_event","meta_event_type":"lifecycle","sub_type":"connect","time":1,"self_id":2}`, KeyConnect},
		{`{"post_type":"notice","notice_type":"group_upload","group_id":1,"user_id":2,"time":1,"self_id":2,"file":{"id":"f","name":"a.txt","size":3,"busid":102}}`, KeyGroupUploadNotice},
		{`{"post_type":"notice","notice_type":"group_admin","sub_type":"set","group_id":1,"user_id":2,"time":1,"self_id":2}`, KeyGroupAdminNotice},
		{`{"post_type":"notice","notice_type":"group_decrease","sub_type":"kick","group_id":1,"user_id":2,"operator_id":3,"time":1,"self_id":2}`, KeyGroupDecreaseNotice},
		{`{"post_type":"notice","notice_type":"group_increase","sub_type":"invite","group_id":1,"user_id":2,"operator_id":3,"time":1,"self_id":2}`, KeyGroupIncreaseNotice},
		{`{"post_type":"notice","notice_type":"group_ban","sub_type":"lift_ban","group_id":1,"user_id":2,"operator_id":3,"duration":0,"time":1,"self_id":2}`, KeyGroupBanNotice},
		{`{"post_type":"notice","notice_type":"friend_add","user_id":2,"time":1,"self_id":2}`, KeyFriendAddNotice},
		{`{"post_type":"notice","notice_type":"group_recall","group_id":1,"user_id":2,"operator_id":2,"message_id":5,"time":1,"self_id":2}`, KeyGroupRecallNotice},
		{`{"post_type":"notice","notice_type":"friend_recall","user_id":2,"message_id":5,"time":1,"self_id":2}`, KeyFriendRecallNotice},
		{`{"post_type":"notice","notice_type":"group_notify","sub_type":"poke","group_id":1,"user_id":2,"target_id":3,"time":1,"self_id":2}`, KeyGroupNotifyNotice},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			ev, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Type())
			assert.Equal(t, int64(2), ev.Meta().SelfID)
		})
	}
}

func TestDecode_SubTypesAndOptionals(t *testing.T) {
	ev, err := Decode([]byte(`{"post_type":"notice","notice_type":"group_ban","sub_type":"ban","group_id":1,"user_id":2,"operator_id":3,"duration":600,"time":1,"self_id":2}`))
	require.NoError(t, err)
	ban := ev.(GroupBanNotice)
	assert.Equal(t, Ban, ban.SubType)
	assert.Equal(t, int64(600), ban.Duration)

	ev, err = Decode([]byte(`{"post_type":"notice","notice_type":"group_notify","sub_type":"honor","honor_type":"talkative","group_id":1,"user_id":2,"time":1,"self_id":2}`))
	require.NoError(t, err)
	notify := ev.(GroupNotifyNotice)
	assert.Nil(t, notify.TargetID)
	require.NotNil(t, notify.HonorType)
	assert.Equal(t, HonorTalkative, *notify.HonorType)

	ev, err = Decode([]byte(`{"post_type":"message","message_type":"group","group_id":1,"user_id":2,"raw_message":"x","time":1,"self_id":2}`))
	require.NoError(t, err)
	msg := ev.(GroupMsg)
	assert.Empty(t, msg.SubType)
	assert.Empty(t, msg.Sender.Nickname)
}

func TestDecode_FailsClosed(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing group_id", `{"post_type":"message","message_type":"group","user_id":7,"raw_message":"hi","time":1,"self_id":9}`, "group_id"},
		{"null self_id", `{"post_type":"meta_event","sub_type":"connect","time":1,"self_id":null}`, "self_id"},
		{"wrong type", `{"post_type":"message","message_type":"group","group_id":"abc","user_id":7,"raw_message":"hi","time":1,"self_id":9}`, "group_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			require.Error(t, err)

			var decErr *DecodeError
			require.ErrorAs(t, err, &decErr)
			assert.Equal(t, tt.field, decErr.Field)
		})
	}
}

func TestDecode_Unknown(t *testing.T) {
	_, err := Decode([]byte(`{"post_type":"request","request_type":"friend","time":1,"self_id":1}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Decode([]byte(`{"post_type":"notice","notice_type":"offline_file","time":1,"self_id":1}`))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestKeyOf(t *testing.T) {
	key, ok := KeyOf([]byte(`{"post_type":"notice","notice_type":"group_ban"}`))
	assert.True(t, ok)
	assert.Equal(t, KeyGroupBanNotice, key)

	_, ok = KeyOf([]byte(`{"echo":{"seq":1},"data":null}`))
	assert.False(t, ok)

	_, ok = KeyOf([]byte(`{"post_type":5}`))
	assert.False(t, ok)
}

func TestLookupAndKeys(t *testing.T) {
	keys := Keys()
	assert.Len(t, keys, 14)
	for _, k := range keys {
		_, ok := Lookup(k)
		assert.True(t, ok, k.String())
	}

	_, ok := Lookup(EventType{"meta_event", "heartbeat"})
	assert.False(t, ok)
}

func TestBaseField(t *testing.T) {
	ev, err := Decode([]byte(`{"post_type":"message","message_type":"private","user_id":1,"raw_message":"x","time":1,"self_id":2,"font":14}`))
	require.NoError(t, err)

	var font int
	require.NoError(t, ev.Meta().Field("font", &font))
	assert.Equal(t, 14, font)
	assert.Error(t, ev.Meta().Field("missing", &font))
}
