package event

type PrivateSubType string

const (
	PrivateFriend PrivateSubType = "friend"
	PrivateGroup  PrivateSubType = "group"
	PrivateOther  PrivateSubType = "other"
)

// PrivateMsg is a one-to-one message.
type PrivateMsg struct {
	Base
	MessageID  int64          `json:"message_id"`
	UserID     int64          `json:"user_id"`
	RawMessage string         `json:"raw_message"` // includes CQ codes
	SubType    PrivateSubType `json:"sub_type"`
	Sender     Sender         `json:"sender"`
}

func (PrivateMsg) Type() EventType { return KeyPrivateMsg }

type GroupSubType string

const (
	GroupNormal    GroupSubType = "normal"
	GroupAnonymous GroupSubType = "anonymous"
	GroupNotice    GroupSubType = "notice"
)

// GroupMsg is a message posted in a group.
type GroupMsg struct {
	Base
	MessageID  int64        `json:"message_id"`
	GroupID    int64        `json:"group_id"`
	UserID     int64        `json:"user_id"`
	RawMessage string       `json:"raw_message"`
	GroupName  string       `json:"group_name"`
	SubType    GroupSubType `json:"sub_type"`
	Sender     Sender       `json:"sender"`
}

func (GroupMsg) Type() EventType { return KeyGroupMsg }
