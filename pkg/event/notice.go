package event

// UploadedFile describes a file uploaded to a group.
type UploadedFile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	BusID int64  `json:"busid"`
}

type GroupUploadNotice struct {
	Base
	GroupID int64        `json:"group_id"`
	UserID  int64        `json:"user_id"`
	File    UploadedFile `json:"file"`
}

func (GroupUploadNotice) Type() EventType { return KeyGroupUploadNotice }

type AdminSubType string

const (
	AdminSet   AdminSubType = "set"
	AdminUnset AdminSubType = "unset"
)

type GroupAdminNotice struct {
	Base
	GroupID int64        `json:"group_id"`
	UserID  int64        `json:"user_id"`
	SubType AdminSubType `json:"sub_type"`
}

func (GroupAdminNotice) Type() EventType { return KeyGroupAdminNotice }

type DecreaseSubType string

const (
	DecreaseLeave  DecreaseSubType = "leave"
	DecreaseKick   DecreaseSubType = "kick"
	DecreaseKickMe DecreaseSubType = "kick_me"
)

// GroupDecreaseNotice reports a member leaving. OperatorID equals UserID
// when the member left on their own.
type GroupDecreaseNotice struct {
	Base
	GroupID    int64           `json:"group_id"`
	UserID     int64           `json:"user_id"`
	OperatorID int64           `json:"operator_id"`
	SubType    DecreaseSubType `json:"sub_type"`
}

func (GroupDecreaseNotice) Type() EventType { return KeyGroupDecreaseNotice }

type IncreaseSubType string

const (
	IncreaseApprove IncreaseSubType = "approve"
	IncreaseInvite  IncreaseSubType = "invite"
)

type GroupIncreaseNotice struct {
	Base
	GroupID    int64           `json:"group_id"`
	UserID     int64           `json:"user_id"`
	OperatorID int64           `json:"operator_id"`
	SubType    IncreaseSubType `json:"sub_type"`
}

func (GroupIncreaseNotice) Type() EventType { return KeyGroupIncreaseNotice }

type BanSubType string

const (
	Ban     BanSubType = "ban"
	LiftBan BanSubType = "lift_ban"
)

type GroupBanNotice struct {
	Base
	GroupID    int64      `json:"group_id"`
	UserID     int64      `json:"user_id"`
	OperatorID int64      `json:"operator_id"`
	Duration   int64      `json:"duration"` // seconds
	SubType    BanSubType `json:"sub_type"`
}

func (GroupBanNotice) Type() EventType { return KeyGroupBanNotice }

type FriendAddNotice struct {
	Base
	UserID int64 `json:"user_id"`
}

func (FriendAddNotice) Type() EventType { return KeyFriendAddNotice }

type GroupRecallNotice struct {
	Base
	GroupID    int64 `json:"group_id"`
	UserID     int64 `json:"user_id"`
	OperatorID int64 `json:"operator_id"`
	MessageID  int64 `json:"message_id"`
}

func (GroupRecallNotice) Type() EventType { return KeyGroupRecallNotice }

type FriendRecallNotice struct {
	Base
	UserID    int64 `json:"user_id"`
	MessageID int64 `json:"message_id"`
}

func (FriendRecallNotice) Type() EventType { return KeyFriendRecallNotice }

type NotifySubType string

const (
	NotifyPoke      NotifySubType = "poke"
	NotifyLuckyKing NotifySubType = "lucky_king"
	NotifyHonor     NotifySubType = "honor"
)

type HonorType string

const (
	HonorTalkative HonorType = "talkative"
	HonorPerformer HonorType = "performer"
	HonorEmotion   HonorType = "emotion"
)

// GroupNotifyNotice covers pokes, red packet lucky kings and honor changes.
// TargetID is the poked member or the lucky king; HonorType is only set for
// honor changes.
type GroupNotifyNotice struct {
	Base
	GroupID   int64         `json:"group_id"`
	UserID    int64         `json:"user_id"`
	SubType   NotifySubType `json:"sub_type"`
	TargetID  *int64        `json:"target_id,omitempty"`
	HonorType *HonorType    `json:"honor_type,omitempty"`
}

func (GroupNotifyNotice) Type() EventType { return KeyGroupNotifyNotice }
