package api

import (
	"context"
)

// ApiSet binds an Invoker to one call mode and exposes the OneBot v11
// command catalogue on top of it.
type ApiSet struct {
	inv  *Invoker
	mode Mode
}

func NewApiSet(inv *Invoker, mode Mode) *ApiSet {
	return &ApiSet{inv: inv, mode: mode}
}

// Mode returns the call mode this set uses.
func (a *ApiSet) Mode() Mode {
	return a.mode
}

// Call issues an arbitrary action.
func (a *ApiSet) Call(ctx context.Context, action string, params map[string]any) *Future {
	return a.inv.Invoke(ctx, a.mode, action, params)
}

// TestConnection asks the gateway for its version and reports whether it
// answered successfully. A fire-and-forget set is upgraded to wait for the
// reply.
func (a *ApiSet) TestConnection(ctx context.Context) bool {
	mode := a.mode
	if m, ok := mode.(AsyncMode); ok {
		m.NeedResp = true
		mode = m
	}
	res, err := a.inv.Invoke(ctx, mode, "get_version_info", nil).Wait(ctx)
	return err == nil && res.OK
}

func (a *ApiSet) SendPrivateMsg(ctx context.Context, userID int64, message string, autoEscape bool) *Future {
	return a.Call(ctx, "send_private_msg", map[string]any{
		"user_id":     userID,
		"message":     message,
		"auto_escape": autoEscape,
	})
}

func (a *ApiSet) SendGroupMsg(ctx context.Context, groupID int64, message string, autoEscape bool) *Future {
	return a.Call(ctx, "send_group_msg", map[string]any{
		"group_id":    groupID,
		"message":     message,
		"auto_escape": autoEscape,
	})
}

// SendMsg sends to a user or a group depending on messageType ("private"
// or "group").
func (a *ApiSet) SendMsg(ctx context.Context, messageType string, userID, groupID int64, message string, autoEscape bool) *Future {
	return a.Call(ctx, "send_msg", map[string]any{
		"message_type": messageType,
		"user_id":      userID,
		"group_id":     groupID,
		"message":      message,
		"auto_escape":  autoEscape,
	})
}

func (a *ApiSet) DeleteMsg(ctx context.Context, messageID int32) *Future {
	return a.Call(ctx, "delete_msg", map[string]any{"message_id": messageID})
}

func (a *ApiSet) GetMsg(ctx context.Context, messageID int32) *Future {
	return a.Call(ctx, "get_msg", map[string]any{"message_id": messageID})
}

func (a *ApiSet) GetForwardMsg(ctx context.Context, id string) *Future {
	return a.Call(ctx, "get_forward_msg", map[string]any{"id": id})
}

func (a *ApiSet) SendLike(ctx context.Context, userID int64, times int) *Future {
	return a.Call(ctx, "send_like", map[string]any{
		"user_id": userID,
		"times":   times,
	})
}

func (a *ApiSet) SetGroupKick(ctx context.Context, groupID, userID int64, rejectAddRequest bool) *Future {
	return a.Call(ctx, "set_group_kick", map[string]any{
		"group_id":           groupID,
		"user_id":            userID,
		"reject_add_request": rejectAddRequest,
	})
}

// SetGroupBan mutes userID for duration seconds; 0 lifts the ban.
func (a *ApiSet) SetGroupBan(ctx context.Context, groupID, userID int64, duration int64) *Future {
	return a.Call(ctx, "set_group_ban", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"duration": duration,
	})
}

func (a *ApiSet) SetGroupAnonymousBan(ctx context.Context, groupID int64, anonymous, flag string, duration int64) *Future {
	return a.Call(ctx, "set_group_anonymous_ban", map[string]any{
		"group_id":  groupID,
		"anonymous": anonymous,
		"flag":      flag,
		"duration":  duration,
	})
}

func (a *ApiSet) SetGroupWholeBan(ctx context.Context, groupID int64, enable bool) *Future {
	return a.Call(ctx, "set_group_whole_ban", map[string]any{
		"group_id": groupID,
		"enable":   enable,
	})
}

func (a *ApiSet) SetGroupAdmin(ctx context.Context, groupID, userID int64, enable bool) *Future {
	return a.Call(ctx, "set_group_admin", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"enable":   enable,
	})
}

func (a *ApiSet) SetGroupAnonymous(ctx context.Context, groupID int64, enable bool) *Future {
	return a.Call(ctx, "set_group_anonymous", map[string]any{
		"group_id": groupID,
		"enable":   enable,
	})
}

func (a *ApiSet) SetGroupCard(ctx context.Context, groupID, userID int64, card string) *Future {
	return a.Call(ctx, "set_group_card", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"card":     card,
	})
}

func (a *ApiSet) SetGroupName(ctx context.Context, groupID int64, name string) *Future {
	return a.Call(ctx, "set_group_name", map[string]any{
		"group_id": groupID,
		"name":     name,
	})
}

func (a *ApiSet) SetGroupLeave(ctx context.Context, groupID int64, isDismiss bool) *Future {
	return a.Call(ctx, "set_group_leave", map[string]any{
		"group_id":   groupID,
		"is_dismiss": isDismiss,
	})
}

// SetGroupSpecialTitle sets a member's title; duration -1 means permanent.
func (a *ApiSet) SetGroupSpecialTitle(ctx context.Context, groupID, userID int64, title string, duration int64) *Future {
	return a.Call(ctx, "set_group_special_title", map[string]any{
		"group_id":      groupID,
		"user_id":       userID,
		"special_title": title,
		"duration":      duration,
	})
}

func (a *ApiSet) SetFriendAddRequest(ctx context.Context, flag string, approve bool, remark string) *Future {
	return a.Call(ctx, "set_friend_add_request", map[string]any{
		"flag":    flag,
		"approve": approve,
		"remark":  remark,
	})
}

func (a *ApiSet) SetGroupAddRequest(ctx context.Context, flag, subType string, approve bool, reason string) *Future {
	return a.Call(ctx, "set_group_add_request", map[string]any{
		"flag":     flag,
		"sub_type": subType,
		"approve":  approve,
		"reason":   reason,
	})
}

func (a *ApiSet) GetLoginInfo(ctx context.Context) *Future {
	return a.Call(ctx, "get_login_info", nil)
}

func (a *ApiSet) GetStrangerInfo(ctx context.Context, userID int64, noCache bool) *Future {
	return a.Call(ctx, "get_stranger_info", map[string]any{
		"user_id":  userID,
		"no_cache": noCache,
	})
}

func (a *ApiSet) GetFriendList(ctx context.Context) *Future {
	return a.Call(ctx, "get_friend_list", nil)
}

func (a *ApiSet) GetGroupInfo(ctx context.Context, groupID int64, noCache bool) *Future {
	return a.Call(ctx, "get_group_info", map[string]any{
		"group_id": groupID,
		"no_cache": noCache,
	})
}

func (a *ApiSet) GetGroupList(ctx context.Context) *Future {
	return a.Call(ctx, "get_group_list", nil)
}

func (a *ApiSet) GetGroupMemberInfo(ctx context.Context, groupID, userID int64, noCache bool) *Future {
	return a.Call(ctx, "get_group_member_info", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"no_cache": noCache,
	})
}

func (a *ApiSet) GetGroupMemberList(ctx context.Context, groupID int64) *Future {
	return a.Call(ctx, "get_group_member_list", map[string]any{"group_id": groupID})
}

// GetGroupHonorInfo takes one of talkative, performer, legend,
// strong_newbie, emotion or all.
func (a *ApiSet) GetGroupHonorInfo(ctx context.Context, groupID int64, honorType string) *Future {
	return a.Call(ctx, "get_group_honor_info", map[string]any{
		"group_id": groupID,
		"type":     honorType,
	})
}

func (a *ApiSet) GetCookies(ctx context.Context, domain string) *Future {
	return a.Call(ctx, "get_cookies", map[string]any{"domain": domain})
}

func (a *ApiSet) GetCsrfToken(ctx context.Context) *Future {
	return a.Call(ctx, "get_csrf_token", nil)
}

func (a *ApiSet) GetCredentials(ctx context.Context, domain string) *Future {
	return a.Call(ctx, "get_credentials", map[string]any{"domain": domain})
}

func (a *ApiSet) GetRecord(ctx context.Context, file, outFormat string) *Future {
	return a.Call(ctx, "get_record", map[string]any{
		"file":       file,
		"out_format": outFormat,
	})
}

func (a *ApiSet) GetImage(ctx context.Context, file string) *Future {
	return a.Call(ctx, "get_image", map[string]any{"file": file})
}

func (a *ApiSet) CanSendImage(ctx context.Context) *Future {
	return a.Call(ctx, "can_send_image", nil)
}

func (a *ApiSet) CanSendRecord(ctx context.Context) *Future {
	return a.Call(ctx, "can_send_record", nil)
}

func (a *ApiSet) GetStatus(ctx context.Context) *Future {
	return a.Call(ctx, "get_status", nil)
}

func (a *ApiSet) GetVersionInfo(ctx context.Context) *Future {
	return a.Call(ctx, "get_version_info", nil)
}

func (a *ApiSet) SetRestart(ctx context.Context, delay int) *Future {
	return a.Call(ctx, "set_restart", map[string]any{"delay": delay})
}

func (a *ApiSet) CleanCache(ctx context.Context) *Future {
	return a.Call(ctx, "clean_cache", nil)
}
