package serve

import (
	"fmt"
	"strings"

	"github.com/sipeed/twobot/pkg/api"
	"github.com/sipeed/twobot/pkg/bot"
	"github.com/sipeed/twobot/pkg/event"
	"github.com/sipeed/twobot/pkg/logger"
)

const (
	greeting          = "你好"
	greetingReply     = "你好，我是twobot！"
	mentionTrigger    = "AT我"
	mentionReply      = "要我at你干啥？"
	memberListTrigger = "getGroupMemberList"
	memberListDone    = "获取成功"
)

// registerHandlers installs the built-in responders.
func registerHandlers(b *bot.Bot) {
	bot.On(b, onGroupMsg)
	bot.On(b, onPrivateMsg)

	bot.On(b, func(c *bot.Context, _ event.EnableEvent) error {
		logger.InfoCF("serve", "Bot enabled", map[string]any{"self_id": c.SelfID()})
		return nil
	})
	bot.On(b, func(c *bot.Context, _ event.DisableEvent) error {
		logger.InfoCF("serve", "Bot disabled", map[string]any{"self_id": c.SelfID()})
		return nil
	})
	bot.On(b, func(c *bot.Context, _ event.ConnectEvent) error {
		logger.InfoCF("serve", "Bot connected", map[string]any{
			"self_id": c.SelfID(),
			"conn_id": c.ConnID,
		})
		return nil
	})
}

func onGroupMsg(c *bot.Context, ev event.GroupMsg) error {
	text := strings.TrimSpace(ev.RawMessage)
	replies := c.Async(false)

	switch {
	case text == greeting:
		return failed(replies.SendGroupMsg(c.Context(), ev.GroupID, greetingReply, false).Wait(c.Context()))
	case strings.Contains(text, mentionTrigger):
		return failed(replies.SendGroupMsg(c.Context(), ev.GroupID, atCode(ev.UserID)+mentionReply, false).Wait(c.Context()))
	case text == memberListTrigger:
		res, err := c.Async(true).GetGroupMemberList(c.Context(), ev.GroupID).Wait(c.Context())
		if err := failed(res, err); err != nil {
			return fmt.Errorf("get_group_member_list: %w", err)
		}
		logger.DebugCF("serve", "Group member list", map[string]any{
			"group_id": ev.GroupID,
			"bytes":    len(res.Data),
		})
		return failed(replies.SendGroupMsg(c.Context(), ev.GroupID, memberListDone, false).Wait(c.Context()))
	}
	return nil
}

func onPrivateMsg(c *bot.Context, ev event.PrivateMsg) error {
	if strings.TrimSpace(ev.RawMessage) != greeting {
		return nil
	}
	return failed(c.Async(false).SendPrivateMsg(c.Context(), ev.UserID, greetingReply, false).Wait(c.Context()))
}

func atCode(userID int64) string {
	return fmt.Sprintf("[CQ:at,qq=%d]", userID)
}

func failed(res api.Result, err error) error {
	if err != nil {
		return err
	}
	if !res.OK {
		return fmt.Errorf("call failed: %s", res.Data)
	}
	return nil
}
