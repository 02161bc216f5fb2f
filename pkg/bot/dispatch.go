package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/sipeed/twobot/pkg/correlation"
	"github.com/sipeed/twobot/pkg/event"
	"github.com/sipeed/twobot/pkg/logger"
	"github.com/sipeed/twobot/pkg/runner"
)

// OnFrame classifies one inbound text frame and routes it. Replies complete
// their pending call inline; events are decoded here and their handler is
// submitted to the worker pool. Nothing a frame contains can make OnFrame
// panic or return early for the next frame.
func (b *Bot) OnFrame(connID string, payload []byte) {
	var key event.EventType
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("dispatch", "Frame routing panicked", map[string]any{
				"conn_id": connID,
				"event":   key.String(),
				"panic":   fmt.Sprint(r),
			})
		}
	}()

	if !gjson.ValidBytes(payload) {
		logger.WarnCF("dispatch", "Dropping malformed frame", map[string]any{
			"conn_id": connID,
			"size":    len(payload),
		})
		return
	}

	if gjson.GetBytes(payload, "meta_event_type").Str == "heartbeat" {
		return
	}

	key, isEvent := event.KeyOf(payload)
	if !isEvent {
		b.onReply(connID, payload)
		return
	}

	decode, ok := event.Lookup(key)
	if !ok {
		logger.DebugCF("dispatch", "Dropping unknown event type", map[string]any{
			"conn_id": connID,
			"event":   key.String(),
		})
		return
	}

	ev, err := decode(payload)
	if err != nil {
		logger.WarnCF("dispatch", "Failed to decode event", map[string]any{
			"conn_id": connID,
			"event":   key.String(),
			"error":   err.Error(),
		})
		return
	}

	if connect, ok := ev.(event.ConnectEvent); ok {
		b.bindSession(connID, connect.SelfID)
	}

	h := b.handler(key)
	if h == nil {
		return
	}
	b.pool.Submit(runner.Task{
		Label: key.String(),
		Run: func(ctx context.Context) error {
			return h(&Context{Event: ev, ConnID: connID, ctx: ctx, bot: b})
		},
	})
}

// onReply completes the call a reply frame answers. A reply is successful
// when its data is present and not null; a failed reply carries the whole
// frame so callers can read retcode and message.
func (b *Bot) onReply(connID string, payload []byte) {
	echo := gjson.GetBytes(payload, "echo.seq")
	if echo.Type != gjson.Number {
		logger.DebugCF("dispatch", "Dropping frame with neither post_type nor echo.seq", map[string]any{
			"conn_id": connID,
		})
		return
	}
	seq, err := strconv.ParseUint(echo.Raw, 10, 64)
	if err != nil {
		logger.WarnCF("dispatch", "Dropping reply with invalid echo.seq", map[string]any{
			"conn_id": connID,
			"seq":     echo.Raw,
		})
		return
	}

	data := gjson.GetBytes(payload, "data")
	res := correlation.Result{OK: data.Exists() && data.Type != gjson.Null}
	if res.OK {
		res.Data = json.RawMessage(data.Raw)
	} else {
		res.Data = append(json.RawMessage(nil), payload...)
	}

	if !b.table.Complete(seq, res) {
		logger.DebugCF("dispatch", "Discarding reply for unknown sequence", map[string]any{
			"conn_id": connID,
			"seq":     seq,
		})
	}
}

func (b *Bot) bindSession(connID string, selfID int64) {
	if err := b.sessions.Bind(connID, selfID); err != nil {
		logger.WarnCF("dispatch", "Failed to bind session", map[string]any{
			"conn_id": connID,
			"self_id": selfID,
			"error":   err.Error(),
		})
		return
	}
	logger.InfoCF("dispatch", "Bot session bound", map[string]any{
		"conn_id": connID,
		"self_id": selfID,
	})
}
