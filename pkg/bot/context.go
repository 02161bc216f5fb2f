package bot

import (
	"context"

	"github.com/sipeed/twobot/pkg/api"
	"github.com/sipeed/twobot/pkg/event"
)

// Context is a handler's view of one dispatched event.
type Context struct {
	Event  event.Event
	ConnID string // connection the event arrived on

	ctx context.Context
	bot *Bot
}

// Context is cancelled when the bot shuts down.
func (c *Context) Context() context.Context {
	return c.ctx
}

// SelfID is the bot identity the event was delivered to.
func (c *Context) SelfID() int64 {
	return c.Event.Meta().SelfID
}

// Bot returns the bot that dispatched the event.
func (c *Context) Bot() *Bot {
	return c.bot
}

// Async returns an ApiSet writing to the session of the bot that received
// the event.
func (c *Context) Async(needResp bool) *api.ApiSet {
	return c.bot.Async(c.SelfID(), needResp)
}

// Sync returns an ApiSet using the HTTP API.
func (c *Context) Sync(post bool) *api.ApiSet {
	return c.bot.Sync(post)
}
