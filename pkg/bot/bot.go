// Package bot ties the gateway engine together: it accepts the gateway's
// reverse WebSocket, dispatches decoded events to registered handlers and
// routes replies back to the calls that asked for them.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sipeed/twobot/pkg/api"
	"github.com/sipeed/twobot/pkg/config"
	"github.com/sipeed/twobot/pkg/correlation"
	"github.com/sipeed/twobot/pkg/event"
	"github.com/sipeed/twobot/pkg/ratelimit"
	"github.com/sipeed/twobot/pkg/runner"
	"github.com/sipeed/twobot/pkg/session"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultPongWait     = 60 * time.Second
)

// Handler handles one dispatched event.
type Handler func(c *Context) error

// Bot is the long-lived service object. It owns every piece of shared
// state: the handler table, the correlation table, the session directory
// and the worker pool.
type Bot struct {
	cfg *config.Config

	hmu      sync.RWMutex
	handlers map[event.EventType]Handler

	table    *correlation.Table
	sessions *session.Directory
	pool     *runner.Pool
	invoker  *api.Invoker

	httpClient   *http.Client
	limiter      *ratelimit.Limiter
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongWait     time.Duration

	mu      sync.Mutex
	served  bool
	closing bool
	cancel  context.CancelFunc
	done    chan struct{}
	conns   sync.WaitGroup
}

// Option configures a Bot.
type Option func(*Bot)

// WithHTTPClient replaces the client used for synchronous calls.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Bot) { b.httpClient = client }
}

// WithKeepAlive sets how often connections are pinged and how long a silent
// connection is kept before it is dropped.
func WithKeepAlive(pingInterval, pongWait time.Duration) Option {
	return func(b *Bot) {
		b.pingInterval = pingInterval
		b.pongWait = pongWait
	}
}

// WithPool runs handlers on pool instead of one sized from the config.
func WithPool(pool *runner.Pool) Option {
	return func(b *Bot) { b.pool = pool }
}

func New(cfg *config.Config, opts ...Option) *Bot {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	b := &Bot{
		cfg:          cfg,
		handlers:     make(map[event.EventType]Handler),
		table:        correlation.NewTable(),
		sessions:     session.NewDirectory(),
		pingInterval: defaultPingInterval,
		pongWait:     defaultPongWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The gateway is not a browser; authentication is the access token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(b)
	}

	if b.pool == nil {
		b.pool = runner.NewPool(cfg.Workers)
	}
	b.limiter = ratelimit.NewLimiter(ratelimit.Config{
		Enabled:           cfg.RateLimit.Enabled,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
	})
	b.invoker = api.NewInvoker(api.Options{
		BaseURL:     cfg.APIBaseURL(),
		AccessToken: cfg.AccessToken,
		Timeout:     cfg.HTTPTimeoutDuration(),
		Limiter:     b.limiter,
		HTTPClient:  b.httpClient,
	}, b.table, b.sessions)
	return b
}

// Handle registers h for key, replacing any earlier handler. Registration
// normally happens before Serve.
func (b *Bot) Handle(key event.EventType, h Handler) error {
	if _, ok := event.Lookup(key); !ok {
		return fmt.Errorf("%w: %s", event.ErrUnknownType, key)
	}
	b.hmu.Lock()
	defer b.hmu.Unlock()
	b.handlers[key] = h
	return nil
}

// On registers a handler typed to one event kind. The key is taken from E.
func On[E event.Event](b *Bot, fn func(c *Context, ev E) error) {
	var zero E
	key := zero.Type()
	// Every kind in package event is registered, so Handle cannot fail here.
	_ = b.Handle(key, func(c *Context) error {
		ev, ok := c.Event.(E)
		if !ok {
			return fmt.Errorf("handler for %s got %T", key, c.Event)
		}
		return fn(c, ev)
	})
}

func (b *Bot) handler(key event.EventType) Handler {
	b.hmu.RLock()
	defer b.hmu.RUnlock()
	return b.handlers[key]
}

// Config returns the configuration the bot was built with.
func (b *Bot) Config() *config.Config {
	return b.cfg
}

// Invoker returns the command invoker shared by every handler.
func (b *Bot) Invoker() *api.Invoker {
	return b.invoker
}

// Sync returns an ApiSet that calls the gateway's HTTP API.
func (b *Bot) Sync(post bool) *api.ApiSet {
	return api.NewApiSet(b.invoker, api.SyncMode{Post: post})
}

// Async returns an ApiSet that writes to selfID's WebSocket session.
func (b *Bot) Async(selfID int64, needResp bool) *api.ApiSet {
	return api.NewApiSet(b.invoker, api.AsyncMode{SelfID: selfID, NeedResp: needResp})
}

// Bots lists the bot identities with a live session.
func (b *Bot) Bots() []int64 {
	return b.sessions.Bots()
}

// Pending returns the number of asynchronous calls awaiting a reply.
func (b *Bot) Pending() int {
	return b.table.Len()
}
