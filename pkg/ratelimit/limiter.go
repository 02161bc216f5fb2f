// Package ratelimit throttles outbound commands per target so a chatty
// handler cannot get the bot account flagged by the platform.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
}

// DefaultConfig returns the default rate limiting configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		RequestsPerMinute: 60,
		Burst:             5,
	}
}

// Limiter keeps one token bucket per key. Keys are whatever the caller
// uses to name a target: "http" for the synchronous API, the bot's self_id
// for WebSocket sessions.
type Limiter struct {
	config  Config
	limit   rate.Limit
	buckets sync.Map // map[string]*rate.Limiter
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config Config) *Limiter {
	if config.Burst <= 0 {
		config.Burst = 1
	}
	return &Limiter{
		config: config,
		limit:  rate.Limit(float64(config.RequestsPerMinute) / 60.0),
	}
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	if cached, ok := l.buckets.Load(key); ok {
		return cached.(*rate.Limiter)
	}
	b, _ := l.buckets.LoadOrStore(key, rate.NewLimiter(l.limit, l.config.Burst))
	return b.(*rate.Limiter)
}

// Allow reports whether a command for key may go out right now.
func (l *Limiter) Allow(key string) bool {
	if l == nil || !l.config.Enabled {
		return true
	}
	return l.bucket(key).Allow()
}

// Wait blocks until a command for key may go out or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}
	return l.bucket(key).Wait(ctx)
}

// Enabled reports whether limiting is active.
func (l *Limiter) Enabled() bool {
	return l != nil && l.config.Enabled
}
