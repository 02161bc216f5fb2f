// twobot - OneBot v11 bot engine
// License: MIT
//
// Copyright (c) 2026 twobot contributors

// Package runner executes event handlers off the connection read path.
package runner

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/sipeed/twobot/pkg/logger"
)

// Task is one handler invocation. Label names it in logs, normally the
// EventType it was dispatched for.
type Task struct {
	Label string
	Run   func(ctx context.Context) error
}

// Pool runs at most `workers` tasks at a time. Submit never blocks: tasks
// beyond the limit wait for a slot on their own goroutine, so a slow handler
// cannot stall frame ingestion.
type Pool struct {
	sem     *semaphore.Weighted
	workers int

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	pending atomic.Int64
	running atomic.Int64
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:     semaphore.NewWeighted(int64(workers)),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit schedules task and reports whether it was accepted. It is
// rejected only after Stop.
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		logger.WarnCF("runner", "Task rejected, pool stopped", map[string]any{"event": task.Label})
		return false
	}

	p.wg.Add(1)
	p.pending.Add(1)
	go func() {
		defer p.wg.Done()

		err := p.sem.Acquire(p.ctx, 1)
		p.pending.Add(-1)
		if err != nil {
			logger.WarnCF("runner", "Task abandoned on shutdown", map[string]any{"event": task.Label})
			return
		}
		defer p.sem.Release(1)

		p.running.Add(1)
		defer p.running.Add(-1)
		p.run(task)
	}()
	return true
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("runner", "Handler panicked", map[string]any{
				"event": task.Label,
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			})
		}
	}()

	if err := task.Run(p.ctx); err != nil {
		logger.ErrorCF("runner", "Handler failed", map[string]any{
			"event": task.Label,
			"error": err.Error(),
		})
	}
}

// Pending returns the number of tasks waiting for a slot.
func (p *Pool) Pending() int64 { return p.pending.Load() }

// Running returns the number of tasks executing right now.
func (p *Pool) Running() int64 { return p.running.Load() }

// Workers returns the concurrency limit.
func (p *Pool) Workers() int { return p.workers }

// Stop rejects new tasks and waits for accepted ones to finish. If ctx ends
// first the handlers' context is cancelled, queued tasks are dropped and
// Stop returns without waiting for handlers that ignore cancellation.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		logger.WarnCF("runner", "Stop deadline reached", map[string]any{
			"running": p.running.Load(),
			"pending": p.pending.Load(),
		})
		return ctx.Err()
	}
}
