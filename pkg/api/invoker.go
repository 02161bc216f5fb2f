// Package api issues commands to the gateway, either synchronously over
// HTTP or asynchronously over a bot's WebSocket session.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sipeed/twobot/pkg/correlation"
	"github.com/sipeed/twobot/pkg/logger"
	"github.com/sipeed/twobot/pkg/ratelimit"
	"github.com/sipeed/twobot/pkg/session"
)

// Result is the outcome of one command.
type Result = correlation.Result

// ErrAsyncUnavailable is reported when an asynchronous call is made on an
// invoker that has no session directory.
var ErrAsyncUnavailable = errors.New("asynchronous mode unavailable")

// Mode selects the transport for a call. It is either SyncMode or AsyncMode.
type Mode interface {
	isMode()
}

// SyncMode sends the command as an HTTP request to the gateway's API port.
type SyncMode struct {
	Post bool // JSON body instead of query parameters
}

// AsyncMode sends the command as a frame on the WebSocket session of the
// bot SelfID. With NeedResp false the call is fire-and-forget.
type AsyncMode struct {
	SelfID   int64
	NeedResp bool
}

func (SyncMode) isMode()  {}
func (AsyncMode) isMode() {}

// Future resolves to the Result of a call.
type Future struct {
	Seq uint64 // 0 unless the call awaits a WebSocket reply

	p *correlation.Pending
}

// Resolved returns a Future that already holds res.
func Resolved(res Result) *Future {
	return &Future{p: correlation.Resolved(res)}
}

// Wait blocks until the call has a result or ctx is done.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	return f.p.Wait(ctx)
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.p.Done()
}

type envelope struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
	Echo   *echo          `json:"echo,omitempty"`
}

type echo struct {
	Seq uint64 `json:"seq"`
}

// Options configures an Invoker.
type Options struct {
	BaseURL     string // e.g. http://127.0.0.1:5700
	AccessToken string
	Timeout     time.Duration
	Limiter     *ratelimit.Limiter
	HTTPClient  *http.Client
}

// Invoker implements both call modes. It is safe for concurrent use.
type Invoker struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *ratelimit.Limiter

	table    *correlation.Table
	sessions *session.Directory
}

// NewInvoker builds an Invoker. table and sessions may be nil for a client
// that only ever calls synchronously.
func NewInvoker(opts Options, table *correlation.Table, sessions *session.Directory) *Invoker {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	return &Invoker{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		token:    opts.AccessToken,
		client:   client,
		limiter:  opts.Limiter,
		table:    table,
		sessions: sessions,
	}
}

// Invoke issues action with params. Transport failures are reported in the
// Result, never as a Go error. A leading slash on action is ignored.
func (inv *Invoker) Invoke(ctx context.Context, mode Mode, action string, params map[string]any) *Future {
	action = strings.TrimPrefix(action, "/")
	if params == nil {
		params = map[string]any{}
	}

	switch m := mode.(type) {
	case SyncMode:
		return Resolved(inv.invokeSync(ctx, m, action, params))
	case AsyncMode:
		return inv.invokeAsync(ctx, m, action, params)
	default:
		return Resolved(correlation.Failure(fmt.Errorf("unsupported call mode %T", mode)))
	}
}

func (inv *Invoker) invokeSync(ctx context.Context, mode SyncMode, action string, params map[string]any) Result {
	if err := inv.limiter.Wait(ctx, "http"); err != nil {
		return correlation.Failure(fmt.Errorf("rate limit: %w", err))
	}

	req, err := inv.newRequest(ctx, mode, action, params)
	if err != nil {
		return correlation.Failure(err)
	}

	resp, err := inv.client.Do(req)
	if err != nil {
		logger.WarnCF("api", "HTTP call failed", map[string]any{
			"action": action,
			"error":  err.Error(),
		})
		return correlation.Failure(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	ok := resp.StatusCode == http.StatusOK
	if err != nil {
		return Result{OK: ok, Data: correlation.Failure(fmt.Errorf("read response: %w", err)).Data}
	}
	if !json.Valid(body) {
		return Result{OK: ok, Data: correlation.Failure(fmt.Errorf("invalid JSON response (status %d)", resp.StatusCode)).Data}
	}

	logger.DebugCF("api", "HTTP call completed", map[string]any{
		"action": action,
		"status": resp.StatusCode,
	})
	return Result{OK: ok, Data: body}
}

func (inv *Invoker) newRequest(ctx context.Context, mode SyncMode, action string, params map[string]any) (*http.Request, error) {
	endpoint := inv.baseURL + "/" + action

	var req *http.Request
	var err error
	if mode.Post {
		body, merr := json.Marshal(params)
		if merr != nil {
			return nil, fmt.Errorf("encode params: %w", merr)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	} else {
		query, qerr := encodeQuery(params)
		if qerr != nil {
			return nil, qerr
		}
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if inv.token != "" {
		req.Header.Set("Authorization", "Bearer "+inv.token)
	}
	return req, nil
}

// encodeQuery flattens params into query values. Scalars are written as
// text, anything structured as JSON.
func encodeQuery(params map[string]any) (url.Values, error) {
	query := url.Values{}
	for k, v := range params {
		switch val := v.(type) {
		case string:
			query.Set(k, val)
		case bool, int, int32, int64, uint, uint32, uint64, float32, float64, json.Number:
			query.Set(k, fmt.Sprint(val))
		case nil:
			query.Set(k, "")
		default:
			data, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("encode param %q: %w", k, err)
			}
			query.Set(k, string(data))
		}
	}
	return query, nil
}

func (inv *Invoker) invokeAsync(ctx context.Context, mode AsyncMode, action string, params map[string]any) *Future {
	if inv.sessions == nil || inv.table == nil {
		return Resolved(correlation.Failure(ErrAsyncUnavailable))
	}
	if err := inv.limiter.Wait(ctx, strconv.FormatInt(mode.SelfID, 10)); err != nil {
		return Resolved(correlation.Failure(fmt.Errorf("rate limit: %w", err)))
	}

	conn, err := inv.sessions.Lookup(mode.SelfID)
	if err != nil {
		logger.WarnCF("api", "No session for async call", map[string]any{
			"action":  action,
			"self_id": mode.SelfID,
		})
		return Resolved(correlation.Failure(err))
	}

	env := envelope{Action: action, Params: params}
	var future *Future
	if mode.NeedResp {
		seq := inv.table.Allocate()
		pending, err := inv.table.Register(seq, conn.ID)
		if err != nil {
			return Resolved(correlation.Failure(err))
		}
		env.Echo = &echo{Seq: seq}
		future = &Future{Seq: seq, p: pending}
	}

	frame, err := json.Marshal(env)
	if err != nil {
		return inv.failAsync(future, fmt.Errorf("encode request: %w", err))
	}
	if err := conn.WriteText(frame); err != nil {
		logger.WarnCF("api", "WebSocket write failed", map[string]any{
			"action":  action,
			"conn_id": conn.ID,
			"error":   err.Error(),
		})
		return inv.failAsync(future, err)
	}

	logger.DebugCF("api", "Async call sent", map[string]any{
		"action":  action,
		"self_id": mode.SelfID,
		"seq":     env.seqOrZero(),
	})
	if future == nil {
		return Resolved(Result{OK: true})
	}
	return future
}

func (inv *Invoker) failAsync(future *Future, err error) *Future {
	if future == nil {
		return Resolved(correlation.Failure(err))
	}
	inv.table.Complete(future.Seq, correlation.Failure(err))
	return future
}

func (e envelope) seqOrZero() uint64 {
	if e.Echo == nil {
		return 0
	}
	return e.Echo.Seq
}
