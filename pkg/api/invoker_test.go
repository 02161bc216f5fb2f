package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/twobot/pkg/correlation"
	"github.com/sipeed/twobot/pkg/session"
	"github.com/sipeed/twobot/pkg/session/sessiontest"
)

func waitResult(t *testing.T, f *Future) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := f.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestSync_GetWithQueryAndToken(t *testing.T) {
	reqs := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqs <- r.Clone(context.Background())
		w.Write([]byte(`{"status":"ok","retcode":0,"data":{"message_id":5}}`))
	}))
	defer srv.Close()

	inv := NewInvoker(Options{BaseURL: srv.URL, AccessToken: "tok", Timeout: time.Second}, nil, nil)
	res := waitResult(t, inv.Invoke(context.Background(), SyncMode{}, "/send_group_msg", map[string]any{
		"group_id":    int64(100),
		"message":     "hi",
		"auto_escape": false,
	}))

	assert.True(t, res.OK)
	assert.JSONEq(t, `{"status":"ok","retcode":0,"data":{"message_id":5}}`, string(res.Data))
	r := <-reqs
	query := r.URL.Query()
	assert.Equal(t, http.MethodGet, r.Method)
	assert.Equal(t, "/send_group_msg", r.URL.Path)
	assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
	assert.Equal(t, "100", query.Get("group_id"))
	assert.Equal(t, "hi", query.Get("message"))
	assert.Equal(t, "false", query.Get("auto_escape"))
}

func TestSync_PostWithJSONBody(t *testing.T) {
	type seen struct {
		method, auth string
		body         []byte
	}
	reqs := make(chan seen, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		reqs <- seen{method: r.Method, auth: r.Header.Get("Authorization"), body: data}
		w.Write([]byte(`{"data":null}`))
	}))
	defer srv.Close()

	inv := NewInvoker(Options{BaseURL: srv.URL}, nil, nil)
	res := waitResult(t, inv.Invoke(context.Background(), SyncMode{Post: true}, "get_group_member_list", map[string]any{
		"group_id": 123,
	}))

	assert.True(t, res.OK)
	got := <-reqs
	assert.Equal(t, http.MethodPost, got.method)
	assert.Empty(t, got.auth)
	assert.JSONEq(t, `{"group_id":123}`, string(got.body))
}

func TestSync_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"retcode":1403}`))
	}))
	defer srv.Close()

	inv := NewInvoker(Options{BaseURL: srv.URL}, nil, nil)
	res := waitResult(t, inv.Invoke(context.Background(), SyncMode{}, "get_status", nil))

	assert.False(t, res.OK)
	assert.JSONEq(t, `{"retcode":1403}`, string(res.Data))
}

func TestSync_InvalidJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	inv := NewInvoker(Options{BaseURL: srv.URL}, nil, nil)
	res := waitResult(t, inv.Invoke(context.Background(), SyncMode{}, "get_status", nil))

	assert.True(t, res.OK)
	var payload map[string]string
	require.NoError(t, res.Decode(&payload))
	assert.Contains(t, payload["error"], "invalid JSON")
}

func TestSync_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	inv := NewInvoker(Options{BaseURL: url, Timeout: time.Second}, nil, nil)
	res := waitResult(t, inv.Invoke(context.Background(), SyncMode{}, "get_status", nil))

	assert.False(t, res.OK)
	var payload map[string]string
	require.NoError(t, res.Decode(&payload))
	assert.NotEmpty(t, payload["error"])
}

type asyncFixture struct {
	inv   *Invoker
	table *correlation.Table
	dir   *session.Directory
	sock  *sessiontest.Socket
}

func newAsyncFixture(t *testing.T) *asyncFixture {
	t.Helper()
	table := correlation.NewTable()
	dir := session.NewDirectory()
	sock := sessiontest.NewSocket()
	dir.Add(session.NewConn("c1", "", sock))
	require.NoError(t, dir.Bind("c1", 42))
	return &asyncFixture{
		inv:   NewInvoker(Options{}, table, dir),
		table: table,
		dir:   dir,
		sock:  sock,
	}
}

func nextFrame(t *testing.T, sock *sessiontest.Socket) map[string]any {
	t.Helper()
	select {
	case frame := <-sock.Written:
		var m map[string]any
		require.NoError(t, json.Unmarshal(frame, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("no frame written")
		return nil
	}
}

func TestAsync_RoundTrip(t *testing.T) {
	fx := newAsyncFixture(t)

	f := fx.inv.Invoke(context.Background(), AsyncMode{SelfID: 42, NeedResp: true}, "/get_login_info", nil)
	frame := nextFrame(t, fx.sock)

	assert.Equal(t, "get_login_info", frame["action"])
	assert.Equal(t, map[string]any{}, frame["params"])
	echoed := frame["echo"].(map[string]any)
	seq := uint64(echoed["seq"].(float64))
	assert.Equal(t, f.Seq, seq)
	assert.Equal(t, 1, fx.table.Len())

	select {
	case <-f.Done():
		t.Fatal("future resolved before reply")
	default:
	}

	require.True(t, fx.table.Complete(seq, Result{OK: true, Data: json.RawMessage(`{"x":1}`)}))
	res := waitResult(t, f)
	assert.True(t, res.OK)
	assert.JSONEq(t, `{"x":1}`, string(res.Data))
	assert.Equal(t, 0, fx.table.Len())
}

func TestAsync_FireAndForget(t *testing.T) {
	fx := newAsyncFixture(t)

	f := fx.inv.Invoke(context.Background(), AsyncMode{SelfID: 42}, "send_private_msg", map[string]any{"user_id": 7, "message": "hey"})
	frame := nextFrame(t, fx.sock)

	assert.NotContains(t, frame, "echo")
	assert.Equal(t, 0, fx.table.Len())
	assert.Equal(t, uint64(0), f.Seq)

	res := waitResult(t, f)
	assert.True(t, res.OK)
	assert.Empty(t, res.Data)
}

func TestAsync_NoSession(t *testing.T) {
	fx := newAsyncFixture(t)

	res := waitResult(t, fx.inv.Invoke(context.Background(), AsyncMode{SelfID: 99, NeedResp: true}, "get_status", nil))
	assert.False(t, res.OK)
	assert.Contains(t, string(res.Data), "no session")
	assert.Equal(t, 0, fx.table.Len())
	assert.Empty(t, fx.sock.Frames())
}

func TestAsync_WriteFailureCompletesSlot(t *testing.T) {
	fx := newAsyncFixture(t)
	fx.sock.WriteErr = errors.New("broken pipe")

	res := waitResult(t, fx.inv.Invoke(context.Background(), AsyncMode{SelfID: 42, NeedResp: true}, "get_status", nil))
	assert.False(t, res.OK)
	assert.Contains(t, string(res.Data), "broken pipe")
	assert.Equal(t, 0, fx.table.Len())
}

func TestAsync_ConnectionDropFailsPending(t *testing.T) {
	fx := newAsyncFixture(t)

	f := fx.inv.Invoke(context.Background(), AsyncMode{SelfID: 42, NeedResp: true}, "get_status", nil)
	nextFrame(t, fx.sock)

	assert.Equal(t, 1, fx.table.DropConn("c1", session.ErrClosed))
	res := waitResult(t, f)
	assert.False(t, res.OK)
}

func TestAsync_WithoutDirectory(t *testing.T) {
	inv := NewInvoker(Options{}, nil, nil)
	res := waitResult(t, inv.Invoke(context.Background(), AsyncMode{SelfID: 1, NeedResp: true}, "get_status", nil))
	assert.False(t, res.OK)
	assert.Contains(t, string(res.Data), ErrAsyncUnavailable.Error())
}

func TestAsync_ConcurrentSequencesAreDistinct(t *testing.T) {
	fx := newAsyncFixture(t)
	const n = 50

	var wg sync.WaitGroup
	futures := make([]*Future, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			futures[i] = fx.inv.Invoke(context.Background(), AsyncMode{SelfID: 42, NeedResp: true}, "get_status", nil)
		}()
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for _, f := range futures {
		assert.False(t, seen[f.Seq], "duplicate seq %d", f.Seq)
		seen[f.Seq] = true
	}
	assert.Len(t, fx.sock.Frames(), n)
	assert.Equal(t, n, fx.table.Len())
}
