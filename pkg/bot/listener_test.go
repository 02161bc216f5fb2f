package bot

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/twobot/pkg/api"
	"github.com/sipeed/twobot/pkg/config"
	"github.com/sipeed/twobot/pkg/event"
)

func startBot(t *testing.T, token string, register func(b *Bot)) (*Bot, string) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.AccessToken = token
	cfg.WSPath = "/onebot"
	cfg.Workers = 4

	b := New(cfg, WithKeepAlive(50*time.Millisecond, 5*time.Second))
	if register != nil {
		register(b)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- b.Serve(context.Background(), ln) }()
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.served
	}, time.Second, time.Millisecond)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, b.Stop(ctx))
		require.NoError(t, <-served)
	})
	return b, "ws://" + ln.Addr().String() + "/onebot"
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { ws.Close() })
	return ws
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

func readRequest(t *testing.T, ws *websocket.Conn) (action string, seq uint64) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var req struct {
		Action string `json:"action"`
		Echo   *struct {
			Seq uint64 `json:"seq"`
		} `json:"echo"`
	}
	require.NoError(t, ws.ReadJSON(&req))
	if req.Echo != nil {
		seq = req.Echo.Seq
	}
	return req.Action, seq
}

func TestListener_EndToEnd(t *testing.T) {
	results := make(chan api.Result, 1)
	b, url := startBot(t, "secret", func(b *Bot) {
		On(b, func(c *Context, ev event.GroupMsg) error {
			res, err := c.Async(true).GetGroupMemberList(c.Context(), ev.GroupID).Wait(c.Context())
			if err != nil {
				return err
			}
			results <- res
			return nil
		})
	})

	ws := dial(t, url, bearer("secret"))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, connectFrame(9)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(groupFrame)))

	action, seq := readRequest(t, ws)
	assert.Equal(t, "get_group_member_list", action)
	require.NotZero(t, seq)

	reply, _ := json.Marshal(map[string]any{
		"status":  "ok",
		"retcode": 0,
		"data":    []map[string]any{{"user_id": 7}},
		"echo":    map[string]any{"seq": seq},
	})
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, reply))

	select {
	case res := <-results:
		assert.True(t, res.OK)
		assert.JSONEq(t, `[{"user_id":7}]`, string(res.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("handler never got its reply")
	}
	assert.Equal(t, []int64{9}, b.Bots())
}

func TestListener_RejectsBadToken(t *testing.T) {
	b, url := startBot(t, "secret", nil)

	for _, header := range []http.Header{nil, bearer("wrong"), {"Authorization": []string{"Basic c2VjcmV0"}}} {
		_, resp, err := websocket.DefaultDialer.Dial(url, header)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, 0, b.sessions.Len())

	ws := dial(t, url+"?access_token=secret", nil)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, connectFrame(3)))
	require.Eventually(t, func() bool { return len(b.Bots()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestListener_SelfIDHeaderBindsSession(t *testing.T) {
	b, url := startBot(t, "", nil)

	dial(t, url, http.Header{"X-Self-ID": []string{"42"}})
	require.Eventually(t, func() bool {
		bots := b.Bots()
		return len(bots) == 1 && bots[0] == 42
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListener_DisconnectFailsPendingCalls(t *testing.T) {
	b, url := startBot(t, "", nil)

	ws := dial(t, url, nil)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, connectFrame(42)))
	require.Eventually(t, func() bool { return len(b.Bots()) == 1 }, 2*time.Second, 10*time.Millisecond)

	f := b.Async(42, true).GetStatus(context.Background())
	_, seq := readRequest(t, ws)
	assert.Equal(t, f.Seq, seq)
	require.NoError(t, ws.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := f.Wait(ctx)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.Contains(t, string(res.Data), "connection closed")

	require.Eventually(t, func() bool { return len(b.Bots()) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, b.Pending())
}

func TestListener_TwoBotsOnSeparateConnections(t *testing.T) {
	b, url := startBot(t, "", nil)

	first := dial(t, url, nil)
	second := dial(t, url, nil)
	require.NoError(t, first.WriteMessage(websocket.TextMessage, connectFrame(1)))
	require.NoError(t, second.WriteMessage(websocket.TextMessage, connectFrame(2)))
	require.Eventually(t, func() bool { return len(b.Bots()) == 2 }, 2*time.Second, 10*time.Millisecond)

	f := b.Async(2, true).GetLoginInfo(context.Background())
	_, seq := readRequest(t, second)

	reply, _ := json.Marshal(map[string]any{"data": map[string]any{"user_id": 2}, "echo": map[string]any{"seq": seq}})
	require.NoError(t, second.WriteMessage(websocket.TextMessage, reply))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := f.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, res.OK)
}

func TestServe_OnlyOnce(t *testing.T) {
	b, _ := startBot(t, "", nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Error(t, b.Serve(context.Background(), ln))
}
