// twobot - OneBot v11 bot engine
// Reverse WebSocket listener for gateway connections

package bot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sipeed/twobot/pkg/logger"
	"github.com/sipeed/twobot/pkg/session"
)

const (
	writeWait       = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// HTTPHandler accepts gateway connections on the configured path.
func (b *Bot) HTTPHandler() http.Handler {
	path := b.cfg.WSPath
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, b.authMiddleware(b.handleWebSocket))
	return mux
}

// Run listens on the configured ws_host:ws_port and serves until ctx is
// cancelled or Stop is called.
func (b *Bot) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", b.cfg.WSAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", b.cfg.WSAddr(), err)
	}
	return b.Serve(ctx, ln)
}

// Serve accepts gateway connections on ln until ctx is cancelled or Stop is
// called. A Bot serves once. When Serve returns every connection has been
// closed and its pending calls have failed.
func (b *Bot) Serve(ctx context.Context, ln net.Listener) error {
	b.mu.Lock()
	if b.served {
		b.mu.Unlock()
		ln.Close()
		return errors.New("bot already served")
	}
	ctx, cancel := context.WithCancel(ctx)
	b.served = true
	b.cancel = cancel
	b.done = make(chan struct{})
	done := b.done
	b.mu.Unlock()
	defer close(done)
	defer cancel()

	server := &http.Server{
		Handler:           b.HTTPHandler(),
		ReadHeaderTimeout: 15 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	logger.InfoCF("listener", "Accepting gateway connections", map[string]any{
		"address": ln.Addr().String(),
		"path":    b.cfg.WSPath,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCF("listener", "Error shutting down server", map[string]any{
			"error": err.Error(),
		})
	}

	// Hijacked connections are not closed by Shutdown.
	b.mu.Lock()
	b.closing = true
	b.mu.Unlock()
	b.sessions.CloseAll()
	b.conns.Wait()

	if err := b.pool.Stop(shutdownCtx); err != nil {
		logger.WarnCF("listener", "Handlers still running at shutdown", map[string]any{
			"error": err.Error(),
		})
	}

	logger.InfoC("listener", "Stopped")
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}

// Stop cancels a running Serve and waits for it to return or ctx to end.
func (b *Bot) Stop(ctx context.Context) error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bot) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.ErrorCF("listener", "Failed to upgrade connection", map[string]any{
			"remote": r.RemoteAddr,
			"error":  err.Error(),
		})
		return
	}

	conn := session.NewConn(uuid.NewString(), r.RemoteAddr, ws)
	if !b.track(conn) {
		conn.Close()
		return
	}

	fields := map[string]any{
		"conn_id": conn.ID,
		"remote":  conn.Remote,
	}
	// OneBot gateways announce the bot account in the handshake; the
	// connect event confirms it later.
	if selfID, err := strconv.ParseInt(r.Header.Get("X-Self-ID"), 10, 64); err == nil && selfID != 0 {
		b.bindSession(conn.ID, selfID)
		fields["self_id"] = selfID
	}
	logger.InfoCF("listener", "Gateway connected", fields)

	go b.serveConn(conn, ws)
}

// track registers a new connection unless shutdown has begun.
func (b *Bot) track(conn *session.Conn) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closing {
		return false
	}
	b.sessions.Add(conn)
	b.conns.Add(1)
	return true
}

// serveConn is the read loop of one connection. Frames are handed to
// OnFrame in arrival order.
func (b *Bot) serveConn(conn *session.Conn, ws *websocket.Conn) {
	defer b.conns.Done()

	stop := make(chan struct{})
	defer func() {
		close(stop)
		b.closeConn(conn)
	}()

	ws.SetReadDeadline(time.Now().Add(b.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(b.pongWait))
	})

	go b.keepAlive(conn, stop)

	for {
		msgType, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WarnCF("listener", "WebSocket read error", map[string]any{
					"conn_id": conn.ID,
					"error":   err.Error(),
				})
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(b.pongWait))

		if msgType != websocket.TextMessage {
			continue
		}
		b.OnFrame(conn.ID, payload)
	}
}

// closeConn retires a connection. The socket is closed before pending calls
// are dropped, so a call that registers late fails on its write instead of
// waiting for a reply that cannot arrive.
func (b *Bot) closeConn(conn *session.Conn) {
	b.sessions.Remove(conn.ID)
	conn.Close()
	dropped := b.table.DropConn(conn.ID, session.ErrClosed)
	logger.InfoCF("listener", "Gateway disconnected", map[string]any{
		"conn_id": conn.ID,
		"self_id": conn.SelfID(),
		"dropped": dropped,
	})
}

func (b *Bot) keepAlive(conn *session.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(b.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.Ping(time.Now().Add(writeWait)); err != nil {
				logger.WarnCF("listener", "Failed to send ping", map[string]any{
					"conn_id": conn.ID,
					"error":   err.Error(),
				})
				conn.Close()
				return
			}
		}
	}
}
