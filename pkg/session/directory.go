// Package session tracks live gateway connections and which bot identity
// each one carries, so asynchronous calls addressed to a bot go out on the
// connection that bot announced itself on.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrNoSession = errors.New("no session for bot")
	ErrNoConn    = errors.New("unknown connection")
	ErrClosed    = errors.New("connection closed")
)

// Socket is the subset of *websocket.Conn a Conn writes through.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Conn is one live gateway connection. gorilla/websocket allows a single
// concurrent writer, so every write goes through mu.
type Conn struct {
	ID     string
	Remote string

	mu     sync.Mutex
	socket Socket
	closed bool

	selfID atomic.Int64
}

func NewConn(id, remote string, socket Socket) *Conn {
	return &Conn{ID: id, Remote: remote, socket: socket}
}

// SelfID returns the bot identity bound to this connection, 0 until its
// connect event has been seen.
func (c *Conn) SelfID() int64 {
	return c.selfID.Load()
}

// WriteText sends one text frame.
func (c *Conn) WriteText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.socket.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a ping control frame.
func (c *Conn) Ping(deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.socket.WriteControl(websocket.PingMessage, nil, deadline)
}

// Close closes the underlying socket once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.socket.Close()
}

// Directory owns every Conn handle. Lookups hand out the *Conn for writing;
// callers never close it themselves.
type Directory struct {
	mu    sync.RWMutex
	conns map[string]*Conn
	bots  map[int64]*Conn
}

func NewDirectory() *Directory {
	return &Directory{
		conns: make(map[string]*Conn),
		bots:  make(map[int64]*Conn),
	}
}

// Add registers a freshly accepted connection.
func (d *Directory) Add(c *Conn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns[c.ID] = c
}

// Bind associates selfID with the connection connID. A bot that reconnects
// is rebound to its newest connection.
func (d *Directory) Bind(connID string, selfID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.conns[connID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoConn, connID)
	}
	if prev := c.SelfID(); prev != 0 && prev != selfID {
		if d.bots[prev] == c {
			delete(d.bots, prev)
		}
	}
	c.selfID.Store(selfID)
	d.bots[selfID] = c
	return nil
}

// Lookup returns the connection currently bound to selfID.
func (d *Directory) Lookup(selfID int64) (*Conn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.bots[selfID]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrNoSession, selfID)
	}
	return c, nil
}

// Get returns a connection by its ID.
func (d *Directory) Get(connID string) (*Conn, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.conns[connID]
	return c, ok
}

// Remove drops connID and any bot binding that still points at it. A bot
// already rebound to a newer connection keeps that binding.
func (d *Directory) Remove(connID string) (*Conn, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	c, ok := d.conns[connID]
	if !ok {
		return nil, false
	}
	delete(d.conns, connID)
	if selfID := c.SelfID(); selfID != 0 && d.bots[selfID] == c {
		delete(d.bots, selfID)
	}
	return c, true
}

// Bots lists the bot identities with a live session, sorted.
func (d *Directory) Bots() []int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]int64, 0, len(d.bots))
	for id := range d.bots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of live connections.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}

// CloseAll closes and forgets every connection.
func (d *Directory) CloseAll() {
	d.mu.Lock()
	conns := make([]*Conn, 0, len(d.conns))
	for _, c := range d.conns {
		conns = append(conns, c)
	}
	d.conns = make(map[string]*Conn)
	d.bots = make(map[int64]*Conn)
	d.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
