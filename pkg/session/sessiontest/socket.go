// Package sessiontest provides an in-memory Socket for tests.
package sessiontest

import (
	"errors"
	"sync"
	"time"
)

// Socket records every frame written to it.
type Socket struct {
	mu       sync.Mutex
	frames   [][]byte
	pings    int
	closed   bool
	WriteErr error

	// Written receives a copy of each text frame if non-nil.
	Written chan []byte
}

func NewSocket() *Socket {
	return &Socket{Written: make(chan []byte, 64)}
}

func (s *Socket) WriteMessage(_ int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("socket closed")
	}
	if s.WriteErr != nil {
		return s.WriteErr
	}
	frame := append([]byte(nil), data...)
	s.frames = append(s.frames, frame)
	if s.Written != nil {
		select {
		case s.Written <- frame:
		default:
		}
	}
	return nil
}

func (s *Socket) WriteControl(_ int, _ []byte, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pings++
	return nil
}

func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Frames returns a copy of all frames written so far.
func (s *Socket) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

func (s *Socket) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
