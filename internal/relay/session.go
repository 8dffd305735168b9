package relay

import (
	"context"
	"encoding/json"
	"sync"
)

// Conn abstracts the write side of a client connection so the relay never
// touches the raw WebSocket directly.
type Conn interface {
	Write(ctx context.Context, data []byte) error
}

// Session is one live authenticated client connection. It is created by the
// gateway after the handshake credential has been verified and destroyed on
// disconnect; the registry and the bridge only hold references.
type Session struct {
	ID       string
	UserID   int64
	Username string

	mu     sync.Mutex
	conn   Conn
	closed bool
}

// NewSession binds a session to an authenticated identity and its connection.
func NewSession(id string, userID int64, username string, conn Conn) *Session {
	return &Session{
		ID:       id,
		UserID:   userID,
		Username: username,
		conn:     conn,
	}
}

// Send pushes raw bytes to the client. Individual sends are atomic with
// respect to each other.
func (s *Session) Send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return s.conn.Write(ctx, data)
}

// SendJSON marshals v and sends it to the client.
func (s *Session) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Send(ctx, data)
}

// Close marks the session gone. Later correlated responses are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// Closed reports whether the session has been closed.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
