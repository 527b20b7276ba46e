package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"wardline/pkg/types"
)

// Session is one connected socket plus an optional authenticated identity.
// Writes are serialized through a single writer goroutine; the socket is
// owned exclusively by the actor that created the session.
type Session struct {
	conn        *websocket.Conn
	writeCh     chan []byte
	connectedAt time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu       sync.RWMutex
	identity *types.Identity

	writeTimeout time.Duration
}

// NewSession wraps an upgraded connection and starts its writer goroutine.
func NewSession(conn *websocket.Conn, bufferSize int, writeTimeout time.Duration) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		conn:         conn,
		writeCh:      make(chan []byte, bufferSize),
		connectedAt:  time.Now(),
		ctx:          ctx,
		cancel:       cancel,
		writeTimeout: writeTimeout,
	}

	go s.writeLoop()

	return s
}

// writeLoop is the single writer goroutine. All frames leave through here so
// concurrent broadcasts never interleave on the socket.
func (s *Session) writeLoop() {
	for {
		select {
		case data, ok := <-s.writeCh:
			if !ok {
				return
			}
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-s.ctx.Done():
			return
		}
	}
}

// WriteJSON marshals v and queues it for delivery. Failure here marks the
// session dead to the owning actor.
func (s *Session) WriteJSON(v any) error {
	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case s.writeCh <- data:
		return nil
	case <-time.After(s.writeTimeout):
		return ErrWriteTimeout
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

// WriteRaw queues pre-encoded JSON, used for opaque relays where the actor
// never inspects the payload.
func (s *Session) WriteRaw(data []byte) error {
	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
	}

	select {
	case s.writeCh <- data:
		return nil
	case <-time.After(s.writeTimeout):
		return ErrWriteTimeout
	case <-s.ctx.Done():
		return ErrSessionClosed
	}
}

// Close tears down the socket and writer goroutine. Safe to call repeatedly.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		if s.conn != nil {
			err = s.conn.Close()
		}
	})
	return err
}

// CloseAbnormal sends a policy-violation close frame with the given reason
// and then closes the socket. Used for authentication failures and timeouts.
func (s *Session) CloseAbnormal(reason string) {
	deadline := time.Now().Add(s.writeTimeout)
	// Let any queued frame (an error envelope, usually) flush first.
	for len(s.writeCh) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
	_ = s.Close()
}

// SetIdentity attaches the authenticated identity to the session.
func (s *Session) SetIdentity(identity *types.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
}

// Identity returns the attached identity, or nil before authentication.
func (s *Session) Identity() *types.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// IsAuthenticated reports whether an identity is attached.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// ConnectedAt returns when the socket was accepted.
func (s *Session) ConnectedAt() time.Time {
	return s.connectedAt
}

// Done is closed when the session ends, for goroutines tied to its lifetime.
func (s *Session) Done() <-chan struct{} {
	return s.ctx.Done()
}

// ReadMessage reads the next frame from the socket. Only the owning actor's
// read pump calls this.
func (s *Session) ReadMessage() (int, []byte, error) {
	return s.conn.ReadMessage()
}

// SetReadDeadline bounds the next read, used by heartbeat monitoring.
func (s *Session) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

// SetPongHandler installs the heartbeat pong callback.
func (s *Session) SetPongHandler(h func(string) error) {
	s.conn.SetPongHandler(h)
}

// Ping sends a ping control frame.
func (s *Session) Ping(deadline time.Time) error {
	return s.conn.WriteControl(websocket.PingMessage, []byte{}, deadline)
}
