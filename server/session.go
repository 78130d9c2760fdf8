package server

import (
	"relay-im/transport"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is the server-side state of one connection. Everything except the
// stream close is touched only by the relay's control loop.
type Session struct {
	handle      uuid.UUID
	name        string
	registered  bool
	stream      transport.Stream
	remoteAddr  string
	connectedAt time.Time
	out         chan string // 出站队列 由写协程消费
	retired     bool
	closeOnce   sync.Once
}

func NewSession(handle uuid.UUID, stream transport.Stream, queueSize int) *Session {
	s := &Session{
		handle:      handle,
		stream:      stream,
		connectedAt: time.Now(),
		out:         make(chan string, queueSize),
	}
	if addr := stream.RemoteAddr(); addr != nil {
		s.remoteAddr = addr.String()
	}
	return s
}

func (s *Session) Handle() uuid.UUID { return s.handle }

// Name returns the display name and whether the session has registered.
func (s *Session) Name() (string, bool) { return s.name, s.registered }

func (s *Session) RemoteAddr() string { return s.remoteAddr }

// send enqueues body without blocking. It fails when the queue is full or the
// session has been retired.
func (s *Session) send(body string) bool {
	if s.retired {
		return false
	}
	select {
	case s.out <- body:
		return true
	default:
		return false
	}
}

// retire stops the outbound queue; the writer drains what is left and then
// closes the stream.
func (s *Session) retire() {
	if s.retired {
		return
	}
	s.retired = true
	close(s.out)
}

func (s *Session) close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.stream.Close()
	})
	return err
}

// SessionInfo is a read-only view of a session for the admin surface.
type SessionInfo struct {
	Handle      uuid.UUID `json:"handle"`
	Name        string    `json:"name,omitempty"`
	Registered  bool      `json:"registered"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		Handle:      s.handle,
		Name:        s.name,
		Registered:  s.registered,
		RemoteAddr:  s.remoteAddr,
		ConnectedAt: s.connectedAt,
	}
}
