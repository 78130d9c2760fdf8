package transport

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsCloseWait = time.Second
)

// WsStream adapts a websocket connection to Stream. Every inbound text or
// binary frame becomes one chunk, every Write becomes one text frame.
type WsStream struct {
	conn    *websocket.Conn
	pending []byte
	wmu     sync.Mutex // gorilla 只允许一个并发写者
	once    sync.Once
}

// NewWsStream wraps conn. Frames larger than readLimit fail the read with
// websocket.ErrReadLimit, so a reader whose buffer holds readLimit bytes always
// gets a whole frame as one chunk.
func NewWsStream(conn *websocket.Conn, readLimit int64) *WsStream {
	conn.SetReadLimit(readLimit)
	return &WsStream{conn: conn}
}

func (s *WsStream) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		// 空帧不能当作EOF
		s.pending = data
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *WsStream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a best-effort close frame and closes the underlying connection.
func (s *WsStream) Close() error {
	err := net.ErrClosed
	s.once.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseWait))
		err = s.conn.Close()
	})
	return err
}

func (s *WsStream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *WsStream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}
