package transport

import (
	"errors"
	"io"
	"net"
	"time"
)

const (
	ReadBufferSize = 1024
)

// Stream 一条已建立的双向字节流 (TCP连接或WebSocket连接)
type Stream interface {
	io.ReadWriteCloser
	RemoteAddr() net.Addr
	SetReadDeadline(t time.Time) error
}

// ReadChunk reads whatever the transport delivers next into buf and returns a
// copy of it. A zero-length read is reported as io.EOF: there is no framing on
// the wire, so one chunk is one message.
func ReadChunk(r io.Reader, buf []byte) ([]byte, error) {
	n, err := r.Read(buf)
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		// the bytes already read count as a chunk, the error surfaces on the next read
		return chunk, nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

// IsClosed reports whether err is the ordinary result of a peer or local close.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
