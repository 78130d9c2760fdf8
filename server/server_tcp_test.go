package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListenTCP_BoundedBacklog(t *testing.T) {
	req := require.New(t)
	ln, err := ListenTCP(context.Background(), "127.0.0.1:0")
	req.NoError(err)
	defer ln.Close()

	// applying the backlog again on a live socket is harmless
	req.NoError(setBacklog(ln.ln, ListenBacklog))

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), readWait)
	req.NoError(err)
	defer conn.Close()

	stream, err := ln.Accept()
	req.NoError(err)
	defer stream.Close()
	req.NoError(conn.SetWriteDeadline(time.Now().Add(readWait)))
	_, err = conn.Write([]byte("alice"))
	req.NoError(err)
	req.NoError(stream.SetReadDeadline(time.Now().Add(readWait)))
	buf := make([]byte, 16)
	n, err := stream.Read(buf)
	req.NoError(err)
	req.Equal("alice", string(buf[:n]))

	req.NoError(ln.Close())
	_, err = ln.Accept()
	req.ErrorIs(err, net.ErrClosed)
}

func TestListenTCP_BindFailure(t *testing.T) {
	req := require.New(t)
	first, err := ListenTCP(context.Background(), "127.0.0.1:0")
	req.NoError(err)
	defer first.Close()

	_, err = ListenTCP(context.Background(), first.Addr().String())
	req.Error(err)
	req.Contains(err.Error(), "tcp listen on")
}
