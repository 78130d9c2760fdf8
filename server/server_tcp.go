package server

import (
	"context"
	"fmt"
	"net"
	"relay-im/transport"
)

// TcpListener 监听TCP端口 每个连接即一条Stream
type TcpListener struct {
	ln *net.TCPListener
}

// ListenBacklog bounds the queue of connections the kernel holds before Accept.
const ListenBacklog = 16

// ListenTCP binds addr with an accept backlog of ListenBacklog where the
// platform allows it.
func ListenTCP(ctx context.Context, addr string) (*TcpListener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp listen on %s: %w", addr, err)
	}
	tcpLn := ln.(*net.TCPListener)
	if err = setBacklog(tcpLn, ListenBacklog); err != nil {
		_ = tcpLn.Close()
		return nil, fmt.Errorf("tcp listen on %s: backlog: %w", addr, err)
	}
	return &TcpListener{ln: tcpLn}, nil
}

func (l *TcpListener) Accept() (transport.Stream, error) {
	conn, err := l.ln.AcceptTCP()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (l *TcpListener) Close() error {
	return l.ln.Close()
}

func (l *TcpListener) Addr() net.Addr {
	return l.ln.Addr()
}
