package server

import (
	"net"
	"relay-im/transport"
)

// Listener 监听端口 + 接收新连接
type Listener interface {
	Accept() (transport.Stream, error)
	Close() error
	Addr() net.Addr
}
