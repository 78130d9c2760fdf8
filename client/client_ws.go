package client

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"relay-im/transport"

	"github.com/gorilla/websocket"
)

type WsClient struct {
	userName string
	addr     string
	in       io.Reader
	out      io.Writer
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewWsClient(userName, addr string) *WsClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &WsClient{
		userName: userName,
		addr:     addr,
		in:       os.Stdin,
		out:      os.Stdout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (c *WsClient) WithIO(in io.Reader, out io.Writer) *WsClient {
	c.in, c.out = in, out
	return c
}

func (c *WsClient) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket client error when dialing: %w", err)
	}
	stream := transport.NewWsStream(conn, transport.ReadBufferSize*4)
	defer stream.Close()
	fmt.Fprintln(c.out, "Connected to server!")
	err = chat(c.ctx, stream, c.userName, c.in, c.out)
	fmt.Fprintln(c.out, "Disconnected.")
	return err
}

func (c *WsClient) Disconnect() {
	c.cancel()
}
