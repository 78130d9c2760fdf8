package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
)

type TcpClient struct {
	userName string
	addr     string
	in       io.Reader
	out      io.Writer
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewTcpClient(userName, addr string) *TcpClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &TcpClient{
		userName: userName,
		addr:     addr,
		in:       os.Stdin,
		out:      os.Stdout,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// WithIO replaces the console with in and out.
func (c *TcpClient) WithIO(in io.Reader, out io.Writer) *TcpClient {
	c.in, c.out = in, out
	return c
}

func (c *TcpClient) Connect() error {
	var d net.Dialer
	conn, err := d.DialContext(c.ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("tcp client error when dialing: %w", err)
	}
	defer conn.Close()
	fmt.Fprintln(c.out, "Connected to server!")
	err = chat(c.ctx, conn, c.userName, c.in, c.out)
	fmt.Fprintln(c.out, "Disconnected.")
	return err
}

func (c *TcpClient) Disconnect() {
	c.cancel()
}
