//go:build unix

package server

import (
	"net"

	"golang.org/x/sys/unix"
)

// setBacklog re-issues listen(2) on the bound socket; the kernel keeps the
// socket and only replaces the backlog.
func setBacklog(ln *net.TCPListener, backlog int) error {
	raw, err := ln.SyscallConn()
	if err != nil {
		return err
	}
	var lerr error
	if err = raw.Control(func(fd uintptr) {
		lerr = unix.Listen(int(fd), backlog)
	}); err != nil {
		return err
	}
	return lerr
}
