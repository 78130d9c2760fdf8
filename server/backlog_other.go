//go:build !unix

package server

import "net"

func setBacklog(*net.TCPListener, int) error {
	return nil
}
