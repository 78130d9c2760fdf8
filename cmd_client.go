package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"relay-im/client"
	"relay-im/config"
	"syscall"

	"github.com/spf13/cobra"
)

func clientCmd() *cobra.Command {
	var (
		network string
		addr    string
		name    string
	)
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Connect to a chat relay from the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			var c client.Client
			switch network {
			case "tcp":
				c = client.NewTcpClient(name, addr)
			case "ws":
				c = client.NewWsClient(name, addr)
			default:
				return fmt.Errorf("unknown network %q, want tcp or ws", network)
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go func() {
				<-ctx.Done()
				c.Disconnect()
			}()
			return c.Connect()
		},
	}
	defaultAddr := "localhost:8080"
	if cfg, err := config.Load(); err == nil {
		defaultAddr = cfg.ServerAddr
	}
	cmd.Flags().StringVar(&network, "net", "tcp", "client protocol (tcp or ws)")
	cmd.Flags().StringVar(&addr, "addr", defaultAddr, "server address")
	cmd.Flags().StringVar(&name, "name", "", "user name, prompted for when empty")
	return cmd
}
