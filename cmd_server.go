package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"relay-im/config"
	"relay-im/server"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serverCmd() *cobra.Command {
	cfg, loadErr := config.Load()
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the chat relay",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil {
				return loadErr
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.Host, "host", cfg.Host, "interface to listen on")
	cmd.Flags().IntVarP(&cfg.Port, "port", "p", cfg.Port, "tcp port to listen on")
	cmd.Flags().StringVar(&cfg.WsAddr, "ws-addr", cfg.WsAddr, "websocket listen address, empty disables it")
	cmd.Flags().StringVar(&cfg.AdminAddr, "admin-addr", cfg.AdminAddr, "admin http address (/healthz, /metrics, /sessions), empty disables it")
	cmd.Flags().IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "outbound queue capacity per session")
	cmd.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	return cmd
}

// runServer binds every configured endpoint before serving, so a bad address
// fails the process before any client can connect.
func runServer(cfg config.Config) error {
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	log := logrus.NewEntry(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	relay := server.NewRelay(
		server.WithLogger(log),
		server.WithRegisterer(reg),
		server.WithQueueSize(cfg.QueueSize),
	)

	listeners := make([]server.Listener, 0, 2)
	tcpLn, err := server.ListenTCP(ctx, cfg.Addr())
	if err != nil {
		return err
	}
	listeners = append(listeners, tcpLn)
	closeAll := func() {
		for _, ln := range listeners {
			_ = ln.Close()
		}
	}
	if cfg.WsAddr != "" {
		wsLn, err := server.ListenWS(ctx, cfg.WsAddr, log)
		if err != nil {
			closeAll()
			return err
		}
		listeners = append(listeners, wsLn)
	}
	var adminLn net.Listener
	if cfg.AdminAddr != "" {
		if adminLn, err = net.Listen("tcp", cfg.AdminAddr); err != nil {
			closeAll()
			return fmt.Errorf("admin listen on %s: %w", cfg.AdminAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(gctx)
	})
	for _, ln := range listeners {
		ln := ln
		g.Go(func() error {
			return relay.Serve(gctx, ln)
		})
	}
	if adminLn != nil {
		admin := server.NewAdminServer(cfg.AdminAddr, server.AdminRouter(relay, reg, log))
		g.Go(func() error {
			log.Infof("admin server is listening on %s", adminLn.Addr())
			if err := admin.Serve(adminLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			return admin.Close()
		})
	}

	err = g.Wait()
	log.Infof("server stopped")
	return err
}
