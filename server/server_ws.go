package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"relay-im/transport"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	WsPath = "/ws"
)

// WsListener accepts websocket upgrades on WsPath and hands every upgraded
// connection out through Accept, so websocket users join the same relay as
// TCP users.
type WsListener struct {
	ln       net.Listener
	srv      *http.Server
	upGrader websocket.Upgrader
	conns    chan transport.Stream
	closed   chan struct{}
	once     sync.Once
	log      *logrus.Entry
}

func ListenWS(ctx context.Context, addr string, log *logrus.Entry) (*WsListener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("websocket listen on %s: %w", addr, err)
	}
	l := NewWsListener(ln, log)
	go l.serve()
	return l, nil
}

// NewWsListener wraps an already bound listener. Call Handler to mount it on
// another server instead of serving ln.
func NewWsListener(ln net.Listener, log *logrus.Entry) *WsListener {
	l := &WsListener{
		ln: ln,
		upGrader: websocket.Upgrader{
			ReadBufferSize:  512,
			WriteBufferSize: 512,
			//cross origin domain support
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns:  make(chan transport.Stream),
		closed: make(chan struct{}),
		log:    log.WithField("component", "websocket"),
	}
	l.srv = &http.Server{
		Handler:           l.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return l
}

func (l *WsListener) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(WsPath, l.handleWs)
	return r
}

func (l *WsListener) serve() {
	if err := l.srv.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.log.Warnf("websocket server error when serving: %s", err.Error())
		_ = l.Close()
	}
}

func (l *WsListener) handleWs(w http.ResponseWriter, r *http.Request) {
	conn, err := l.upGrader.Upgrade(w, r, nil)
	if err != nil {
		l.log.Warnf("websocket upgrade failed: %s", err.Error())
		return
	}
	stream := transport.NewWsStream(conn, transport.ReadBufferSize)
	select {
	case l.conns <- stream:
		l.log.Debugf("websocket client connect success from %s", r.RemoteAddr)
	case <-l.closed:
		_ = stream.Close()
	}
}

func (l *WsListener) Accept() (transport.Stream, error) {
	select {
	case s := <-l.conns:
		return s, nil
	case <-l.closed:
		return nil, net.ErrClosed
	}
}

func (l *WsListener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.closed)
		err = l.srv.Close()
	})
	return err
}

func (l *WsListener) Addr() net.Addr {
	return l.ln.Addr()
}
