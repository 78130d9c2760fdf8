package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"relay-im/proto"
	"relay-im/transport"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	acceptBackoffMin = 5 * time.Millisecond
	acceptBackoffMax = time.Second
)

type eventKind int

const (
	evAccepted eventKind = iota
	evChunk
	evClosed
	evQuery
)

type event struct {
	kind   eventKind
	handle uuid.UUID
	stream transport.Stream
	chunk  []byte
	err    error
	reply  chan []SessionInfo
}

// Relay is the session lifecycle engine. Accept loops and per-session readers
// turn readiness into events; Run consumes them one at a time and is the only
// goroutine that touches the session table.
type Relay struct {
	table   *Table
	router  *Router
	sink    *Sink
	metrics *Metrics
	log     *logrus.Entry
	events  chan event
	live    atomic.Int64
	wg      sync.WaitGroup // 读写协程
	done    chan struct{}

	gate    sync.RWMutex // 停止后不再接收新连接
	stopped bool
}

type options struct {
	log       *logrus.Entry
	reg       prometheus.Registerer
	queueSize int
}

type Option func(*options)

func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}

// WithRegisterer sets where the relay metrics are registered. By default a
// private registry is used.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// WithQueueSize sets the per-session outbound queue capacity.
func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

func NewRelay(opts ...Option) *Relay {
	o := options{queueSize: proto.ChannelBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if o.reg == nil {
		o.reg = prometheus.NewRegistry()
	}
	log := o.log.WithField("component", "relay")
	metrics := NewMetrics(o.reg)
	table := NewTable(o.queueSize)
	return &Relay{
		table:   table,
		router:  NewRouter(table, log),
		sink:    NewSink(log, metrics),
		metrics: metrics,
		log:     log,
		events:  make(chan event, proto.ChannelBufferSize),
		done:    make(chan struct{}),
	}
}

// Run is the control loop. It returns nil once ctx is cancelled and every
// session goroutine has stopped.
func (r *Relay) Run(ctx context.Context) error {
	r.log.Infof("relay is running ...")
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			close(r.done)
			// 等待正在 emit 的 Serve 退出 之后入队的连接都由 drain 关闭
			r.gate.Lock()
			r.stopped = true
			r.gate.Unlock()
			r.drain()
			r.wg.Wait()
			r.log.Infof("relay stopped")
			return nil
		case ev := <-r.events:
			r.dispatch(ev)
		}
	}
}

// Serve accepts connections from ln until ctx is cancelled. A failed accept
// is logged and retried; a listener that closes underneath a live ctx is fatal.
func (r *Relay) Serve(ctx context.Context, ln Listener) error {
	log := r.log.WithField("listener", ln.Addr().String())
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	log.Infof("accepting connections on %s", ln.Addr())
	var backoff time.Duration
	for {
		stream, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("listener %s: %w", ln.Addr(), err)
			}
			backoff = nextBackoff(backoff)
			log.Warnf("error when accepting: %s, retrying in %s", err.Error(), backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		backoff = 0
		if !r.emit(ctx, event{kind: evAccepted, stream: stream}) {
			_ = stream.Close()
			return nil
		}
	}
}

// Sessions returns a point-in-time view of the session table.
func (r *Relay) Sessions(ctx context.Context) ([]SessionInfo, error) {
	reply := make(chan []SessionInfo, 1)
	select {
	case r.events <- event{kind: evQuery, reply: reply}:
	case <-r.done:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case infos := <-reply:
		return infos, nil
	case <-r.done:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Live returns the number of sessions in the table.
func (r *Relay) Live() int {
	return int(r.live.Load())
}

func (r *Relay) emit(ctx context.Context, ev event) bool {
	r.gate.RLock()
	defer r.gate.RUnlock()
	if r.stopped {
		return false
	}
	select {
	case r.events <- ev:
		return true
	case <-ctx.Done():
		return false
	case <-r.done:
		return false
	}
}

func (r *Relay) dispatch(ev event) {
	switch ev.kind {
	case evAccepted:
		r.admit(ev.stream)
	case evChunk:
		r.handleChunk(ev.handle, ev.chunk)
	case evClosed:
		r.depart(ev.handle, ev.err)
	case evQuery:
		infos := make([]SessionInfo, 0, r.table.Len())
		for _, s := range r.table.Snapshot() {
			infos = append(infos, s.info())
		}
		ev.reply <- infos
	}
}

func (r *Relay) admit(stream transport.Stream) {
	var (
		s   *Session
		err error
	)
	for {
		if s, err = r.table.Insert(uuid.New(), stream); !errors.Is(err, ErrDuplicateSession) {
			break
		}
	}
	r.live.Store(int64(r.table.Len()))
	r.metrics.accepted.Inc()
	r.metrics.sessions.Set(float64(r.table.Len()))
	r.log.WithFields(logrus.Fields{"handle": s.handle, "remote": s.remoteAddr}).
		Infof("client connected, total sessions: %d", r.table.Len())

	// 提示输入用户名 先于任何广播入队
	s.send(proto.Prompt)

	r.wg.Add(2)
	go r.write(s)
	go r.read(s)
}

func (r *Relay) handleChunk(handle uuid.UUID, chunk []byte) {
	s, ok := r.table.Get(handle)
	if !ok {
		r.log.WithField("handle", handle).Debugf("chunk for a session that is already gone")
		return
	}
	kind := "chat"
	if _, registered := s.Name(); !registered {
		kind = "join"
	}
	msgs, err := r.router.Route(handle, chunk)
	if err != nil {
		r.log.WithField("handle", handle).Warnf("error when routing: %s", err.Error())
		return
	}
	for _, msg := range msgs {
		r.metrics.routed.WithLabelValues(kind).Inc()
		r.sink.Deliver(msg, r.table.Snapshot())
	}
}

func (r *Relay) depart(handle uuid.UUID, cause error) {
	s, err := r.table.Remove(handle)
	if err != nil {
		r.log.WithField("handle", handle).Debugf("departure ignored: %s", err.Error())
		return
	}
	s.retire()
	r.live.Store(int64(r.table.Len()))
	r.metrics.sessions.Set(float64(r.table.Len()))

	log := r.log.WithFields(logrus.Fields{"handle": handle, "remote": s.remoteAddr})
	if cause != nil && !transport.IsClosed(cause) {
		log.Warnf("read error: %s", cause.Error())
	}
	name, registered := s.Name()
	if !registered {
		log.Infof("client %s left before registering", s.remoteAddr)
		return
	}
	log.Infof("%s", proto.DisconnectLog(name))
	r.metrics.routed.WithLabelValues("leave").Inc()
	// 已从表中删除 离开者不会出现在快照里
	r.sink.Deliver(proto.Msg{Body: proto.LeaveNotice(name)}, r.table.Snapshot())
}

func (r *Relay) read(s *Session) {
	defer r.wg.Done()
	buf := make([]byte, transport.ReadBufferSize)
	for {
		chunk, err := transport.ReadChunk(s.stream, buf)
		if err != nil {
			r.emitLocal(event{kind: evClosed, handle: s.handle, err: err})
			return
		}
		if !r.emitLocal(event{kind: evChunk, handle: s.handle, chunk: chunk}) {
			return
		}
	}
}

// emitLocal is emit for session goroutines, which stop with the loop rather
// than with a caller's context.
func (r *Relay) emitLocal(ev event) bool {
	select {
	case r.events <- ev:
		return true
	case <-r.done:
		return false
	}
}

func (r *Relay) write(s *Session) {
	defer r.wg.Done()
	defer func() {
		if err := s.close(); err != nil && !transport.IsClosed(err) {
			r.log.WithField("handle", s.handle).Debugf("error when closing: %s", err.Error())
		}
	}()
	for body := range s.out {
		if _, err := s.stream.Write([]byte(body)); err != nil {
			// 关闭连接后 读协程会报告离开
			r.log.WithField("handle", s.handle).Warnf("error when writing: %s", err.Error())
			return
		}
	}
}

func (r *Relay) shutdown() {
	sessions := r.table.Snapshot()
	r.log.Infof("shutting down, closing %d sessions", len(sessions))
	for _, s := range sessions {
		_, _ = r.table.Remove(s.handle)
		s.retire()
		_ = s.close()
	}
	r.live.Store(0)
	r.metrics.sessions.Set(0)
}

// drain closes connections that were accepted but never admitted.
func (r *Relay) drain() {
	for {
		select {
		case ev := <-r.events:
			if ev.kind == evAccepted {
				_ = ev.stream.Close()
			}
		default:
			return
		}
	}
}

// Wait blocks until Run has returned and every session goroutine has stopped.
func (r *Relay) Wait() {
	<-r.done
	r.wg.Wait()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return acceptBackoffMin
	}
	d *= 2
	if d > acceptBackoffMax {
		d = acceptBackoffMax
	}
	return d
}
