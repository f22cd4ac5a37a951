package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"optionsql/internal/bus"
	"optionsql/internal/obs"
	"optionsql/pkg/exception"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

const (
	DefaultOptionExchange = "SMART"
	DefaultInboxSize      = 4096
	DefaultWriteQueueSize = 1024
)

// DefaultInformationalCodes are gateway notices about data-farm status. They
// are logged and never routed to a request.
var DefaultInformationalCodes = []int{2104, 2106, 2158}

// State is the lifecycle state of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is an established gateway connection. Read is called from a single
// goroutine and Write from another.
type Conn interface {
	Read() (Event, error)
	Write(Outbound) error
	Close() error
}

// Dialer opens gateway connections.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// SessionConfig configures a Session. Zero fields take defaults.
type SessionConfig struct {
	MaxInFlight int
	// RequestTimeout fails a request that has not resolved in time. Zero
	// disables timeouts.
	RequestTimeout     time.Duration
	InformationalCodes []int
	// OptionExchange selects which option parameter set completes a discovery.
	OptionExchange string
	InboxSize      int
	WriteQueueSize int
	// IDSeed is the id before the first request id.
	IDSeed int64
	Now    func() time.Time
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = DefaultMaxInFlight
	}
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0
	}
	if c.InformationalCodes == nil {
		c.InformationalCodes = DefaultInformationalCodes
	}
	if c.OptionExchange == "" {
		c.OptionExchange = DefaultOptionExchange
	}
	if c.InboxSize <= 0 {
		c.InboxSize = DefaultInboxSize
	}
	if c.WriteQueueSize <= 0 {
		c.WriteQueueSize = DefaultWriteQueueSize
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type msgKind uint8

const (
	msgEvent msgKind = iota
	msgTimeout
	msgWake
	msgClose
)

type message struct {
	kind  msgKind
	event Event
	id    int64
}

// Session owns one gateway connection and every request issued over it.
//
// A single owning goroutine handles decoded events, timeouts, and dispatch.
// The registry, the id sequence, and listener callbacks are only touched
// there; other goroutines reach it through the inbox.
type Session struct {
	cfg           SessionConfig
	dialer        Dialer
	informational map[int]struct{}

	state    atomic.Int32
	ids      *obs.Sequence
	metrics  *obs.Metrics
	registry *Registry
	sched    *Scheduler
	inbox    *bus.Queue[message]
	outbox   chan Outbound

	ctx    context.Context
	cancel context.CancelFunc
	conn   Conn
	wg     sync.WaitGroup

	errMu sync.Mutex
	err   error
	done  chan struct{}
}

// NewSession creates a disconnected session.
func NewSession(cfg SessionConfig, dialer Dialer) *Session {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:           cfg,
		dialer:        dialer,
		informational: make(map[int]struct{}, len(cfg.InformationalCodes)),
		ids:           obs.NewSequence(cfg.IDSeed),
		metrics:       obs.NewMetrics(),
		inbox:         bus.NewQueue[message](cfg.InboxSize),
		outbox:        make(chan Outbound, cfg.WriteQueueSize),
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	for _, code := range cfg.InformationalCodes {
		s.informational[code] = struct{}{}
	}
	s.registry = NewRegistry(cfg.Now, s.metrics)
	s.sched = NewScheduler(SchedulerConfig{
		MaxInFlight: cfg.MaxInFlight,
		Dispatch:    s.dispatch,
		Wake:        s.wake,
		Depth:       s.metrics.SetQueueDepth,
	})
	return s
}

// Connect dials the gateway and starts the session goroutines. A session
// connects at most once; a failed dial closes it.
func (s *Session) Connect(ctx context.Context) error {
	if s.dialer == nil {
		return exception.ErrNilDialer
	}
	if !s.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		if s.State() == StateClosed {
			return exception.ErrSessionClosed
		}
		return exception.ErrAlreadyConnected
	}

	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		err = errors.Wrap(err, "dial gateway")
		if s.state.CompareAndSwap(int32(StateConnecting), int32(StateClosed)) {
			s.shutdown(err)
		}
		return err
	}

	if !s.state.CompareAndSwap(int32(StateConnecting), int32(StateConnected)) {
		_ = conn.Close()
		return exception.ErrSessionClosed
	}
	s.conn = conn

	s.wg.Add(3)
	go s.readLoop(conn)
	go s.writeLoop(conn)
	go s.run()

	logs.Infof("gateway session connected, max in flight: %d", s.cfg.MaxInFlight)
	return nil
}

// Submit queues a request for dispatch. Requests submitted before Connect
// wait until the session is connected.
func (s *Session) Submit(req Request) error {
	if s.State() == StateClosed {
		return exception.ErrSessionClosed
	}
	if err := s.sched.Enqueue(req); err != nil {
		if errors.Is(err, exception.ErrSchedulerClosed) {
			return exception.ErrSessionClosed
		}
		return err
	}
	return nil
}

// Close shuts the session down, failing every outstanding and waiting
// request. It must not be called from a Listener handler.
func (s *Session) Close() error {
	for {
		switch st := s.State(); st {
		case StateClosed:
			<-s.done
			s.wg.Wait()
			return nil
		case StateDisconnected, StateConnecting:
			if s.state.CompareAndSwap(int32(st), int32(StateClosed)) {
				s.shutdown(exception.ErrSessionClosed)
				return nil
			}
		case StateConnected:
			_ = s.inbox.Publish(context.Background(), message{kind: msgClose})
			<-s.done
			s.wg.Wait()
			return nil
		}
	}
}

// State reports the lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Done is closed once the session has shut down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the session shut down.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Metrics exposes the session counters.
func (s *Session) Metrics() *obs.Metrics {
	return s.metrics
}

func (s *Session) wake() {
	_ = s.inbox.TryPublish(message{kind: msgWake})
}

func (s *Session) post(m message) {
	_ = s.inbox.Publish(s.ctx, m)
}

func (s *Session) readLoop(conn Conn) {
	defer s.wg.Done()
	for {
		ev, err := readEvent(conn)
		if err != nil {
			s.post(message{kind: msgEvent, event: ConnectionClosed{Err: err}})
			return
		}
		if err := s.inbox.Publish(s.ctx, message{kind: msgEvent, event: ev}); err != nil {
			return
		}
	}
}

// readEvent turns a panicking decoder into a dropped connection.
func readEvent(conn Conn) (ev Event, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: read panic: %v", exception.ErrConnectionClosed, r)
		}
	}()
	return conn.Read()
}

func (s *Session) writeLoop(conn Conn) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case out := <-s.outbox:
			if err := conn.Write(out); err != nil {
				s.post(message{kind: msgEvent, event: ConnectionClosed{Err: errors.Wrap(err, "write request")}})
				return
			}
		}
	}
}

func (s *Session) run() {
	defer s.wg.Done()
	s.sched.TryDispatchNext()
	s.inbox.Run(s.ctx, func(m message) {
		s.handle(m)
		s.sched.TryDispatchNext()
	})
}

func (s *Session) handle(m message) {
	switch m.kind {
	case msgEvent:
		s.route(m.event)
	case msgTimeout:
		if s.registry.Resolve(m.id, exception.ErrRequestTimeout) {
			s.metrics.IncTimeout()
			logs.Errorf("request %d timed out after %s", m.id, s.cfg.RequestTimeout)
		}
	case msgClose:
		s.stop(exception.ErrSessionClosed)
	case msgWake:
	}
}

// stop shuts down from the owning goroutine.
func (s *Session) stop(cause error) {
	if State(s.state.Swap(int32(StateClosed))) == StateClosed {
		return
	}
	s.shutdown(cause)
}

// shutdown runs once, after the state became Closed, on the owning goroutine
// or on the caller of Close when the loop never started.
func (s *Session) shutdown(cause error) {
	s.errMu.Lock()
	s.err = cause
	s.errMu.Unlock()

	waiting := s.sched.Close()
	drained := s.registry.DrainAll(exception.ErrConnectionClosed)
	for _, job := range waiting {
		if err := s.sched.dispatch(job); err != nil {
			logs.Errorf("request %q dropped, err: %+v", job.Desc(), err)
		}
	}

	s.inbox.Close()
	s.cancel()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.metrics.SetQueueDepth(0, 0)

	if errors.Is(cause, exception.ErrSessionClosed) {
		logs.Infof("gateway session closed, drained: %d, dropped: %d", drained, len(waiting))
	} else {
		logs.Errorf("gateway session lost, drained: %d, dropped: %d, err: %+v", drained, len(waiting), cause)
	}
	close(s.done)
}

func (s *Session) route(ev Event) {
	s.metrics.ObserveEvent(int(ev.Kind()))

	switch e := ev.(type) {
	case ConnectionClosed:
		cause := e.Err
		if cause == nil {
			cause = exception.ErrConnectionClosed
		}
		s.stop(cause)
		return
	case GatewayError:
		s.routeError(e)
		return
	}

	id := ev.RequestID()
	l, ok := s.registry.Lookup(id)
	if !ok {
		s.metrics.IncUnsolicited()
		return
	}

	switch e := ev.(type) {
	case TickPrice:
		if l.TickPrice != nil && l.TickPrice(e) {
			s.registry.Resolve(id, nil)
		}
	case TickSize:
		if l.TickSize != nil {
			l.TickSize(e)
		}
	case TickGeneric:
		if l.TickGeneric != nil {
			l.TickGeneric(e)
		}
	case HistoricalBar:
		if l.HistoricalBar != nil {
			l.HistoricalBar(e)
		}
	case HistoricalEnd:
		if l.HistoricalEnd != nil {
			l.HistoricalEnd(e)
		}
		s.registry.Resolve(id, nil)
	case ContractDetails:
		if l.ContractDetails != nil {
			l.ContractDetails(e)
		}
		s.registry.Resolve(id, nil)
	case ContractDetailsEnd:
		s.registry.Resolve(id, exception.ErrNoContract)
	case OptionParameters:
		if e.Exchange != s.cfg.OptionExchange {
			return
		}
		if l.OptionParameters != nil {
			l.OptionParameters(e)
		}
		s.registry.Resolve(id, nil)
	case OptionParametersEnd:
		s.registry.Resolve(id, exception.ErrNoOptionParameters)
	case OptionComputation:
		if l.OptionComputation != nil && l.OptionComputation(e) {
			s.registry.Resolve(id, nil)
		}
	case SnapshotEnd:
		s.registry.Resolve(id, exception.ErrSnapshotIncomplete)
	}
}

func (s *Session) routeError(e GatewayError) {
	if _, ok := s.informational[e.Code]; ok {
		s.metrics.IncInformational()
		logs.Infof("gateway notice %d: %s", e.Code, e.Message)
		return
	}

	l, ok := s.registry.Lookup(e.ReqID)
	if !ok {
		s.metrics.IncUnsolicited()
		logs.Errorf("unsolicited gateway error, id: %d, code: %d, msg: %s", e.ReqID, e.Code, e.Message)
		return
	}

	if l.Error != nil {
		l.Error(e)
	}
	s.registry.Resolve(e.ReqID, e)
}
