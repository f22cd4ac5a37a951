package collect

import (
	"context"
	"sync"

	"optionsql/internal/broker"
	"optionsql/pkg/backoff"
	"optionsql/pkg/exception"

	"github.com/yanun0323/logs"
)

// Supervisor keeps one gateway session alive, dialing a fresh session with
// backoff whenever the previous one ends. Requests in flight on a dropped
// session fail; they are not replayed.
type Supervisor struct {
	cfg     broker.SessionConfig
	dialer  broker.Dialer
	backoff backoff.Backoff

	mu      sync.Mutex
	session *broker.Session
	ready   chan struct{}
}

// NewSupervisor creates a Supervisor. A zero backoff uses backoff.Default.
func NewSupervisor(cfg broker.SessionConfig, dialer broker.Dialer, bo backoff.Backoff) (*Supervisor, error) {
	if dialer == nil {
		return nil, exception.ErrNilDialer
	}
	if bo.IsZero() {
		bo = backoff.Default()
	}
	return &Supervisor{
		cfg:     cfg,
		dialer:  dialer,
		backoff: bo,
		ready:   make(chan struct{}),
	}, nil
}

// Run connects and reconnects until ctx is done, then closes the live
// session and returns ctx.Err().
func (s *Supervisor) Run(ctx context.Context) error {
	retry := s.backoff.Retrier()
	for {
		sess := broker.NewSession(s.cfg, s.dialer)
		if err := sess.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logs.Errorf("connect gateway failed, attempt: %d, err: %+v", retry.Attempts()+1, err)
			if err := retry.Wait(ctx); err != nil {
				return err
			}
			continue
		}

		retry.Reset()
		s.publish(sess)

		select {
		case <-ctx.Done():
			s.publish(nil)
			_ = sess.Close()
			return ctx.Err()
		case <-sess.Done():
			s.publish(nil)
			logs.Errorf("gateway session ended, err: %+v", sess.Err())
		}

		if err := retry.Wait(ctx); err != nil {
			return err
		}
	}
}

func (s *Supervisor) publish(sess *broker.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = sess
	if sess != nil {
		close(s.ready)
		return
	}
	select {
	case <-s.ready:
		s.ready = make(chan struct{})
	default:
	}
}

// Submit queues req on the live session. It fails with ErrNotConnected
// while the supervisor is between sessions.
func (s *Supervisor) Submit(req broker.Request) error {
	sess := s.Session()
	if sess == nil {
		return exception.ErrNotConnected
	}
	return sess.Submit(req)
}

// Session returns the live session, or nil.
func (s *Supervisor) Session() *broker.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// WaitReady blocks until a session is connected or ctx is done.
func (s *Supervisor) WaitReady(ctx context.Context) error {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
