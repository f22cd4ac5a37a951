// Package brokertest provides an in-memory gateway connection for tests.
package brokertest

import (
	"context"
	"errors"
	"io"
	"sync"

	"optionsql/internal/broker"
)

var ErrDialRefused = errors.New("brokertest: dial refused")

// Responder scripts the gateway's answer to one outbound request.
type Responder func(out broker.Outbound) []broker.Event

// Conn is a broker.Conn whose inbound events are pushed by the test.
type Conn struct {
	events  chan broker.Event
	dropped chan struct{}
	closed  chan struct{}

	dropOnce  sync.Once
	closeOnce sync.Once

	mu       sync.Mutex
	dropErr  error
	writeErr error
	sent     []broker.Outbound
	respond  Responder
}

// NewConn returns an open connection. respond may be nil.
func NewConn(respond Responder) *Conn {
	return &Conn{
		events:  make(chan broker.Event, 4096),
		dropped: make(chan struct{}),
		closed:  make(chan struct{}),
		respond: respond,
	}
}

func (c *Conn) Read() (broker.Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-c.dropped:
		c.mu.Lock()
		defer c.mu.Unlock()
		return nil, c.dropErr
	case <-c.closed:
		return nil, io.EOF
	}
}

func (c *Conn) Write(out broker.Outbound) error {
	c.mu.Lock()
	if c.writeErr != nil {
		err := c.writeErr
		c.mu.Unlock()
		return err
	}
	c.sent = append(c.sent, out)
	respond := c.respond
	c.mu.Unlock()

	if respond != nil {
		c.Push(respond(out)...)
	}
	return nil
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Push delivers events to the reader in order.
func (c *Conn) Push(evs ...broker.Event) {
	for _, ev := range evs {
		select {
		case c.events <- ev:
		case <-c.closed:
			return
		}
	}
}

// Drop makes the next Read fail with err, as a lost transport would.
func (c *Conn) Drop(err error) {
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	c.dropOnce.Do(func() {
		c.mu.Lock()
		c.dropErr = err
		c.mu.Unlock()
		close(c.dropped)
	})
}

// FailWrites makes every later Write return err.
func (c *Conn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Sent returns the requests written so far.
func (c *Conn) Sent() []broker.Outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]broker.Outbound, len(c.sent))
	copy(out, c.sent)
	return out
}

// IsClosed reports whether the session closed the connection.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Dialer hands out a fresh Conn per dial.
type Dialer struct {
	// Respond is installed on every connection.
	Respond Responder
	// FailFirst refuses that many dials before succeeding.
	FailFirst int

	mu    sync.Mutex
	dials int
	conns []*Conn
}

func (d *Dialer) Dial(ctx context.Context) (broker.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.FailFirst {
		return nil, ErrDialRefused
	}
	c := NewConn(d.Respond)
	d.conns = append(d.conns, c)
	return c, nil
}

// Dials reports how many dials were attempted.
func (d *Dialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

// Last returns the most recent connection, or nil.
func (d *Dialer) Last() *Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}
