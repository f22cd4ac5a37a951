// Package backoff spaces out gateway reconnect attempts.
package backoff

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff is an exponential delay schedule: Min grows by Factor per
// consecutive retry up to Max, and each delay is spread by up to ±Jitter of
// itself.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64
}

// Default suits a gateway that restarts daily and may take a minute to
// accept clients again.
func Default() Backoff {
	return Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: 0.2}
}

func (b Backoff) IsZero() bool {
	return b == Backoff{}
}

// Delay returns the wait before retry n, counting from 1.
func (b Backoff) Delay(n int) time.Duration {
	if b.Min <= 0 {
		b.Min = 100 * time.Millisecond
	}
	if b.Max < b.Min {
		b.Max = b.Min
	}
	if b.Factor < 1 {
		b.Factor = 2
	}
	n = max(n, 1)

	d := float64(b.Min) * math.Pow(b.Factor, float64(n-1))
	if math.IsInf(d, 0) || d > float64(b.Max) {
		d = float64(b.Max)
	}
	if j := min(b.Jitter, 1); j > 0 {
		d += d * j * (2*rand.Float64() - 1)
	}
	return time.Duration(d)
}

// Retrier counts consecutive retries against a Backoff. It is not safe for
// concurrent use.
type Retrier struct {
	b Backoff
	n int
}

func (b Backoff) Retrier() *Retrier {
	return &Retrier{b: b}
}

// Attempts returns the number of retries since the last Reset.
func (r *Retrier) Attempts() int {
	return r.n
}

// Reset starts the schedule over after a success.
func (r *Retrier) Reset() {
	r.n = 0
}

// Wait counts one more retry and sleeps for its delay. It returns ctx.Err()
// when ctx ends first.
func (r *Retrier) Wait(ctx context.Context) error {
	r.n++
	timer := time.NewTimer(r.b.Delay(r.n))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
