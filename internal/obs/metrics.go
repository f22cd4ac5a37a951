package obs

import (
	"sync/atomic"
	"time"
)

// MaxEventKinds bounds the event kind index accepted by ObserveEvent.
const MaxEventKinds = 32

// Metrics collects lightweight counters and latency stats for one session.
type Metrics struct {
	events        [MaxEventKinds]uint64
	dispatched    uint64
	completed     uint64
	failed        uint64
	timeouts      uint64
	sendFailures  uint64
	informational uint64
	unsolicited   uint64
	inFlight      int64
	waiting       int64

	requestLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Events         map[int]uint64
	Dispatched     uint64
	Completed      uint64
	Failed         uint64
	Timeouts       uint64
	SendFailures   uint64
	Informational  uint64
	Unsolicited    uint64
	InFlight       int64
	Waiting        int64
	RequestLatency LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// ObserveEvent counts one decoded event of the given kind.
func (m *Metrics) ObserveEvent(kind int) {
	if m == nil {
		return
	}
	if kind >= 0 && kind < len(m.events) {
		atomic.AddUint64(&m.events[kind], 1)
	}
}

// IncDispatched records a request handed to the wire.
func (m *Metrics) IncDispatched() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.dispatched, 1)
}

// IncSendFailure records a request that failed before reaching the wire.
func (m *Metrics) IncSendFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.sendFailures, 1)
}

// IncTimeout records a request failed by its deadline.
func (m *Metrics) IncTimeout() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.timeouts, 1)
}

// IncInformational records a status notice that was only logged.
func (m *Metrics) IncInformational() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.informational, 1)
}

// IncUnsolicited records an event for an id with no registered request.
func (m *Metrics) IncUnsolicited() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.unsolicited, 1)
}

// ObserveResolution records the terminal outcome of a request and its age.
func (m *Metrics) ObserveResolution(age time.Duration, failed bool) {
	if m == nil {
		return
	}
	if failed {
		atomic.AddUint64(&m.failed, 1)
	} else {
		atomic.AddUint64(&m.completed, 1)
	}
	m.requestLatency.Observe(age)
}

// SetQueueDepth publishes the scheduler gauges.
func (m *Metrics) SetQueueDepth(inFlight, waiting int) {
	if m == nil {
		return
	}
	atomic.StoreInt64(&m.inFlight, int64(inFlight))
	atomic.StoreInt64(&m.waiting, int64(waiting))
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	events := make(map[int]uint64)
	for i := range m.events {
		if v := atomic.LoadUint64(&m.events[i]); v > 0 {
			events[i] = v
		}
	}
	return Snapshot{
		Events:         events,
		Dispatched:     atomic.LoadUint64(&m.dispatched),
		Completed:      atomic.LoadUint64(&m.completed),
		Failed:         atomic.LoadUint64(&m.failed),
		Timeouts:       atomic.LoadUint64(&m.timeouts),
		SendFailures:   atomic.LoadUint64(&m.sendFailures),
		Informational:  atomic.LoadUint64(&m.informational),
		Unsolicited:    atomic.LoadUint64(&m.unsolicited),
		InFlight:       atomic.LoadInt64(&m.inFlight),
		Waiting:        atomic.LoadInt64(&m.waiting),
		RequestLatency: m.requestLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
