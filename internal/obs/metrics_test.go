package obs

import (
	"sync"
	"testing"
	"time"
)

func TestLatencyStatsMinMaxAvg(t *testing.T) {
	var l LatencyStats
	for _, d := range []time.Duration{30 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond} {
		l.Observe(d)
	}
	l.Observe(-time.Second)

	snap := l.Snapshot()
	if snap.Count != 3 {
		t.Fatalf("count mismatch: got %d want 3", snap.Count)
	}
	if snap.Min != 10*time.Millisecond || snap.Max != 30*time.Millisecond {
		t.Fatalf("min/max mismatch: got %v/%v", snap.Min, snap.Max)
	}
	if snap.Avg != 20*time.Millisecond {
		t.Fatalf("avg mismatch: got %v", snap.Avg)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.ObserveEvent(2)
	m.ObserveEvent(2)
	m.ObserveEvent(MaxEventKinds + 1)
	m.IncDispatched()
	m.ObserveResolution(time.Millisecond, false)
	m.ObserveResolution(time.Millisecond, true)
	m.SetQueueDepth(3, 7)

	snap := m.Snapshot()
	if snap.Events[2] != 2 || len(snap.Events) != 1 {
		t.Fatalf("events mismatch: %+v", snap.Events)
	}
	if snap.Completed != 1 || snap.Failed != 1 || snap.Dispatched != 1 {
		t.Fatalf("counters mismatch: %+v", snap)
	}
	if snap.InFlight != 3 || snap.Waiting != 7 {
		t.Fatalf("gauges mismatch: %+v", snap)
	}
}

func TestSequenceConcurrentUnique(t *testing.T) {
	seq := NewSequence(100)
	const n = 1000
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range n / 10 {
				ids <- seq.Next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]struct{}, n)
	for id := range ids {
		if id <= 100 {
			t.Fatalf("id %d not after seed", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = struct{}{}
	}
	if seq.Last() != 100+n {
		t.Fatalf("last mismatch: got %d", seq.Last())
	}
}
