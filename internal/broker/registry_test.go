package broker

import (
	"errors"
	"testing"
	"time"

	"optionsql/internal/obs"
	"optionsql/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryResolvesOnce(t *testing.T) {
	metrics := obs.NewMetrics()
	r := NewRegistry(nil, metrics)

	var failed, released int
	pending, err := r.Register(7, Listener{Failed: func(error) { failed++ }}, func() { released++ })
	require.NoError(t, err)

	boom := errors.New("boom")
	assert.True(t, r.Resolve(7, boom))
	assert.False(t, r.Resolve(7, nil))
	assert.False(t, r.Resolve(7, boom))

	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, released)
	assert.Equal(t, 0, r.Len())
	assert.ErrorIs(t, pending.Err(), boom)
	select {
	case <-pending.Done():
	default:
		t.Fatal("pending not done")
	}

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.Failed)
	assert.Equal(t, uint64(0), snap.Completed)
}

func TestRegistrySuccessSkipsFailed(t *testing.T) {
	r := NewRegistry(nil, nil)
	called := false
	pending, err := r.Register(1, Listener{Failed: func(error) { called = true }}, nil)
	require.NoError(t, err)

	require.True(t, r.Resolve(1, nil))
	assert.False(t, called)
	require.NoError(t, pending.Wait(t.Context()))
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	r := NewRegistry(nil, nil)
	_, err := r.Register(3, Listener{}, nil)
	require.NoError(t, err)
	_, err = r.Register(3, Listener{}, nil)
	assert.ErrorIs(t, err, exception.ErrDuplicateRequestID)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDrainAllInIDOrder(t *testing.T) {
	r := NewRegistry(nil, nil)

	var calls []string
	for _, id := range []int64{12, 10, 11} {
		name := string(rune('a' + id - 10))
		_, err := r.Register(id, Listener{
			ConnectionClosed: func() { calls = append(calls, name+":closed") },
			Failed: func(err error) {
				if !errors.Is(err, exception.ErrConnectionClosed) {
					t.Fatalf("unexpected failure cause: %v", err)
				}
				calls = append(calls, name+":failed")
			},
		}, func() { calls = append(calls, name+":release") })
		require.NoError(t, err)
	}

	assert.Equal(t, 3, r.DrainAll(exception.ErrConnectionClosed))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, []string{
		"a:closed", "a:failed", "a:release",
		"b:closed", "b:failed", "b:release",
		"c:closed", "c:failed", "c:release",
	}, calls)
	assert.Equal(t, 0, r.DrainAll(exception.ErrConnectionClosed))
}

func TestRegistryDrainWithoutConnectionLossSkipsClosedHook(t *testing.T) {
	r := NewRegistry(nil, nil)
	closed := false
	_, err := r.Register(1, Listener{ConnectionClosed: func() { closed = true }}, nil)
	require.NoError(t, err)

	r.DrainAll(exception.ErrRequestTimeout)
	assert.False(t, closed)
}

func TestRegistryStopsTimerOnResolve(t *testing.T) {
	r := NewRegistry(nil, nil)
	_, err := r.Register(1, Listener{}, nil)
	require.NoError(t, err)

	timer := time.AfterFunc(time.Hour, func() {})
	r.arm(1, timer)
	r.Resolve(1, nil)
	assert.False(t, timer.Stop(), "timer should already be stopped")

	late := time.AfterFunc(time.Hour, func() {})
	r.arm(99, late)
	assert.False(t, late.Stop(), "arming an unknown id stops the timer")
}
