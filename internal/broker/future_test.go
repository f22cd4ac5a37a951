package broker

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFutureFirstSettleWins(t *testing.T) {
	f := NewFuture[int]()
	var seen []int
	f.OnComplete(func(v int, err error) { seen = append(seen, v) })

	assert.True(t, f.Complete(1))
	assert.False(t, f.Complete(2))
	assert.False(t, f.Fail(errors.New("late")))

	v, err := f.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, []int{1}, seen)

	f.OnComplete(func(v int, err error) { seen = append(seen, v*10) })
	assert.Equal(t, []int{1, 10}, seen)
}

func TestAllOfFailsFast(t *testing.T) {
	a, b, c := NewFuture[int](), NewFuture[int](), NewFuture[int]()
	all := AllOf([]*Future[int]{a, b, c})

	boom := errors.New("put leg failed")
	b.Fail(boom)

	select {
	case <-all.Done():
	default:
		t.Fatal("join should fail before the other legs settle")
	}
	_, err := all.Result()
	assert.ErrorIs(t, err, boom)

	a.Complete(1)
	c.Fail(errors.New("second failure"))
	_, err = all.Result()
	assert.ErrorIs(t, err, boom)
}

func TestAllOfKeepsInputOrder(t *testing.T) {
	futures := []*Future[int]{NewFuture[int](), NewFuture[int](), NewFuture[int]()}
	all := AllOf(futures)

	futures[2].Complete(3)
	futures[0].Complete(1)
	assert.False(t, all.Settled())
	futures[1].Complete(2)

	v, err := all.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, v)

	empty, err := AllOf[int](nil).Result()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSettleReportsEveryOutcome(t *testing.T) {
	boom := errors.New("boom")
	out := Settle([]*Future[string]{Completed("a"), Failed[string](boom), Completed("c")})

	v, err := out.Wait(t.Context())
	require.NoError(t, err)
	require.Len(t, v, 3)
	assert.Equal(t, "a", v[0].Value)
	assert.ErrorIs(t, v[1].Err, boom)
	assert.Equal(t, "c", v[2].Value)
}

func TestThenAndCompose(t *testing.T) {
	src := NewFuture[int]()
	doubled := Then(src, func(v int) (int, error) { return v * 2, nil })
	text := Compose(doubled, func(v int) *Future[string] { return Completed(strconv.Itoa(v)) })

	src.Complete(21)
	v, err := text.Wait(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "42", v)

	boom := errors.New("boom")
	failed := Compose(Failed[int](boom), func(int) *Future[string] {
		t.Fatal("must not run after a failure")
		return nil
	})
	_, err = failed.Result()
	assert.ErrorIs(t, err, boom)

	rejected := Then(Completed(1), func(int) (int, error) { return 0, boom })
	_, err = rejected.Result()
	assert.ErrorIs(t, err, boom)
}
