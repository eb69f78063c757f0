package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *Scheduler {
	s, err := New(10*time.Millisecond, nil)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s
}

func TestAfterFiresOnce(t *testing.T) {
	s := newTestScheduler(t)
	var n atomic.Int32
	_, err := s.After(20*time.Millisecond, func() { n.Add(1) })
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), n.Load())
	assert.Equal(t, 0, s.Pending())
}

func TestCancelBeforeFire(t *testing.T) {
	s := newTestScheduler(t)
	var n atomic.Int32
	id, err := s.After(200*time.Millisecond, func() { n.Add(1) })
	require.NoError(t, err)
	assert.NotZero(t, id)

	assert.True(t, s.Cancel(id))
	assert.False(t, s.Cancel(id), "second cancel is a no-op")
	time.Sleep(300 * time.Millisecond)
	assert.Zero(t, n.Load())
}

func TestEveryStopsWhenFnReturnsFalse(t *testing.T) {
	s := newTestScheduler(t)
	var n atomic.Int32
	_, err := s.Every(10*time.Millisecond, func() bool { return n.Add(1) < 3 })
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return n.Load() == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(3), n.Load())
}

func TestScheduleAfterShutdown(t *testing.T) {
	s, err := New(10*time.Millisecond, nil)
	require.NoError(t, err)
	s.Shutdown()
	_, err = s.After(time.Millisecond, func() {})
	assert.ErrorIs(t, err, ErrStopped)
}
