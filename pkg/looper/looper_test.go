package looper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualOrdering(t *testing.T) {
	start := time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var got []string
	m.PostDelayed(200*time.Millisecond, func() { got = append(got, "b") })
	m.PostDelayed(100*time.Millisecond, func() {
		got = append(got, "a")
		m.PostDelayed(50*time.Millisecond, func() { got = append(got, "a2") })
	})
	m.Post(func() { got = append(got, "now") })
	cancel := m.PostDelayed(10*time.Millisecond, func() { got = append(got, "cancelled") })
	cancel()

	m.RunPending()
	assert.Equal(t, []string{"now"}, got)

	m.Advance(175 * time.Millisecond)
	assert.Equal(t, []string{"now", "a", "a2"}, got)
	assert.Equal(t, start.Add(175*time.Millisecond), m.Now())
	assert.Equal(t, 1, m.Pending())

	m.Advance(time.Second)
	assert.Equal(t, []string{"now", "a", "a2", "b"}, got)
	assert.Equal(t, 0, m.Pending())
}

func TestManualTaskSeesItsDueTime(t *testing.T) {
	start := time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var at time.Time
	m.PostDelayed(3*time.Second, func() { at = m.Now() })
	m.Advance(time.Minute)
	assert.Equal(t, start.Add(3*time.Second), at)
}

func TestEventLoopRunsInOrder(t *testing.T) {
	l := NewEventLoop(0)
	require.NoError(t, l.Run(context.Background()))
	defer l.Interrupt()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	l.Sync(func() {})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestEventLoopSelfPostNeverBlocks(t *testing.T) {
	l := NewEventLoop(1)
	require.NoError(t, l.Run(context.Background()))
	defer l.Interrupt()

	var got []int
	done := make(chan struct{})
	l.Post(func() {
		// More self-posts than the initial capacity, from the loop goroutine.
		for i := 0; i < 100; i++ {
			i := i
			l.Post(func() { got = append(got, i) })
		}
		l.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop blocked on its own queue")
	}
	require.Len(t, got, 100)
	assert.Equal(t, 0, got[0])
	assert.Equal(t, 99, got[99])
}

func TestEventLoopPostDelayedCancel(t *testing.T) {
	l := NewEventLoop(0)
	require.NoError(t, l.Run(context.Background()))
	defer l.Interrupt()

	var mu sync.Mutex
	fired := false
	cancel := l.PostDelayed(20*time.Millisecond, func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})
	cancel()
	cancel()

	ran := make(chan struct{})
	l.PostDelayed(40*time.Millisecond, func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed task did not run")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, fired)
}
