package looper

import (
	"container/heap"
	"time"
)

// Manual is a Looper driven by virtual time. Nothing runs until the test calls
// RunPending or Advance, and both run tasks on the calling goroutine.
type Manual struct {
	now time.Time
	seq int
	q   taskQueue
}

var _ Looper = (*Manual)(nil)

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	return m.now
}

func (m *Manual) Post(fn func()) {
	m.push(m.now, fn)
}

func (m *Manual) PostDelayed(d time.Duration, fn func()) func() {
	if d < 0 {
		d = 0
	}
	t := m.push(m.now.Add(d), fn)
	return func() { t.cancelled = true }
}

// RunPending runs every task due at the current virtual time
func (m *Manual) RunPending() {
	m.Advance(0)
}

// Advance moves virtual time forward by d, running due tasks in order.
// Tasks posted while advancing run too when they fall inside the window.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for len(m.q) > 0 && !m.q[0].at.After(target) {
		t := heap.Pop(&m.q).(*task)
		if t.at.After(m.now) {
			m.now = t.at
		}
		if !t.cancelled {
			t.fn()
		}
	}
	m.now = target
}

// Pending counts tasks that are queued and not cancelled
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.q {
		if !t.cancelled {
			n++
		}
	}
	return n
}

func (m *Manual) push(at time.Time, fn func()) *task {
	m.seq++
	t := &task{at: at, seq: m.seq, fn: fn}
	heap.Push(&m.q, t)
	return t
}

type task struct {
	at        time.Time
	seq       int
	fn        func()
	cancelled bool
}

type taskQueue []*task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) { *q = append(*q, x.(*task)) }

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return t
}
