package platform

import (
	"container/heap"
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/borgmon/wakeup/pkg/models"
	"go.uber.org/zap"
)

// ErrExactDenied is returned by SetExact when the exact-timer permission is missing.
var ErrExactDenied = models.Errorf(models.ErrDenied, "exact wake-ups are not permitted")

const (
	// InexactWindow is the batching granularity of inexact registrations.
	InexactWindow = time.Minute

	// maxSleep bounds how long the run loop trusts its timer. After a suspend
	// the wall clock is re-read within this interval and overdue wake-ups fire.
	maxSleep = 15 * time.Second

	// jumpThreshold is the wall-vs-monotonic drift reported as a clock change.
	jumpThreshold = 5 * time.Second
)

// WakeTimer is the wake-capable timer facility. Registrations are keyed by
// WakeKey; registering an existing key replaces it. A registration is
// removed once it fires.
type WakeTimer interface {
	CanScheduleExact() bool
	SetExact(at time.Time, key models.WakeKey, payload models.WakePayload) error
	SetInexact(at time.Time, key models.WakeKey, payload models.WakePayload) error
	Cancel(key models.WakeKey)
}

// Wake is delivered when a registration fires
type Wake struct {
	Key     models.WakeKey
	At      time.Time // when it was due
	Exact   bool
	Payload models.WakePayload
}

// Registration describes a pending wake-up
type Registration struct {
	Key     models.WakeKey
	At      time.Time
	Exact   bool
	Payload models.WakePayload
}

// TimerService holds wake-up registrations in process and fires them from a
// single run loop.
type TimerService struct {
	Now func() time.Time

	logger *zap.Logger
	exact  atomic.Bool

	mu      sync.Mutex
	q       schedQueue
	byKey   map[models.WakeKey]*schedEntry
	handler func(Wake)
	onJump  func(skew time.Duration)

	kick   chan struct{}
	cancel context.CancelFunc
}

var _ WakeTimer = (*TimerService)(nil)

// NewTimerService creates a timer service. exactAllowed models the exact-timer
// permission tier.
func NewTimerService(exactAllowed bool, logger *zap.Logger) *TimerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &TimerService{
		Now:    time.Now,
		logger: logger,
		byKey:  make(map[models.WakeKey]*schedEntry),
		kick:   make(chan struct{}, 1),
		cancel: func() {},
	}
	s.exact.Store(exactAllowed)
	return s
}

// SetHandler sets the receiver of fired wake-ups
func (s *TimerService) SetHandler(h func(Wake)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
}

// SetClockJumpHandler sets the receiver of wall clock jumps. It is called after
// any registrations made due by the jump have fired.
func (s *TimerService) SetClockJumpHandler(h func(skew time.Duration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onJump = h
}

// SetExactAllowed updates the exact-timer permission
func (s *TimerService) SetExactAllowed(allowed bool) {
	s.exact.Store(allowed)
}

func (s *TimerService) CanScheduleExact() bool {
	return s.exact.Load()
}

func (s *TimerService) SetExact(at time.Time, key models.WakeKey, payload models.WakePayload) error {
	if !s.exact.Load() {
		return ErrExactDenied
	}
	s.register(at, key, payload, true)
	return nil
}

func (s *TimerService) SetInexact(at time.Time, key models.WakeKey, payload models.WakePayload) error {
	s.register(inexactAt(at), key, payload, false)
	return nil
}

// Cancel removes a registration; cancelling an unknown key is a no-op
func (s *TimerService) Cancel(key models.WakeKey) {
	s.mu.Lock()
	e, ok := s.byKey[key]
	if ok {
		heap.Remove(&s.q, e.index)
		delete(s.byKey, key)
	}
	s.mu.Unlock()

	if ok {
		s.wake()
	}
}

// Pending returns the registrations sorted by due time
func (s *TimerService) Pending() []Registration {
	s.mu.Lock()
	defer s.mu.Unlock()

	regs := make([]Registration, 0, len(s.q))
	for _, e := range s.q {
		regs = append(regs, e.registration())
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].At.Before(regs[j].At)
	})
	return regs
}

// Lookup returns the pending registration for key, if any
func (s *TimerService) Lookup(key models.WakeKey) (Registration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byKey[key]
	if !ok {
		return Registration{}, false
	}
	return e.registration(), true
}

func (s *TimerService) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	return nil
}

func (s *TimerService) Interrupt() error {
	s.cancel()
	return nil
}

func (s *TimerService) register(at time.Time, key models.WakeKey, payload models.WakePayload, exact bool) {
	s.mu.Lock()
	if e, ok := s.byKey[key]; ok {
		e.at = at
		e.payload = payload
		e.exact = exact
		heap.Fix(&s.q, e.index)
	} else {
		e := &schedEntry{at: at, key: key, payload: payload, exact: exact}
		heap.Push(&s.q, e)
		s.byKey[key] = e
	}
	s.mu.Unlock()

	s.logger.Debug("Wake-up registered",
		zap.Stringer("key", key),
		zap.Time("trigger_at", at),
		zap.Bool("exact", exact))
	s.wake()
}

func (s *TimerService) wake() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *TimerService) run(ctx context.Context) {
	timer := time.NewTimer(s.sleepFor(s.Now()))
	defer timer.Stop()

	lastWall, lastMono := s.Now(), time.Now()
	for {
		select {
		case <-ctx.Done(): // Operation was canceled.
			return
		case <-s.kick:
		case <-timer.C:
		}

		for _, w := range s.fireDue(s.Now()) {
			s.deliver(w)
		}

		wall := s.Now()
		skew := clockSkew(lastWall, wall, time.Since(lastMono))
		if skew > jumpThreshold || skew < -jumpThreshold {
			s.logger.Info("Wall clock jumped", zap.Duration("skew", skew))
			s.mu.Lock()
			onJump := s.onJump
			s.mu.Unlock()
			if onJump != nil {
				onJump(skew)
			}
		}
		lastWall, lastMono = wall, time.Now()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.sleepFor(s.Now()))
	}
}

// fireDue removes and returns every registration due at or before now, in due order
func (s *TimerService) fireDue(now time.Time) []Wake {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Wake
	for len(s.q) > 0 && !s.q[0].at.After(now) {
		e := heap.Pop(&s.q).(*schedEntry)
		delete(s.byKey, e.key)
		due = append(due, Wake{Key: e.key, At: e.at, Exact: e.exact, Payload: e.payload})
	}
	return due
}

func (s *TimerService) deliver(w Wake) {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()

	s.logger.Info("Wake-up fired", zap.Stringer("key", w.Key), zap.Time("trigger_at", w.At))
	if h == nil {
		s.logger.Warn("No wake handler set, dropping wake-up", zap.Stringer("key", w.Key))
		return
	}
	h(w)
}

func (s *TimerService) sleepFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.q) == 0 {
		return maxSleep
	}
	d := s.q[0].at.Sub(now)
	if d < 0 {
		return 0
	}
	if d > maxSleep {
		return maxSleep
	}
	return d
}

// clockSkew compares elapsed wall time against elapsed monotonic time
func clockSkew(lastWall, wall time.Time, monoElapsed time.Duration) time.Duration {
	return wall.Round(0).Sub(lastWall.Round(0)) - monoElapsed
}

// inexactAt rounds up to the next inexact window boundary
func inexactAt(at time.Time) time.Time {
	t := at.Truncate(InexactWindow)
	if t.Before(at) {
		t = t.Add(InexactWindow)
	}
	return t
}

type schedEntry struct {
	at      time.Time
	key     models.WakeKey
	payload models.WakePayload
	exact   bool
	index   int
}

func (e *schedEntry) registration() Registration {
	return Registration{Key: e.key, At: e.at, Exact: e.exact, Payload: e.payload}
}

type schedQueue []*schedEntry

var _ heap.Interface = (*schedQueue)(nil)

func (q schedQueue) Len() int {
	return len(q)
}

func (q schedQueue) Less(i, j int) bool {
	return q[i].at.Before(q[j].at)
}

func (q schedQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *schedQueue) Push(x any) {
	e := x.(*schedEntry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *schedQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.index = -1
	*q = old[:n-1]
	return it
}
