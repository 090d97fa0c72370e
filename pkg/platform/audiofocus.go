package platform

import (
	"sync"

	"go.uber.org/zap"
)

// FocusChange is delivered to focus holders when ownership moves
type FocusChange int

const (
	FocusGain FocusChange = iota
	FocusLossTransient
	FocusLoss
)

func (c FocusChange) String() string {
	switch c {
	case FocusGain:
		return "gain"
	case FocusLossTransient:
		return "loss_transient"
	case FocusLoss:
		return "loss"
	default:
		return "unknown"
	}
}

// FocusMode is the kind of focus requested
type FocusMode int

const (
	// FocusTransientExclusive pauses the current owner until abandoned.
	FocusTransientExclusive FocusMode = iota
	// FocusPermanent evicts every current holder.
	FocusPermanent
)

type FocusListener func(FocusChange)

// FocusGrant is a holder's handle on audio focus
type FocusGrant struct {
	Granted bool

	arbiter *FocusArbiter
	id      int
	once    sync.Once
}

// Abandon gives focus back. Safe to call more than once.
func (g *FocusGrant) Abandon() {
	if g == nil || g.arbiter == nil {
		return
	}
	g.once.Do(func() { g.arbiter.abandon(g.id) })
}

type focusHolder struct {
	id       int
	listener FocusListener
}

// FocusArbiter arbitrates audio focus between in-process players. The holder
// on top of the stack owns focus; the ones beneath are transiently paused.
type FocusArbiter struct {
	logger *zap.Logger

	mu      sync.Mutex
	holders []focusHolder
	nextID  int
}

func NewFocusArbiter(logger *zap.Logger) *FocusArbiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FocusArbiter{logger: logger}
}

// Request grants focus to listener and notifies the previous owners.
// Listeners are invoked outside the arbiter lock.
func (a *FocusArbiter) Request(mode FocusMode, listener FocusListener) *FocusGrant {
	a.mu.Lock()
	a.nextID++
	id := a.nextID

	type notice struct {
		l FocusListener
		c FocusChange
	}
	var notices []notice
	switch mode {
	case FocusPermanent:
		for _, h := range a.holders {
			notices = append(notices, notice{h.listener, FocusLoss})
		}
		a.holders = a.holders[:0]
	default:
		if n := len(a.holders); n > 0 {
			notices = append(notices, notice{a.holders[n-1].listener, FocusLossTransient})
		}
	}
	a.holders = append(a.holders, focusHolder{id: id, listener: listener})
	a.mu.Unlock()

	a.logger.Debug("Audio focus granted", zap.Int("holder", id), zap.Int("mode", int(mode)))
	for _, n := range notices {
		if n.l != nil {
			n.l(n.c)
		}
	}
	return &FocusGrant{Granted: true, arbiter: a, id: id}
}

// Holder reports the id of the current owner, or zero when nobody holds focus
func (a *FocusArbiter) Holder() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.holders) == 0 {
		return 0
	}
	return a.holders[len(a.holders)-1].id
}

func (a *FocusArbiter) abandon(id int) {
	a.mu.Lock()
	idx := -1
	for i, h := range a.holders {
		if h.id == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		a.mu.Unlock()
		return
	}
	wasTop := idx == len(a.holders)-1
	a.holders = append(a.holders[:idx], a.holders[idx+1:]...)

	var resumed FocusListener
	if wasTop && len(a.holders) > 0 {
		resumed = a.holders[len(a.holders)-1].listener
	}
	a.mu.Unlock()

	a.logger.Debug("Audio focus abandoned", zap.Int("holder", id))
	if resumed != nil {
		resumed(FocusGain)
	}
}
