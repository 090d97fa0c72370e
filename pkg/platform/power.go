package platform

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// WakeLock keeps the CPU awake until released or until its ceiling expires
type WakeLock interface {
	Release()
	Held() bool
}

// Power is the device power facility used while ringing
type Power interface {
	// AcquireWakeLock keeps the CPU awake for at most timeout.
	AcquireWakeLock(tag string, timeout time.Duration) WakeLock
	// PulseScreen turns the display on for d.
	PulseScreen(d time.Duration)
	// IsInteractive reports whether the user is currently looking at the device.
	IsInteractive() bool
	// IsLocked reports whether the session is locked.
	IsLocked() bool
}

// timedLock releases itself after a ceiling. Release is idempotent.
type timedLock struct {
	tag     string
	logger  *zap.Logger
	release func()

	mu    sync.Mutex
	held  bool
	timer *time.Timer
}

func newTimedLock(tag string, timeout time.Duration, logger *zap.Logger, release func()) *timedLock {
	l := &timedLock{tag: tag, logger: logger, release: release, held: true}
	l.timer = time.AfterFunc(timeout, func() {
		logger.Warn("Wake lock ceiling reached", zap.String("tag", tag), zap.Duration("timeout", timeout))
		l.Release()
	})
	logger.Debug("Wake lock acquired", zap.String("tag", tag), zap.Duration("timeout", timeout))
	return l
}

func (l *timedLock) Release() {
	l.mu.Lock()
	if !l.held {
		l.mu.Unlock()
		return
	}
	l.held = false
	l.timer.Stop()
	l.mu.Unlock()

	if l.release != nil {
		l.release()
	}
	l.logger.Debug("Wake lock released", zap.String("tag", l.tag))
}

func (l *timedLock) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}
