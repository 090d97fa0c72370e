//go:build !linux

package platform

import (
	"time"

	"go.uber.org/zap"
)

// localPower tracks wake locks in process. The OS keeps running while the
// application is in the foreground, so no system call is needed.
type localPower struct {
	logger *zap.Logger
}

// NewPower returns the power facility for this OS
func NewPower(logger *zap.Logger) Power {
	return &localPower{logger: logger}
}

func (p *localPower) AcquireWakeLock(tag string, timeout time.Duration) WakeLock {
	return newTimedLock(tag, timeout, p.logger, nil)
}

func (p *localPower) PulseScreen(d time.Duration) {
	ActivateApp()
}

func (p *localPower) IsInteractive() bool {
	return IsAppActive()
}

func (p *localPower) IsLocked() bool {
	return false
}
