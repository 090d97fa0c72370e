//go:build linux

package platform

import (
	"os"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	login1Dest   = "org.freedesktop.login1"
	login1Path   = "/org/freedesktop/login1"
	login1Method = "org.freedesktop.login1.Manager.Inhibit"

	screenSaverDest  = "org.freedesktop.ScreenSaver"
	screenSaverPath  = "/org/freedesktop/ScreenSaver"
	screenSaverIface = "org.freedesktop.ScreenSaver"
)

// dbusPower holds logind sleep inhibitors and pokes the session screensaver.
// Every call degrades to a logged no-op when the bus is unavailable.
type dbusPower struct {
	logger *zap.Logger

	mu      sync.Mutex
	system  *dbus.Conn
	session *dbus.Conn
}

// NewPower returns the power facility for this OS
func NewPower(logger *zap.Logger) Power {
	return &dbusPower{logger: logger}
}

func (p *dbusPower) systemBus() *dbus.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.system == nil {
		conn, err := dbus.SystemBus()
		if err != nil {
			p.logger.Warn("System bus unavailable", zap.Error(err))
			return nil
		}
		p.system = conn
	}
	return p.system
}

func (p *dbusPower) sessionBus() *dbus.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		conn, err := dbus.SessionBus()
		if err != nil {
			p.logger.Warn("Session bus unavailable", zap.Error(err))
			return nil
		}
		p.session = conn
	}
	return p.session
}

func (p *dbusPower) AcquireWakeLock(tag string, timeout time.Duration) WakeLock {
	var release func()
	if conn := p.systemBus(); conn != nil {
		var fd dbus.UnixFD
		err := conn.Object(login1Dest, login1Path).
			Call(login1Method, 0, "sleep:idle", "wakeup", tag, "block").
			Store(&fd)
		if err != nil {
			p.logger.Warn("Failed to take sleep inhibitor", zap.String("tag", tag), zap.Error(err))
		} else {
			// The inhibitor lasts as long as the descriptor is open.
			f := os.NewFile(uintptr(fd), "inhibit-"+tag)
			release = func() { f.Close() }
		}
	}
	return newTimedLock(tag, timeout, p.logger, release)
}

func (p *dbusPower) PulseScreen(d time.Duration) {
	conn := p.sessionBus()
	if conn == nil {
		return
	}
	obj := conn.Object(screenSaverDest, screenSaverPath)
	if call := obj.Call(screenSaverIface+".SimulateUserActivity", 0); call.Err != nil {
		p.logger.Debug("SimulateUserActivity failed", zap.Error(call.Err))
	}

	var cookie uint32
	if err := obj.Call(screenSaverIface+".Inhibit", 0, "wakeup", "alarm ringing").Store(&cookie); err != nil {
		p.logger.Debug("Screen inhibit failed", zap.Error(err))
		return
	}
	time.AfterFunc(d, func() {
		if call := obj.Call(screenSaverIface+".UnInhibit", 0, cookie); call.Err != nil {
			p.logger.Debug("Screen uninhibit failed", zap.Error(call.Err))
		}
	})
}

func (p *dbusPower) IsLocked() bool {
	conn := p.sessionBus()
	if conn == nil {
		return false
	}
	var active bool
	err := conn.Object(screenSaverDest, screenSaverPath).
		Call(screenSaverIface+".GetActive", 0).
		Store(&active)
	if err != nil {
		return false
	}
	return active
}

func (p *dbusPower) IsInteractive() bool {
	return !p.IsLocked() && IsAppActive()
}
