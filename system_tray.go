package main

import (
	"fmt"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"github.com/borgmon/wakeup/pkg/alarms"
	"github.com/borgmon/wakeup/pkg/ringing"
	"go.uber.org/zap"
)

const upcomingLimit = 5

// trayNotifier is the persistent ringing notification: while an alarm rings
// the tray menu carries its Snooze and Dismiss actions
type trayNotifier struct {
	w *WakeUp

	mu      sync.Mutex
	ringing *ringing.Notification
}

var _ ringing.Notifier = (*trayNotifier)(nil)

func newTrayNotifier(w *WakeUp) *trayNotifier {
	return &trayNotifier{w: w}
}

func (t *trayNotifier) Post(n ringing.Notification) error {
	t.mu.Lock()
	t.ringing = &n
	t.mu.Unlock()

	if n.HeadsUp {
		t.w.app.SendNotification(fyne.NewNotification(n.Params.Label,
			fmt.Sprintf("Alarm ringing at %s", time.Now().Format("15:04"))))
	}
	t.Refresh()
	return nil
}

func (t *trayNotifier) Remove(sessionID string) {
	t.mu.Lock()
	if t.ringing == nil || t.ringing.SessionID != sessionID {
		t.mu.Unlock()
		return
	}
	t.ringing = nil
	t.mu.Unlock()
	t.Refresh()
}

func (t *trayNotifier) current() *ringing.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ringing == nil {
		return nil
	}
	n := *t.ringing
	return &n
}

// Refresh rebuilds the tray menu on the UI thread
func (t *trayNotifier) Refresh() {
	fyne.Do(t.w.updateSystemTrayMenu)
}

func (w *WakeUp) updateSystemTrayMenu() {
	desk, ok := w.app.(desktop.App)
	if !ok {
		return
	}
	menuItems := []*fyne.MenuItem{}

	// Ringing section at the top
	if n := w.notifier.current(); n != nil {
		header := fyne.NewMenuItem(fmt.Sprintf("Ringing: %s", truncateString(n.Params.Label, 35)), nil)
		header.Disabled = true
		params := n.Params
		menuItems = append(menuItems,
			header,
			fyne.NewMenuItem(fmt.Sprintf("Snooze %d min", params.SnoozeMinutes), func() {
				w.onSnooze(params)
			}),
			fyne.NewMenuItem("Dismiss", func() {
				w.onDismiss(params.AlarmID)
			}),
			fyne.NewMenuItemSeparator(),
		)
	}

	// Upcoming alarms for the rest of today
	upcoming := w.upcomingToday(upcomingLimit)
	if len(upcoming) > 0 {
		headerItem := fyne.NewMenuItem("Upcoming Today:", nil)
		headerItem.Disabled = true
		menuItems = append(menuItems, headerItem)

		for _, u := range upcoming {
			item := fyne.NewMenuItem(fmt.Sprintf("  %s - %s",
				u.At.Format("15:04"),
				truncateString(u.Alarm.Label, 35)), nil)
			item.Disabled = true
			menuItems = append(menuItems, item)
		}
		menuItems = append(menuItems, fyne.NewMenuItemSeparator())
	}

	menuItems = append(menuItems,
		fyne.NewMenuItem("Alarms", w.showAlarmsWindow),
		fyne.NewMenuItem("Settings", w.showSettingsWindow),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", w.quit),
	)

	desk.SetSystemTrayMenu(fyne.NewMenu("Wake Up", menuItems...))
	desk.SetSystemTrayIcon(theme.HistoryIcon())
	w.logger.Debug("Tray menu updated", zap.Int("upcoming", len(upcoming)))
}

// upcomingToday returns the next enabled alarms due before midnight
func (w *WakeUp) upcomingToday(limit int) []alarms.Upcoming {
	now := w.zone.Now()
	y, m, d := now.Date()
	end := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())

	var out []alarms.Upcoming
	for _, u := range w.alarms.Upcoming(now) {
		if !u.At.Before(end) || len(out) >= limit {
			break
		}
		out = append(out, u)
	}
	return out
}

// truncateString truncates a string to maxLen runes, adding "..." if needed
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
