package main

import (
	"fmt"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/platform"
	"github.com/borgmon/wakeup/pkg/ringing"
	"github.com/borgmon/wakeup/pkg/ui/components"
	"go.uber.org/zap"
	"golang.design/x/hotkey"
)

// RingWindow is the full-screen window of the ringing alarm. It implements
// ringing.Presenter; the ringer decides when it opens and closes.
type RingWindow struct {
	app       fyne.App
	logger    *zap.Logger
	now       func() time.Time
	onSnooze  func(models.RingParams)
	onDismiss func(alarmID int)

	mu       sync.Mutex
	holdTime time.Duration
	current  *ringScreen
}

var _ ringing.Presenter = (*RingWindow)(nil)

// ringScreen is one presented session
type ringScreen struct {
	sessionID      string
	window         fyne.Window
	stopMonitoring chan struct{}
	stopOnce       sync.Once
}

// NewRingWindow creates the presenter. now supplies the displayed clock and
// follows timezone changes.
func NewRingWindow(app fyne.App, holdTime time.Duration, logger *zap.Logger, now func() time.Time, onSnooze func(models.RingParams), onDismiss func(int)) *RingWindow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &RingWindow{
		app:       app,
		logger:    logger,
		now:       now,
		holdTime:  holdTime,
		onSnooze:  onSnooze,
		onDismiss: onDismiss,
	}
}

func (rw *RingWindow) SetHoldTime(d time.Duration) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.holdTime = d
}

func (rw *RingWindow) Present(sessionID string, params models.RingParams) error {
	if _, ok := rw.app.(desktop.App); !ok {
		return ringing.ErrFullScreenDenied
	}

	rw.mu.Lock()
	prev := rw.current
	screen := &ringScreen{sessionID: sessionID, stopMonitoring: make(chan struct{})}
	rw.current = screen
	hold := rw.holdTime
	rw.mu.Unlock()

	if prev != nil {
		rw.closeScreen(prev)
	}

	platform.ActivateApp()
	fyne.Do(func() {
		screen.window = rw.app.NewWindow("Alarm")
		screen.window.SetFullScreen(true)
		// Only Snooze and Dismiss end the ring
		screen.window.SetCloseIntercept(func() {})
		screen.window.SetContent(rw.buildUI(params, hold))
		screen.window.Show()
		screen.window.RequestFocus()
	})

	rw.registerQuitPrevention(screen)
	rw.setupFocusMonitoring(screen)

	rw.logger.Info("Ring window presented", zap.String("session_id", sessionID), zap.Int("alarm_id", params.AlarmID))
	return nil
}

func (rw *RingWindow) Close(sessionID string) {
	rw.mu.Lock()
	screen := rw.current
	if screen == nil || screen.sessionID != sessionID {
		rw.mu.Unlock()
		return
	}
	rw.current = nil
	rw.mu.Unlock()

	rw.closeScreen(screen)
}

// CloseAll closes whatever is showing
func (rw *RingWindow) CloseAll() {
	rw.mu.Lock()
	screen := rw.current
	rw.current = nil
	rw.mu.Unlock()

	if screen != nil {
		rw.closeScreen(screen)
	}
}

func (rw *RingWindow) closeScreen(screen *ringScreen) {
	screen.stopOnce.Do(func() {
		close(screen.stopMonitoring)
	})
	fyne.Do(func() {
		if screen.window != nil {
			screen.window.Close()
		}
	})
}

func (rw *RingWindow) buildUI(params models.RingParams, hold time.Duration) fyne.CanvasObject {
	clock := canvas.NewText(rw.now().Format("15:04"), nil)
	clock.TextSize = 96
	clock.TextStyle.Bold = true
	clock.Alignment = fyne.TextAlignCenter

	title := canvas.NewText(params.Label, nil)
	title.TextSize = 32
	title.Alignment = fyne.TextAlignCenter

	holdSeconds := int(hold.Round(time.Second) / time.Second)

	snoozeButton := components.NewHoldButton(
		fmt.Sprintf("Snooze %dm (Hold %ds)", params.SnoozeMinutes, holdSeconds), hold,
		func() { rw.onSnooze(params) })
	dismissButton := components.NewHoldButton(
		fmt.Sprintf("Dismiss (Hold %ds)", holdSeconds), hold,
		func() { rw.onDismiss(params.AlarmID) })

	content := container.NewVBox(
		container.NewPadded(clock),
		container.NewPadded(title),
		widget.NewSeparator(),
		container.NewHBox(snoozeButton, dismissButton),
	)

	return container.NewPadded(container.NewCenter(content))
}

func (rw *RingWindow) registerQuitPrevention(screen *ringScreen) {
	go func() {
		hk := hotkey.New(quitModifiers, hotkey.KeyQ)
		if err := hk.Register(); err != nil {
			rw.logger.Warn("Failed to register quit hotkey prevention", zap.Error(err))
			return
		}
		defer hk.Unregister()

		// Consume quit presses so the app keeps ringing
		for {
			select {
			case <-screen.stopMonitoring:
				return
			case _, ok := <-hk.Keydown():
				if !ok {
					return
				}
				rw.logger.Info("Quit blocked, use Snooze or Dismiss")
			}
		}
	}()
}

func (rw *RingWindow) setupFocusMonitoring(screen *ringScreen) {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-screen.stopMonitoring:
				return
			case <-ticker.C:
				// Bring the window back if another app took the front
				if !platform.IsAppActive() {
					rw.logger.Debug("Ring window not active, bringing to front")
					platform.ActivateApp()
					fyne.Do(func() {
						if screen.window != nil {
							screen.window.Show()
							screen.window.RequestFocus()
						}
					})
				}
			}
		}
	}()
}
