package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/borgmon/wakeup/pkg/alarms"
	"github.com/borgmon/wakeup/pkg/audio"
	"github.com/borgmon/wakeup/pkg/dispatcher"
	"github.com/borgmon/wakeup/pkg/history"
	"github.com/borgmon/wakeup/pkg/logger"
	"github.com/borgmon/wakeup/pkg/looper"
	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/platform"
	"github.com/borgmon/wakeup/pkg/ringing"
	"github.com/borgmon/wakeup/pkg/scheduler"
	"github.com/borgmon/wakeup/pkg/sounds"
	"github.com/borgmon/wakeup/pkg/store"
	"go.uber.org/zap"
)

const (
	appID          = "com.borgmon.wakeup"
	journalFile    = "history.db"
	journalKeep    = 90 * 24 * time.Hour
	previewAlarmID = -1
)

type WakeUp struct {
	app    fyne.App
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	configStore *store.ConfigStore
	alarmStore  *store.AlarmStore
	alarms      *alarms.Manager
	sounds      *alarms.SoundLibrary

	zone       *platform.Zone
	power      platform.Power
	timers     *platform.TimerService
	clock      *platform.ClockWatcher
	sched      *scheduler.Scheduler
	loop       *looper.EventLoop
	ringer     *ringing.Ringer
	journal    *history.Journal
	dispatcher *dispatcher.Dispatcher

	ringWindow     *RingWindow
	notifier       *trayNotifier
	settingsWindow *SettingsWindow
	alarmsWindow   *AlarmsWindow

	mu     sync.Mutex
	config *models.Config
}

func main() {
	w := &WakeUp{app: app.NewWithID(appID)}

	if err := w.initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "wakeup: %v\n", err)
		os.Exit(1)
	}

	w.run()
}

func (w *WakeUp) initialize() error {
	prefs := w.app.Preferences()
	w.configStore = store.NewConfigStore(prefs)
	w.config = w.configStore.Load()

	level, format := logger.FromEnv(w.config.LogLevel, w.config.LogFormat)
	log, err := logger.NewLogger(level, format, "wakeup")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	w.logger = log
	w.ctx, w.cancel = context.WithCancel(context.Background())

	// Sync autostart state with config on startup
	if err := setupAutostart(w.config.AutoStart, w.logger); err != nil {
		w.logger.Warn("Failed to setup autostart", zap.Error(err))
	}

	w.zone = platform.NewZone(time.Local)
	w.power = platform.NewPower(w.logger.Named("power"))
	w.timers = platform.NewTimerService(w.config.ExactAlarms, w.logger.Named("timer"))
	w.sched = scheduler.New(w.timers, w.zone.Now, w.logger.Named("scheduler"))

	w.alarmStore = store.NewAlarmStore(prefs, w.logger.Named("store"))
	w.alarms = alarms.New(w.alarmStore, w.sched, w.logger.Named("alarms"))

	registry := sounds.NewRegistry()
	w.sounds = alarms.NewSoundLibrary(registry, w.configStore, w.logger.Named("sounds"))

	w.notifier = newTrayNotifier(w)
	w.ringWindow = NewRingWindow(w.app, w.holdTime(), w.logger.Named("ring_window"), w.zone.Now, w.onSnooze, w.onDismiss)

	w.loop = looper.NewEventLoop(0)
	w.ringer = ringing.New(w.loop, ringing.Deps{
		Power:     w.power,
		Notifier:  w.notifier,
		Presenter: w.ringWindow,
		Focus:     platform.NewFocusArbiter(w.logger.Named("focus")),
		Engine:    audio.NewOtoEngine(w.logger.Named("audio")),
		Vibrator:  platform.NewLogVibrator(w.logger.Named("vibrator")),
		Sounds:    registry,
	}, ringing.OptionsFromConfig(w.config), w.logger.Named("ringer"))

	var journal dispatcher.Journal
	if j, err := w.openJournal(); err != nil {
		w.logger.Warn("Ring journal unavailable, history will not be kept", zap.Error(err))
	} else {
		w.journal = j
		journal = j
	}

	w.dispatcher = dispatcher.New(w.alarms, w.sched, w.ringer, journal, w.zone.Now, w.logger.Named("dispatcher"))

	w.timers.SetHandler(func(wake platform.Wake) {
		w.dispatcher.Dispatch(w.ctx, dispatcher.FromWake(wake.Payload))
	})
	w.timers.SetClockJumpHandler(func(skew time.Duration) {
		w.logger.Info("Wall clock changed", zap.Duration("skew", skew))
		w.dispatcher.Dispatch(w.ctx, dispatcher.Event{Kind: dispatcher.TimeChanged})
	})
	w.clock = platform.NewClockWatcher(platform.DefaultLocaltimePath, w.zone, w.logger.Named("clock"), func(loc *time.Location) {
		w.dispatcher.Dispatch(w.ctx, dispatcher.Event{Kind: dispatcher.TimezoneChanged})
		w.notifier.Refresh()
	})

	w.alarms.OnChange(w.notifier.Refresh)
	w.ringer.SetListener(func(st ringing.Status, active bool) {
		if active {
			w.logger.Debug("Ring status", zap.String("session_id", st.SessionID), zap.Bool("full_screen", st.FullScreen))
		}
	})

	return nil
}

func (w *WakeUp) openJournal() (*history.Journal, error) {
	root := w.app.Storage().RootURI().Path()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	j, err := history.Open(filepath.Join(root, journalFile), w.logger.Named("history"))
	if err != nil {
		return nil, err
	}
	if n, err := j.Prune(w.ctx, time.Now().Add(-journalKeep)); err != nil {
		w.logger.Warn("Failed to prune ring journal", zap.Error(err))
	} else if n > 0 {
		w.logger.Info("Ring journal pruned", zap.Int("removed", n))
	}
	return j, nil
}

func (w *WakeUp) run() {
	for name, svc := range map[string]interface{ Run(context.Context) error }{
		"looper": w.loop,
		"timer":  w.timers,
		"clock":  w.clock,
	} {
		if err := svc.Run(w.ctx); err != nil {
			w.logger.Warn("Service failed to start", zap.String("service", name), zap.Error(err))
		}
	}

	boot := dispatcher.Boot
	if w.power.IsLocked() {
		boot = dispatcher.LockedBoot
	}
	w.dispatcher.Dispatch(w.ctx, dispatcher.Event{Kind: boot})

	w.app.Lifecycle().SetOnStarted(func() {
		platform.HideFromDock()
		w.notifier.Refresh()
	})
	w.app.Run()
	w.shutdown()
}

func (w *WakeUp) currentConfig() *models.Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := *w.config
	return &c
}

func (w *WakeUp) holdTime() time.Duration {
	return time.Duration(w.currentConfig().HoldTimeSeconds) * time.Second
}

// applyConfig persists a new configuration and pushes it to the running services
func (w *WakeUp) applyConfig(c *models.Config) {
	w.mu.Lock()
	prev := w.config
	w.config = c
	w.mu.Unlock()

	w.configStore.Save(c)
	if err := setupAutostart(c.AutoStart, w.logger); err != nil {
		w.logger.Warn("Failed to setup autostart", zap.Error(err))
	}
	w.ringer.SetOptions(ringing.OptionsFromConfig(c))
	w.ringWindow.SetHoldTime(time.Duration(c.HoldTimeSeconds) * time.Second)

	if prev.ExactAlarms != c.ExactAlarms {
		w.timers.SetExactAllowed(c.ExactAlarms)
		w.alarms.RescheduleAll()
	}
	if prev.LogLevel != c.LogLevel || prev.LogFormat != c.LogFormat {
		w.logger.Info("Logging changes apply after restart")
	}
	w.logger.Info("Settings saved")
}

func (w *WakeUp) onSnooze(params models.RingParams) {
	if params.AlarmID == previewAlarmID {
		w.ringer.Stop(previewAlarmID)
		return
	}
	go w.dispatcher.OnSnooze(params)
}

func (w *WakeUp) onDismiss(alarmID int) {
	if alarmID == previewAlarmID {
		w.ringer.Stop(previewAlarmID)
		return
	}
	go w.dispatcher.OnDismiss(alarmID)
}

// preview rings once with the given sound without touching any alarm
func (w *WakeUp) preview(sound string) {
	w.ringer.Start(models.RingParams{
		AlarmID:       previewAlarmID,
		Label:         "Preview",
		Sound:         sound,
		SnoozeMinutes: w.currentConfig().DefaultSnoozeMinutes,
	})
}

func (w *WakeUp) showSettingsWindow() {
	// If the window already exists, just bring it to front
	if w.settingsWindow != nil && w.settingsWindow.window != nil {
		w.settingsWindow.window.RequestFocus()
		w.settingsWindow.window.Show()
		return
	}

	w.settingsWindow = NewSettingsWindow(w, w.currentConfig(), w.applyConfig)
	w.settingsWindow.window.SetOnClosed(func() {
		w.settingsWindow = nil
	})
	w.settingsWindow.Show()
}

func (w *WakeUp) showAlarmsWindow() {
	if w.alarmsWindow != nil && w.alarmsWindow.window != nil {
		w.alarmsWindow.window.RequestFocus()
		w.alarmsWindow.window.Show()
		return
	}

	w.alarmsWindow = NewAlarmsWindow(w)
	w.alarmsWindow.window.SetOnClosed(func() {
		w.alarmsWindow = nil
	})
	w.alarmsWindow.Show()
}

func (w *WakeUp) quit() {
	w.app.Quit()
}

func (w *WakeUp) shutdown() {
	w.ringer.StopAll()
	w.ringWindow.CloseAll()
	w.loop.Sync(func() {})

	w.clock.Interrupt()
	w.timers.Interrupt()
	w.loop.Interrupt()
	w.cancel()

	if w.journal != nil {
		if err := w.journal.Close(); err != nil {
			w.logger.Warn("Failed to close ring journal", zap.Error(err))
		}
	}
	w.logger.Info("Shut down")
	_ = w.logger.Sync()
}
