// Package ringing owns the sensory output of the alarm that is ringing right
// now: wake lock, notification, full-screen window, looped audio with a
// fade-in, and vibration. At most one session is active; starting another
// tears the previous one down first.
//
// All session state lives on a looper. Public methods only post work to it.
package ringing

import (
	"errors"
	"sync"
	"time"

	"github.com/borgmon/wakeup/pkg/audio"
	"github.com/borgmon/wakeup/pkg/looper"
	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/platform"
	"github.com/borgmon/wakeup/pkg/sounds"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrFullScreenDenied is returned by a Presenter that may not take the screen
var ErrFullScreenDenied = models.Errorf(models.ErrDenied, "full-screen presentation not permitted")

const wakeLockTag = "wakeup:alarm"

// Notification is the persistent ringing notification. It carries Snooze and
// Dismiss actions for Params.AlarmID.
type Notification struct {
	SessionID string
	Params    models.RingParams
	// HeadsUp asks for a high-priority popup because no full-screen
	// window is showing.
	HeadsUp bool
}

type Notifier interface {
	Post(n Notification) error
	Remove(sessionID string)
}

// Presenter shows the full-screen ring window
type Presenter interface {
	Present(sessionID string, params models.RingParams) error
	Close(sessionID string)
}

type AudioFocus interface {
	Request(mode platform.FocusMode, listener platform.FocusListener) *platform.FocusGrant
}

type SoundResolver interface {
	Resolve(id string) (sounds.Sound, error)
}

// Deps are the ports a Ringer drives
type Deps struct {
	Power     platform.Power
	Notifier  Notifier
	Presenter Presenter
	Focus     AudioFocus
	Engine    audio.Engine
	Vibrator  platform.Vibrator
	Sounds    SoundResolver
}

type Options struct {
	FadeDuration      time.Duration
	FadeStep          time.Duration
	FadeDelay         time.Duration // between playback start and the first fade step
	WakeLockCeiling   time.Duration
	ScreenPulse       time.Duration
	FullScreenAllowed bool
}

func DefaultOptions() Options {
	return OptionsFromConfig(models.DefaultConfig())
}

func OptionsFromConfig(c *models.Config) Options {
	return Options{
		FadeDuration:      c.FadeDuration(),
		FadeStep:          c.FadeStep(),
		FadeDelay:         150 * time.Millisecond,
		WakeLockCeiling:   c.WakeLockCeiling(),
		ScreenPulse:       c.ScreenPulse(),
		FullScreenAllowed: c.FullScreenAllowed,
	}
}

// Status describes the active session for display
type Status struct {
	SessionID  string
	Params     models.RingParams
	Since      time.Time
	FullScreen bool
}

type focusState int

const (
	focusHeld focusState = iota
	focusPaused
	focusLost
)

type session struct {
	id        string
	params    models.RingParams
	since     time.Time
	presented bool
	logger    *zap.Logger

	wakeLock platform.WakeLock
	vib      *vibration

	sound   sounds.Sound
	silent  bool
	focus   *platform.FocusGrant
	fstate  focusState
	player  audio.Player
	fade    *fader
	gen     int
	retried bool
	closed  bool
}

type Ringer struct {
	looper looper.Looper
	deps   Deps
	logger *zap.Logger

	// looper only
	opts   Options
	active *session

	mu       sync.Mutex
	status   *Status
	listener func(Status, bool)
}

func New(l looper.Looper, deps Deps, opts Options, logger *zap.Logger) *Ringer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ringer{looper: l, deps: deps, opts: opts, logger: logger}
}

// Start begins ringing for params, replacing any active session
func (r *Ringer) Start(params models.RingParams) {
	r.looper.Post(func() { r.start(params) })
}

// Stop ends the session if it belongs to alarmID
func (r *Ringer) Stop(alarmID int) {
	r.looper.Post(func() {
		if r.active == nil {
			return
		}
		if r.active.params.AlarmID != alarmID {
			r.logger.Debug("Ignoring stop for inactive alarm",
				zap.Int("alarm_id", alarmID),
				zap.Int("active_alarm_id", r.active.params.AlarmID))
			return
		}
		r.teardown("stopped")
	})
}

// StopAll ends whatever session is active
func (r *Ringer) StopAll() {
	r.looper.Post(func() { r.teardown("stopped") })
}

// SetOptions applies to sessions started afterwards
func (r *Ringer) SetOptions(opts Options) {
	r.looper.Post(func() { r.opts = opts })
}

// Current returns the active session, if any. Safe from any goroutine.
func (r *Ringer) Current() (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == nil {
		return Status{}, false
	}
	return *r.status, true
}

// SetListener registers a callback for session start and end. It runs on
// the looper.
func (r *Ringer) SetListener(fn func(Status, bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = fn
}

func (r *Ringer) start(params models.RingParams) {
	params = params.Normalize()
	if r.active != nil {
		r.logger.Info("Superseding active ring",
			zap.Int("alarm_id", r.active.params.AlarmID),
			zap.Int("new_alarm_id", params.AlarmID))
		r.teardown("superseded")
	}

	s := &session{
		id:     uuid.NewString(),
		params: params,
		since:  r.looper.Now(),
	}
	s.logger = r.logger.With(zap.String("session_id", s.id), zap.Int("alarm_id", params.AlarmID))
	r.active = s

	s.wakeLock = r.deps.Power.AcquireWakeLock(wakeLockTag, r.opts.WakeLockCeiling)
	r.deps.Power.PulseScreen(r.opts.ScreenPulse)

	if !r.deps.Power.IsInteractive() || r.deps.Power.IsLocked() {
		s.presented = r.present(s)
	}

	n := Notification{SessionID: s.id, Params: params, HeadsUp: !s.presented}
	if err := r.deps.Notifier.Post(n); err != nil {
		s.logger.Warn("Failed to post ringing notification", zap.Error(err))
	}

	r.startAudio(s)

	if params.Vibrate && r.deps.Vibrator.HasVibrator() {
		s.vib = startVibration(r.looper, r.deps.Vibrator, params.VibrationPattern)
	}

	s.logger.Info("Ringing",
		zap.String("label", params.Label),
		zap.String("sound", params.Sound),
		zap.String("pattern", params.VibrationPattern),
		zap.Bool("full_screen", s.presented))
	r.publish(s)
}

func (r *Ringer) present(s *session) bool {
	if !r.opts.FullScreenAllowed {
		s.logger.Warn("Full-screen not permitted, using heads-up notification")
		return false
	}
	if err := r.deps.Presenter.Present(s.id, s.params); err != nil {
		s.logger.Warn("Full-screen presentation failed, using heads-up notification", zap.Error(err))
		return false
	}
	return true
}

func (r *Ringer) startAudio(s *session) {
	sound, err := r.deps.Sounds.Resolve(s.params.Sound)
	if errors.Is(err, sounds.ErrNoSound) {
		s.silent = true
		s.logger.Info("Sound disabled, ringing silently")
		return
	}
	if err != nil {
		s.silent = true
		s.logger.Warn("Failed to resolve sound, ringing silently", zap.Error(err))
		return
	}
	s.sound = sound

	s.focus = r.deps.Focus.Request(platform.FocusTransientExclusive, func(c platform.FocusChange) {
		r.looper.Post(func() { r.onFocus(s, c) })
	})
	if !s.focus.Granted {
		s.logger.Warn("Audio focus not granted, playing anyway")
	}

	s.fade = newFader(r.looper, r.opts.FadeDuration, r.opts.FadeStep, func(v float64) {
		if s.player != nil {
			s.player.SetVolume(v)
		}
	})
	r.prepare(s)
}

// prepare opens the sound. Completion always arrives through the looper,
// even when the engine is ready synchronously.
func (r *Ringer) prepare(s *session) {
	s.gen++
	gen := s.gen
	r.deps.Engine.Prepare(s.sound,
		func(err error) {
			r.looper.Post(func() { r.onPlaybackError(s, gen, err) })
		},
		func(p audio.Player, err error) {
			r.looper.Post(func() { r.onPrepared(s, gen, p, err) })
		})
}

func (r *Ringer) stale(s *session, gen int) bool {
	return s != r.active || s.closed || gen != s.gen || s.fstate == focusLost
}

func (r *Ringer) onPrepared(s *session, gen int, p audio.Player, err error) {
	if r.stale(s, gen) {
		if p != nil {
			p.Close()
		}
		return
	}
	if err != nil {
		r.onPlaybackError(s, gen, err)
		return
	}

	s.player = p
	p.SetVolume(0)
	if s.fstate == focusPaused {
		// Resumed by the next focus gain.
		return
	}
	p.Play()
	s.fade.Start(r.opts.FadeDelay)
}

func (r *Ringer) onPlaybackError(s *session, gen int, err error) {
	if r.stale(s, gen) {
		return
	}
	r.releasePlayer(s)

	if s.retried {
		s.logger.Warn("Audio failed again, continuing silently", zap.Error(err))
		s.silent = true
		r.abandonFocus(s)
		return
	}
	s.retried = true
	s.logger.Warn("Audio failed, restarting sound once", zap.Error(err))
	r.prepare(s)
}

func (r *Ringer) onFocus(s *session, c platform.FocusChange) {
	if s != r.active || s.closed {
		return
	}
	s.logger.Debug("Audio focus changed", zap.Stringer("change", c))

	switch c {
	case platform.FocusLossTransient:
		s.fstate = focusPaused
		s.fade.Stop()
		if s.player != nil {
			s.player.Pause()
		}

	case platform.FocusGain:
		if s.fstate == focusLost {
			return
		}
		s.fstate = focusHeld
		if s.player == nil {
			return
		}
		if !s.player.IsPlaying() {
			s.player.Play()
		}
		if s.fade.Reached() {
			s.player.SetVolume(1)
		} else {
			s.fade.Start(0)
		}

	case platform.FocusLoss:
		s.logger.Info("Audio focus lost, ringing without sound")
		s.fstate = focusLost
		r.releasePlayer(s)
		r.abandonFocus(s)
	}
}

func (r *Ringer) releasePlayer(s *session) {
	if s.fade != nil {
		s.fade.Reset()
	}
	if s.player != nil {
		s.player.Close()
		s.player = nil
	}
}

func (r *Ringer) abandonFocus(s *session) {
	if s.focus != nil {
		s.focus.Abandon()
		s.focus = nil
	}
}

// teardown releases everything the active session holds. Safe to call with
// no active session.
func (r *Ringer) teardown(reason string) {
	s := r.active
	if s == nil {
		return
	}
	r.active = nil
	s.closed = true

	r.releasePlayer(s)
	r.abandonFocus(s)
	s.vib.Stop()
	if s.wakeLock != nil {
		s.wakeLock.Release()
	}
	r.deps.Notifier.Remove(s.id)
	if s.presented {
		r.deps.Presenter.Close(s.id)
	}

	s.logger.Info("Ring ended", zap.String("reason", reason), zap.Duration("rang_for", r.looper.Now().Sub(s.since)))
	r.publish(nil)
}

func (r *Ringer) publish(s *session) {
	r.mu.Lock()
	if s == nil {
		r.status = nil
	} else {
		r.status = &Status{SessionID: s.id, Params: s.params, Since: s.since, FullScreen: s.presented}
	}
	listener := r.listener
	var st Status
	active := r.status != nil
	if active {
		st = *r.status
	}
	r.mu.Unlock()

	if listener != nil {
		listener(st, active)
	}
}

// snapshot exposes session internals to tests in this package
type snapshot struct {
	active    bool
	alarmID   int
	playing   bool
	silent    bool
	fadePhase FadePhase
	focus     focusState
	retried   bool
}

func (r *Ringer) snapshot() snapshot {
	s := r.active
	if s == nil {
		return snapshot{}
	}
	snap := snapshot{
		active:  true,
		alarmID: s.params.AlarmID,
		playing: s.player != nil && s.player.IsPlaying(),
		silent:  s.silent,
		focus:   s.fstate,
		retried: s.retried,
	}
	if s.fade != nil {
		snap.fadePhase = s.fade.Phase()
	}
	return snap
}
