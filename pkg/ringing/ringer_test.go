package ringing

import (
	"errors"
	"testing"
	"time"

	"github.com/borgmon/wakeup/pkg/looper"
	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/platform"
	"github.com/borgmon/wakeup/pkg/sounds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rig struct {
	m         *looper.Manual
	ev        *events
	power     *fakePower
	notifier  *fakeNotifier
	presenter *fakePresenter
	engine    *fakeEngine
	vib       *fakeVibrator
	focus     *platform.FocusArbiter
	r         *Ringer
}

func newRig(t *testing.T, mutate ...func(*Options)) *rig {
	t.Helper()
	ev := &events{}
	g := &rig{
		m:         looper.NewManual(time.Date(2024, 1, 3, 7, 30, 0, 0, time.UTC)),
		ev:        ev,
		power:     &fakePower{ev: ev},
		notifier:  &fakeNotifier{ev: ev},
		presenter: &fakePresenter{ev: ev},
		engine:    &fakeEngine{ev: ev},
		vib:       &fakeVibrator{ev: ev},
		focus:     platform.NewFocusArbiter(nil),
	}
	opts := DefaultOptions()
	for _, fn := range mutate {
		fn(&opts)
	}
	g.r = New(g.m, Deps{
		Power:     g.power,
		Notifier:  g.notifier,
		Presenter: g.presenter,
		Focus:     g.focus,
		Engine:    g.engine,
		Vibrator:  g.vib,
		Sounds:    sounds.NewRegistry(),
	}, opts, nil)
	return g
}

func params(id int) models.RingParams {
	return models.RingParams{AlarmID: id, Label: "wake", Sound: "american", Vibrate: true, VibrationPattern: "pulse", SnoozeMinutes: 10}
}

func (g *rig) start(p models.RingParams) {
	g.r.Start(p)
	g.m.RunPending()
}

func TestStartFullScreenWhenNotInteractive(t *testing.T) {
	g := newRig(t)
	g.start(params(1))

	require.Len(t, g.power.locks, 1)
	assert.True(t, g.power.locks[0].Held())
	assert.Contains(t, g.ev.log, "screen.pulse")
	assert.Len(t, g.presenter.presented, 1)
	require.Len(t, g.notifier.posted, 1)
	assert.False(t, g.notifier.posted[0].HeadsUp)
	assert.Equal(t, 1, g.notifier.posted[0].Params.AlarmID)

	st, ok := g.r.Current()
	require.True(t, ok)
	assert.True(t, st.FullScreen)
	assert.Equal(t, g.notifier.posted[0].SessionID, st.SessionID)
}

func TestStartHeadsUpWhenInteractive(t *testing.T) {
	g := newRig(t)
	g.power.interactive = true
	g.start(params(1))

	assert.Empty(t, g.presenter.presented)
	require.Len(t, g.notifier.posted, 1)
	assert.True(t, g.notifier.posted[0].HeadsUp)

	g.power.locked = true
	g.start(params(2))
	assert.Len(t, g.presenter.presented, 1, "locked screen asks for full-screen")
}

func TestFullScreenDeniedDegradesToHeadsUp(t *testing.T) {
	t.Run("presenter refuses", func(t *testing.T) {
		g := newRig(t)
		g.presenter.err = ErrFullScreenDenied
		g.start(params(1))

		require.Len(t, g.notifier.posted, 1)
		assert.True(t, g.notifier.posted[0].HeadsUp)
		assert.True(t, g.r.snapshot().playing)
	})

	t.Run("not permitted", func(t *testing.T) {
		g := newRig(t, func(o *Options) { o.FullScreenAllowed = false })
		g.start(params(1))

		assert.Empty(t, g.presenter.presented)
		assert.True(t, g.notifier.posted[0].HeadsUp)
	})
}

func TestFadeInReachesFullVolume(t *testing.T) {
	g := newRig(t)
	g.start(params(1))

	p := g.engine.last()
	require.NotNil(t, p)
	assert.True(t, p.playing)
	assert.Equal(t, 0.0, p.volume)
	assert.Equal(t, FadingIn, g.r.snapshot().fadePhase)

	g.m.Advance(150 * time.Millisecond)
	assert.Equal(t, 0.0, p.volume, "fade waits for the start delay")

	g.m.Advance(100 * time.Millisecond)
	assert.InDelta(t, 1.0/150, p.volume, 1e-9)

	g.m.Advance(7500 * time.Millisecond)
	assert.InDelta(t, 0.5, p.volume, 0.01)

	g.m.Advance(8 * time.Second)
	assert.Equal(t, 1.0, p.volume)
	assert.Equal(t, FadeFull, g.r.snapshot().fadePhase)
	for i := 1; i < len(p.volumes); i++ {
		assert.GreaterOrEqual(t, p.volumes[i], p.volumes[i-1])
	}
}

func TestNoSoundStillVibratesAndNotifies(t *testing.T) {
	g := newRig(t)
	p := params(1)
	p.Sound = models.NoSound
	g.start(p)

	assert.Empty(t, g.engine.calls)
	assert.Equal(t, 0, g.focus.Holder())
	assert.True(t, g.r.snapshot().silent)
	assert.Len(t, g.notifier.posted, 1)
	assert.NotEmpty(t, g.vib.pulses)
}

func TestTransientFocusLossPausesAndResumes(t *testing.T) {
	g := newRig(t)
	g.start(params(1))
	g.m.Advance(3 * time.Second)
	p := g.engine.last()
	mid := p.volume
	require.Greater(t, mid, 0.0)

	call := g.focus.Request(platform.FocusTransientExclusive, nil)
	g.m.RunPending()
	snap := g.r.snapshot()
	assert.True(t, snap.active)
	assert.False(t, p.playing)
	assert.Equal(t, FadeIdle, snap.fadePhase)
	assert.True(t, g.power.locks[0].Held(), "wake lock survives a transient loss")

	g.m.Advance(time.Second)
	assert.Equal(t, mid, p.volume, "no fade steps while paused")

	call.Abandon()
	g.m.RunPending()
	assert.True(t, p.playing)
	assert.Equal(t, 0.0, p.volume, "fade restarts from zero")
	assert.Equal(t, FadingIn, g.r.snapshot().fadePhase)
}

func TestFocusRegainAfterFullVolumeSkipsFade(t *testing.T) {
	g := newRig(t)
	g.start(params(1))
	g.m.Advance(20 * time.Second)
	p := g.engine.last()
	require.Equal(t, FadeFull, g.r.snapshot().fadePhase)

	call := g.focus.Request(platform.FocusTransientExclusive, nil)
	g.m.RunPending()
	assert.False(t, p.playing)

	call.Abandon()
	g.m.RunPending()
	assert.True(t, p.playing)
	assert.Equal(t, 1.0, p.volume)
	assert.Equal(t, FadeFull, g.r.snapshot().fadePhase)
}

func TestPermanentFocusLossKeepsSession(t *testing.T) {
	g := newRig(t)
	g.start(params(1))
	p := g.engine.last()
	pulses := len(g.vib.pulses)

	g.focus.Request(platform.FocusPermanent, nil)
	g.m.RunPending()

	assert.True(t, p.closed)
	snap := g.r.snapshot()
	assert.True(t, snap.active, "audio loss alone does not dismiss")
	assert.Equal(t, focusLost, snap.focus)
	assert.True(t, g.power.locks[0].Held())

	g.m.Advance(5 * time.Second)
	assert.Greater(t, len(g.vib.pulses), pulses, "vibration continues")
	assert.Len(t, g.engine.calls, 1)
}

func TestPlaybackErrorRetriesOnce(t *testing.T) {
	g := newRig(t)
	g.start(params(1))
	first := g.engine.last()

	g.engine.calls[0].onError(errors.New("device gone"))
	g.m.RunPending()
	assert.True(t, first.closed)
	require.Len(t, g.engine.calls, 2)
	second := g.engine.last()
	assert.True(t, second.playing)
	assert.True(t, g.r.snapshot().retried)

	g.engine.calls[1].onError(errors.New("device gone again"))
	g.m.RunPending()
	assert.True(t, second.closed)
	assert.Len(t, g.engine.calls, 2, "no second retry")

	snap := g.r.snapshot()
	assert.True(t, snap.active)
	assert.True(t, snap.silent)
	assert.Equal(t, 0, g.focus.Holder())
	assert.True(t, g.power.locks[0].Held())
}

func TestPrepareFailureRetriesOnceThenSilent(t *testing.T) {
	g := newRig(t)
	g.engine.failAll = true
	g.start(params(1))

	assert.Len(t, g.engine.calls, 2)
	snap := g.r.snapshot()
	assert.True(t, snap.active)
	assert.True(t, snap.silent)
	assert.Len(t, g.notifier.posted, 1)
}

func TestAsyncPrepare(t *testing.T) {
	g := newRig(t)
	g.engine.async = true
	g.start(params(1))
	assert.Nil(t, g.engine.last())
	assert.False(t, g.r.snapshot().playing)

	g.engine.complete(0)
	g.m.RunPending()
	assert.True(t, g.engine.last().playing)
	assert.Equal(t, FadingIn, g.r.snapshot().fadePhase)
}

func TestAsyncPrepareAfterStopIsDiscarded(t *testing.T) {
	g := newRig(t)
	g.engine.async = true
	g.start(params(1))

	g.r.Stop(1)
	g.m.RunPending()
	g.engine.complete(0)
	g.m.RunPending()

	p := g.engine.last()
	assert.True(t, p.closed)
	assert.False(t, p.playing)
}

func TestSupersedeTearsDownFirst(t *testing.T) {
	g := newRig(t)
	g.start(params(1))
	g.m.Advance(2 * time.Second)
	g.start(params(2))

	acquireB := g.ev.index("wakelock.acquire 2")
	require.GreaterOrEqual(t, acquireB, 0)
	for _, entry := range []string{
		"player.close american#1",
		"vibrate.cancel",
		"wakelock.release 1",
		"notify.remove 1",
		"present.close",
	} {
		i := g.ev.index(entry)
		require.GreaterOrEqual(t, i, 0, entry)
		assert.Less(t, i, acquireB, "%s must precede the new session", entry)
	}

	snap := g.r.snapshot()
	assert.Equal(t, 2, snap.alarmID)
	assert.True(t, snap.playing)
	assert.False(t, g.power.locks[0].Held())
	assert.True(t, g.power.locks[1].Held())
}

func TestTeardownIsIdempotent(t *testing.T) {
	g := newRig(t)

	g.r.StopAll()
	g.r.Stop(1)
	g.m.RunPending()
	assert.Empty(t, g.ev.log)

	g.start(params(1))
	g.r.Stop(2)
	g.m.RunPending()
	assert.True(t, g.r.snapshot().active, "stop for another alarm is ignored")

	g.r.Stop(1)
	g.r.Stop(1)
	g.r.StopAll()
	g.m.RunPending()

	assert.False(t, g.r.snapshot().active)
	assert.False(t, g.power.locks[0].Held())
	assert.Equal(t, 1, g.vib.cancels)
	assert.Equal(t, 0, g.focus.Holder())
	_, ok := g.r.Current()
	assert.False(t, ok)

	pulses := len(g.vib.pulses)
	g.m.Advance(10 * time.Second)
	assert.Len(t, g.vib.pulses, pulses, "no vibration after teardown")
	assert.Zero(t, g.m.Pending())
}

func TestListener(t *testing.T) {
	g := newRig(t)
	var seen []bool
	g.r.SetListener(func(st Status, active bool) {
		seen = append(seen, active)
		if active {
			assert.Equal(t, 1, st.Params.AlarmID)
		}
	})

	g.start(params(1))
	g.r.Stop(1)
	g.m.RunPending()
	assert.Equal(t, []bool{true, false}, seen)
}

func TestVibrationWaveform(t *testing.T) {
	g := newRig(t)
	p := params(1)
	p.Sound = models.NoSound
	p.VibrationPattern = "does-not-exist"
	g.start(p)

	g.m.Advance(1600 * time.Millisecond)
	assert.Equal(t, []time.Duration{300 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}, g.vib.pulses)

	p.Vibrate = false
	p.AlarmID = 2
	g.start(p)
	n := len(g.vib.pulses)
	g.m.Advance(5 * time.Second)
	assert.Len(t, g.vib.pulses, n)
}

func TestWaveforms(t *testing.T) {
	for _, id := range PatternIDs {
		w := WaveformFor(id)
		require.GreaterOrEqual(t, len(w), 3, id)
		assert.Equal(t, time.Duration(0), w[0], id)
		var total time.Duration
		for _, d := range w {
			total += d
		}
		assert.Greater(t, total, time.Duration(0), id)
	}
	assert.Equal(t, WaveformFor("pulse"), WaveformFor("bogus"))
	assert.NotEqual(t, WaveformFor("short"), WaveformFor("long"))
}
