package ringing

import (
	"time"

	"github.com/borgmon/wakeup/pkg/looper"
)

type FadePhase int

const (
	FadeIdle FadePhase = iota
	FadingIn
	FadeFull
)

func (p FadePhase) String() string {
	switch p {
	case FadingIn:
		return "fading_in"
	case FadeFull:
		return "full"
	default:
		return "idle"
	}
}

// fader raises volume linearly from 0 to 1 in fixed steps. It only runs on
// the looper. Once Full is reached it stays there until reset.
type fader struct {
	looper looper.Looper
	set    func(float64)
	step   time.Duration
	steps  int

	phase  FadePhase
	i      int
	cancel func()
}

func newFader(l looper.Looper, duration, step time.Duration, set func(float64)) *fader {
	if step <= 0 {
		step = 100 * time.Millisecond
	}
	steps := int(duration / step)
	if steps < 1 {
		steps = 1
	}
	return &fader{looper: l, set: set, step: step, steps: steps}
}

// Start restarts the fade from zero; the first step comes after delay
func (f *fader) Start(delay time.Duration) {
	f.Stop()
	f.phase = FadingIn
	f.i = 0
	f.set(0)
	f.cancel = f.looper.PostDelayed(delay+f.step, f.tick)
}

// Stop cancels a fade in progress. A reached fade stays Full.
func (f *fader) Stop() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	if f.phase == FadingIn {
		f.phase = FadeIdle
	}
}

// Reset forgets that full volume was reached
func (f *fader) Reset() {
	f.Stop()
	f.phase = FadeIdle
}

func (f *fader) Phase() FadePhase {
	return f.phase
}

func (f *fader) Reached() bool {
	return f.phase == FadeFull
}

func (f *fader) tick() {
	if f.phase != FadingIn {
		return
	}
	f.i++
	vol := float64(f.i) / float64(f.steps)
	if vol >= 1 {
		f.set(1)
		f.phase = FadeFull
		f.cancel = nil
		return
	}
	f.set(vol)
	f.cancel = f.looper.PostDelayed(f.step, f.tick)
}
