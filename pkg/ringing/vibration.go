package ringing

import (
	"time"

	"github.com/borgmon/wakeup/pkg/looper"
	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/platform"
)

// Waveforms maps pattern ids to millisecond timings. Even positions are
// pauses, odd positions are vibrations. Each waveform repeats from the start.
var Waveforms = map[string][]int{
	"pulse":     {0, 300, 300, 300, 700},
	"short":     {0, 200, 800},
	"long":      {0, 700, 800},
	"heartbeat": {0, 120, 120, 260, 900},
	"ramp":      {0, 120, 250, 180, 220, 260, 180, 320, 160, 500},
}

// PatternIDs lists the patterns in display order
var PatternIDs = []string{"pulse", "short", "long", "heartbeat", "ramp"}

// WaveformFor returns the timings for a pattern id; unknown ids get pulse
func WaveformFor(id string) []time.Duration {
	ms, ok := Waveforms[id]
	if !ok {
		ms = Waveforms[models.DefaultVibrationPattern]
	}
	out := make([]time.Duration, len(ms))
	for i, v := range ms {
		out[i] = time.Duration(v) * time.Millisecond
	}
	return out
}

// vibration plays a waveform on the looper until stopped
type vibration struct {
	looper  looper.Looper
	motor   platform.Vibrator
	timings []time.Duration

	i       int
	running bool
	cancel  func()
}

func startVibration(l looper.Looper, motor platform.Vibrator, pattern string) *vibration {
	v := &vibration{looper: l, motor: motor, timings: WaveformFor(pattern), running: true}
	v.step()
	return v
}

func (v *vibration) step() {
	if !v.running {
		return
	}
	d := v.timings[v.i]
	if v.i%2 == 1 {
		v.motor.Vibrate(d)
	}
	v.i = (v.i + 1) % len(v.timings)
	v.cancel = v.looper.PostDelayed(d, v.step)
}

func (v *vibration) Stop() {
	if v == nil || !v.running {
		return
	}
	v.running = false
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.motor.Cancel()
}
