package platform

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Vibrator drives the haptic motor
type Vibrator interface {
	HasVibrator() bool
	// Vibrate runs the motor for d.
	Vibrate(d time.Duration)
	Cancel()
}

// LogVibrator stands in for a motor on hardware that has none. Pulses are
// logged so a running waveform is visible in the debug log.
type LogVibrator struct {
	logger *zap.Logger

	mu     sync.Mutex
	pulses int
}

func NewLogVibrator(logger *zap.Logger) *LogVibrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogVibrator{logger: logger}
}

func (v *LogVibrator) HasVibrator() bool {
	return true
}

func (v *LogVibrator) Vibrate(d time.Duration) {
	v.mu.Lock()
	v.pulses++
	v.mu.Unlock()
	v.logger.Debug("bzz", zap.Duration("for", d))
}

func (v *LogVibrator) Cancel() {
	v.logger.Debug("Vibration cancelled")
}

// Pulses returns how many pulses have been played
func (v *LogVibrator) Pulses() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pulses
}
