package models

import "time"

// Config holds application configuration
type Config struct {
	AutoStart            bool          `json:"auto_start"`
	ExactAlarms          bool          `json:"exact_alarms"`           // exact wake-timer permission
	FullScreenAllowed    bool          `json:"full_screen_allowed"`    // full-screen ring permission
	FadeSeconds          int           `json:"fade_seconds"`           // fade-in duration
	FadeStepMillis       int           `json:"fade_step_millis"`       // fade-in tick interval
	WakeLockMinutes      int           `json:"wake_lock_minutes"`      // CPU wake-lock ceiling
	ScreenPulseSeconds   int           `json:"screen_pulse_seconds"`   // screen wake pulse
	HoldTimeSeconds      int           `json:"hold_time_seconds"`      // ring window button hold time
	DefaultSnoozeMinutes int           `json:"default_snooze_minutes"` // snooze for new alarms
	LogLevel             string        `json:"log_level"`
	LogFormat            string        `json:"log_format"`
	CustomSounds         []CustomSound `json:"custom_sounds"`
}

// CustomSound is a user-registered sound file
type CustomSound struct {
	ID    string `json:"id"`    // file path
	Title string `json:"title"` // display name
}

// DefaultConfig returns the configuration used on first launch
func DefaultConfig() *Config {
	return &Config{
		AutoStart:            false,
		ExactAlarms:          true,
		FullScreenAllowed:    true,
		FadeSeconds:          15,
		FadeStepMillis:       100,
		WakeLockMinutes:      10,
		ScreenPulseSeconds:   30,
		HoldTimeSeconds:      2,
		DefaultSnoozeMinutes: DefaultSnoozeMinutes,
		LogLevel:             "info",
		LogFormat:            "console",
		CustomSounds:         []CustomSound{},
	}
}

// FadeDuration returns the fade-in duration, never below one step
func (c *Config) FadeDuration() time.Duration {
	d := time.Duration(c.FadeSeconds) * time.Second
	if d < c.FadeStep() {
		return c.FadeStep()
	}
	return d
}

// FadeStep returns the fade-in tick interval
func (c *Config) FadeStep() time.Duration {
	if c.FadeStepMillis <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.FadeStepMillis) * time.Millisecond
}

// WakeLockCeiling bounds how long a ringing session may hold the CPU awake
func (c *Config) WakeLockCeiling() time.Duration {
	if c.WakeLockMinutes <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.WakeLockMinutes) * time.Minute
}

// ScreenPulse returns how long the display is kept on when a ring starts
func (c *Config) ScreenPulse() time.Duration {
	if c.ScreenPulseSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.ScreenPulseSeconds) * time.Second
}

// Validate checks if the custom sound has required fields
func (s *CustomSound) Validate() bool {
	return s.ID != "" && s.Title != ""
}
