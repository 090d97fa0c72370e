package store

import (
	"encoding/json"

	"fyne.io/fyne/v2"
	"github.com/borgmon/wakeup/pkg/models"
)

// ConfigStore handles configuration persistence using Fyne preferences
type ConfigStore struct {
	prefs fyne.Preferences
}

// NewConfigStore creates a new ConfigStore instance
func NewConfigStore(prefs fyne.Preferences) *ConfigStore {
	return &ConfigStore{prefs: prefs}
}

// Load loads configuration from preferences
func (cs *ConfigStore) Load() *models.Config {
	prefs := cs.prefs
	def := models.DefaultConfig()

	config := &models.Config{
		AutoStart:            prefs.BoolWithFallback("auto_start", def.AutoStart),
		ExactAlarms:          prefs.BoolWithFallback("exact_alarms", def.ExactAlarms),
		FullScreenAllowed:    prefs.BoolWithFallback("full_screen_allowed", def.FullScreenAllowed),
		FadeSeconds:          prefs.IntWithFallback("fade_seconds", def.FadeSeconds),
		FadeStepMillis:       prefs.IntWithFallback("fade_step_millis", def.FadeStepMillis),
		WakeLockMinutes:      prefs.IntWithFallback("wake_lock_minutes", def.WakeLockMinutes),
		ScreenPulseSeconds:   prefs.IntWithFallback("screen_pulse_seconds", def.ScreenPulseSeconds),
		HoldTimeSeconds:      prefs.IntWithFallback("hold_time_seconds", def.HoldTimeSeconds),
		DefaultSnoozeMinutes: prefs.IntWithFallback("default_snooze_minutes", def.DefaultSnoozeMinutes),
		LogLevel:             prefs.StringWithFallback("log_level", def.LogLevel),
		LogFormat:            prefs.StringWithFallback("log_format", def.LogFormat),
	}

	// Load custom sounds from JSON string
	customSoundsJSON := prefs.String("custom_sounds")
	if customSoundsJSON != "" {
		if err := json.Unmarshal([]byte(customSoundsJSON), &config.CustomSounds); err != nil {
			config.CustomSounds = []models.CustomSound{}
		}
	} else {
		config.CustomSounds = []models.CustomSound{}
	}

	return config
}

// Save saves configuration to preferences
func (cs *ConfigStore) Save(config *models.Config) {
	prefs := cs.prefs

	prefs.SetBool("auto_start", config.AutoStart)
	prefs.SetBool("exact_alarms", config.ExactAlarms)
	prefs.SetBool("full_screen_allowed", config.FullScreenAllowed)
	prefs.SetInt("fade_seconds", config.FadeSeconds)
	prefs.SetInt("fade_step_millis", config.FadeStepMillis)
	prefs.SetInt("wake_lock_minutes", config.WakeLockMinutes)
	prefs.SetInt("screen_pulse_seconds", config.ScreenPulseSeconds)
	prefs.SetInt("hold_time_seconds", config.HoldTimeSeconds)
	prefs.SetInt("default_snooze_minutes", config.DefaultSnoozeMinutes)
	prefs.SetString("log_level", config.LogLevel)
	prefs.SetString("log_format", config.LogFormat)

	// Save custom sounds as JSON string
	if customSoundsJSON, err := json.Marshal(config.CustomSounds); err == nil {
		prefs.SetString("custom_sounds", string(customSoundsJSON))
	}
}
