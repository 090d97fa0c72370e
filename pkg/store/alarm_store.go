package store

import (
	"encoding/json"
	"sync"

	"fyne.io/fyne/v2"
	"github.com/borgmon/wakeup/pkg/models"
	"go.uber.org/zap"
)

const alarmsKey = "alarms_json"

// AlarmStore persists the alarm list as one JSON document in fyne preferences
type AlarmStore struct {
	mu     sync.RWMutex
	prefs  fyne.Preferences
	logger *zap.Logger
}

// NewAlarmStore creates a new AlarmStore instance
func NewAlarmStore(prefs fyne.Preferences, logger *zap.Logger) *AlarmStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlarmStore{prefs: prefs, logger: logger}
}

// GetAlarms returns the stored alarms in their stored order. A corrupt document
// yields an empty list; an individual malformed entry is skipped.
func (s *AlarmStore) GetAlarms() []models.Alarm {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw := s.prefs.String(alarmsKey)
	if raw == "" {
		return []models.Alarm{}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Warn("Stored alarm list is corrupt, treating as empty", zap.Error(err))
		return []models.Alarm{}
	}

	alarms := make([]models.Alarm, 0, len(entries))
	for i, entry := range entries {
		alarm, err := decodeAlarm(entry)
		if err != nil {
			s.logger.Warn("Skipping malformed stored alarm", zap.Int("index", i), zap.Error(err))
			continue
		}
		alarms = append(alarms, alarm)
	}
	return alarms
}

// SetAlarms replaces the stored alarm list
func (s *AlarmStore) SetAlarms(alarms []models.Alarm) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if alarms == nil {
		alarms = []models.Alarm{}
	}
	data, err := json.Marshal(alarms)
	if err != nil {
		s.logger.Error("Failed to encode alarms", zap.Error(err))
		return
	}
	s.prefs.SetString(alarmsKey, string(data))
}

// alarmRecord mirrors the persisted shape with pointers so missing fields get
// their defaults instead of zero values.
type alarmRecord struct {
	ID               *int              `json:"id"`
	Hour             *int              `json:"hour"`
	Minute           *int              `json:"minute"`
	Label            string            `json:"label"`
	GroupName        string            `json:"groupName"`
	Enabled          *bool             `json:"enabled"`
	Sound            string            `json:"sound"`
	SnoozeMinutes    int               `json:"snoozeMinutes"`
	Vibrate          *bool             `json:"vibrate"`
	VibrationPattern string            `json:"vibrationPattern"`
	Days             models.WeekdaySet `json:"days"`
}

func decodeAlarm(data []byte) (models.Alarm, error) {
	var rec alarmRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.Alarm{}, err
	}
	if rec.ID == nil || rec.Hour == nil || rec.Minute == nil {
		return models.Alarm{}, models.Errorf(models.ErrInvalid, "alarm record misses id, hour or minute")
	}

	alarm := models.Alarm{
		ID:               *rec.ID,
		Hour:             *rec.Hour,
		Minute:           *rec.Minute,
		Label:            rec.Label,
		GroupName:        rec.GroupName,
		Enabled:          true,
		Sound:            rec.Sound,
		SnoozeMinutes:    rec.SnoozeMinutes,
		Vibrate:          true,
		VibrationPattern: rec.VibrationPattern,
		Days:             rec.Days,
	}
	if rec.Enabled != nil {
		alarm.Enabled = *rec.Enabled
	}
	if rec.Vibrate != nil {
		alarm.Vibrate = *rec.Vibrate
	}
	alarm = alarm.Normalize()

	if err := alarm.Validate(); err != nil {
		return models.Alarm{}, err
	}
	return alarm, nil
}
