// Package scheduler turns alarm definitions into wake-timer registrations.
// Each alarm owns two disjoint slots: the primary (next recurrence) and the
// snooze. The scheduler prefers exact timing and silently degrades to inexact.
package scheduler

import (
	"time"

	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/platform"
	"github.com/borgmon/wakeup/pkg/trigger"
	"go.uber.org/zap"
)

type Scheduler struct {
	timer  platform.WakeTimer
	now    func() time.Time
	logger *zap.Logger
}

func New(timer platform.WakeTimer, now func() time.Time, logger *zap.Logger) *Scheduler {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{timer: timer, now: now, logger: logger}
}

// Schedule registers the alarm's next occurrence in its primary slot and
// returns the trigger instant. The alarm's enabled flag is not consulted.
func (s *Scheduler) Schedule(alarm models.Alarm) time.Time {
	at := trigger.Next(alarm, s.now())
	payload := models.WakePayload{RingParams: alarm.RingParams()}
	s.register(at, models.PrimaryKey(alarm.ID), payload)
	return at
}

// Cancel removes both slots of the alarm. Unknown ids are a no-op.
func (s *Scheduler) Cancel(alarmID int) {
	s.timer.Cancel(models.PrimaryKey(alarmID))
	s.timer.Cancel(models.SnoozeKey(alarmID))
	s.logger.Debug("Alarm cancelled", zap.Int("alarm_id", alarmID))
}

// RescheduleAll recomputes the primary slot of every alarm in the set.
// Enabled alarms are re-registered; disabled and invalid ones lose both
// slots. Pending snoozes of enabled alarms are absolute instants and stay.
func (s *Scheduler) RescheduleAll(alarms []models.Alarm) {
	scheduled := 0
	for i, a := range alarms {
		if !a.Enabled {
			s.Cancel(a.ID)
			continue
		}
		if err := a.Validate(); err != nil {
			s.logger.Warn("Skipping invalid alarm", zap.Int("index", i), zap.Error(err))
			s.Cancel(a.ID)
			continue
		}
		s.timer.Cancel(models.PrimaryKey(a.ID))
		s.Schedule(a)
		scheduled++
	}
	s.logger.Info("Alarms rescheduled", zap.Int("total", len(alarms)), zap.Int("scheduled", scheduled))
}

// Snooze registers a one-shot firing SnoozeMinutes from now in the snooze slot
// and returns its instant. The primary slot is untouched.
func (s *Scheduler) Snooze(params models.RingParams) time.Time {
	params = params.Normalize()
	at := s.now().Add(time.Duration(params.SnoozeMinutes) * time.Minute)
	payload := models.WakePayload{RingParams: params, TriggerAt: at}
	s.register(at, models.SnoozeKey(params.AlarmID), payload)
	return at
}

func (s *Scheduler) register(at time.Time, key models.WakeKey, payload models.WakePayload) {
	fields := []zap.Field{
		zap.Int("alarm_id", key.AlarmID),
		zap.String("purpose", string(key.Purpose)),
		zap.Time("trigger_at", at),
	}

	if s.timer.CanScheduleExact() {
		err := s.timer.SetExact(at, key, payload)
		if err == nil {
			s.logger.Info("Alarm scheduled", append(fields, zap.Bool("exact", true))...)
			return
		}
		s.logger.Warn("Exact scheduling failed, falling back to inexact", append(fields, zap.Error(err))...)
	} else {
		s.logger.Warn("Exact scheduling not permitted, using inexact", fields...)
	}

	if err := s.timer.SetInexact(at, key, payload); err != nil {
		s.logger.Error("Failed to schedule alarm", append(fields, zap.Error(err))...)
		return
	}
	s.logger.Info("Alarm scheduled", append(fields, zap.Bool("exact", false))...)
}
