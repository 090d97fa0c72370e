package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type registration struct {
	at      time.Time
	exact   bool
	payload models.WakePayload
}

// fakeTimer records registrations by key code
type fakeTimer struct {
	canExact    bool
	exactErr    error
	inexactErr  error
	regs        map[int]registration
	cancelCalls int
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{canExact: true, regs: map[int]registration{}}
}

func (f *fakeTimer) CanScheduleExact() bool { return f.canExact }

func (f *fakeTimer) SetExact(at time.Time, key models.WakeKey, p models.WakePayload) error {
	if f.exactErr != nil {
		return f.exactErr
	}
	f.regs[key.Code()] = registration{at, true, p}
	return nil
}

func (f *fakeTimer) SetInexact(at time.Time, key models.WakeKey, p models.WakePayload) error {
	if f.inexactErr != nil {
		return f.inexactErr
	}
	f.regs[key.Code()] = registration{at, false, p}
	return nil
}

func (f *fakeTimer) Cancel(key models.WakeKey) {
	f.cancelCalls++
	delete(f.regs, key.Code())
}

var _ platform.WakeTimer = (*fakeTimer)(nil)

// 2024-01-02 is a Tuesday.
var now = time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return now }

func alarm(id, hour, minute int, enabled bool) models.Alarm {
	return models.Alarm{ID: id, Hour: hour, Minute: minute, Enabled: enabled, Label: "wake", Vibrate: true}
}

func TestScheduleExact(t *testing.T) {
	timer := newFakeTimer()
	s := New(timer, fixedNow, nil)

	at := s.Schedule(alarm(1, 7, 30, true))
	assert.Equal(t, time.Date(2024, 1, 2, 7, 30, 0, 0, time.UTC), at)

	reg, ok := timer.regs[models.PrimaryKey(1).Code()]
	require.True(t, ok)
	assert.True(t, reg.exact)
	assert.Equal(t, at, reg.at)
	assert.False(t, reg.payload.IsSnooze())
	assert.Equal(t, "wake", reg.payload.Label)
	assert.Equal(t, models.DefaultSound, reg.payload.Sound)
}

func TestScheduleFallsBackToInexact(t *testing.T) {
	t.Run("not permitted", func(t *testing.T) {
		timer := newFakeTimer()
		timer.canExact = false
		New(timer, fixedNow, nil).Schedule(alarm(1, 7, 30, true))

		reg, ok := timer.regs[models.PrimaryKey(1).Code()]
		require.True(t, ok)
		assert.False(t, reg.exact)
	})

	t.Run("exact rejected", func(t *testing.T) {
		timer := newFakeTimer()
		timer.exactErr = platform.ErrExactDenied
		New(timer, fixedNow, nil).Schedule(alarm(1, 7, 30, true))

		reg, ok := timer.regs[models.PrimaryKey(1).Code()]
		require.True(t, ok)
		assert.False(t, reg.exact)
	})

	t.Run("both rejected", func(t *testing.T) {
		timer := newFakeTimer()
		timer.exactErr = platform.ErrExactDenied
		timer.inexactErr = errors.New("boom")
		assert.NotPanics(t, func() { New(timer, fixedNow, nil).Schedule(alarm(1, 7, 30, true)) })
		assert.Empty(t, timer.regs)
	})
}

func TestCancelClearsBothSlotsAndIsIdempotent(t *testing.T) {
	timer := newFakeTimer()
	s := New(timer, fixedNow, nil)

	s.Schedule(alarm(4, 7, 0, true))
	s.Snooze(models.RingParams{AlarmID: 4, SnoozeMinutes: 5})
	require.Len(t, timer.regs, 2)

	s.Cancel(4)
	assert.Empty(t, timer.regs)
	s.Cancel(4)
	s.Cancel(99)
	assert.Empty(t, timer.regs)
}

func TestRescheduleAllOnlyEnabled(t *testing.T) {
	timer := newFakeTimer()
	s := New(timer, fixedNow, nil)
	alarms := []models.Alarm{
		alarm(1, 7, 0, true),
		alarm(2, 8, 0, true),
		alarm(3, 9, 0, false),
		{ID: 4, Hour: 30, Enabled: true},
	}
	// Stale registration left behind for a now-disabled alarm.
	timer.regs[models.PrimaryKey(3).Code()] = registration{at: now}

	s.RescheduleAll(alarms)
	first := map[int]registration{}
	for k, v := range timer.regs {
		first[k] = v
	}

	assert.Len(t, timer.regs, 2)
	assert.Contains(t, timer.regs, models.PrimaryKey(1).Code())
	assert.Contains(t, timer.regs, models.PrimaryKey(2).Code())
	assert.NotContains(t, timer.regs, models.PrimaryKey(3).Code())

	s.RescheduleAll(alarms)
	assert.Equal(t, first, timer.regs, "rescheduling twice yields the same registrations")
}

func TestSnooze(t *testing.T) {
	timer := newFakeTimer()
	s := New(timer, fixedNow, nil)
	s.Schedule(alarm(2, 7, 30, true))

	at := s.Snooze(models.RingParams{AlarmID: 2, Label: "wake", SnoozeMinutes: 5})
	assert.WithinDuration(t, now.Add(5*time.Minute), at, time.Second)

	reg, ok := timer.regs[models.SnoozeKey(2).Code()]
	require.True(t, ok)
	assert.True(t, reg.payload.IsSnooze())
	assert.Equal(t, at, reg.payload.TriggerAt)
	assert.Equal(t, 5, reg.payload.SnoozeMinutes)

	_, primary := timer.regs[models.PrimaryKey(2).Code()]
	assert.True(t, primary, "snooze leaves the primary slot in place")

	at = s.Snooze(models.RingParams{AlarmID: 2, SnoozeMinutes: 0})
	assert.Equal(t, now.Add(10*time.Minute), at, "snooze below one minute uses the default")
}

func TestSchedulerWithTimerService(t *testing.T) {
	timers := platform.NewTimerService(false, nil)
	s := New(timers, fixedNow, nil)

	s.Schedule(alarm(1, 7, 30, true))
	s.Snooze(models.RingParams{AlarmID: 1, SnoozeMinutes: 10})

	pending := timers.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, models.SnoozeKey(1), pending[0].Key)
	assert.Equal(t, models.PrimaryKey(1), pending[1].Key)
	for _, p := range pending {
		assert.False(t, p.Exact)
	}
}

func TestRescheduleAllKeepsPendingSnoozeOfEnabledAlarms(t *testing.T) {
	timer := newFakeTimer()
	s := New(timer, fixedNow, nil)
	s.Snooze(models.RingParams{AlarmID: 1, SnoozeMinutes: 5})
	s.Snooze(models.RingParams{AlarmID: 2, SnoozeMinutes: 5})

	s.RescheduleAll([]models.Alarm{alarm(1, 7, 0, true), alarm(2, 8, 0, false)})

	assert.Contains(t, timer.regs, models.SnoozeKey(1).Code())
	assert.NotContains(t, timer.regs, models.SnoozeKey(2).Code(), "disabled alarms lose their snooze")
	assert.Contains(t, timer.regs, models.PrimaryKey(1).Code())
}
