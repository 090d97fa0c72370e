package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/borgmon/wakeup/pkg/alarms"
	"github.com/borgmon/wakeup/pkg/history"
	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/platform"
	"github.com/borgmon/wakeup/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type alarmList []models.Alarm

func (l *alarmList) GetAlarms() []models.Alarm { return append([]models.Alarm(nil), *l...) }
func (l *alarmList) SetAlarms(a []models.Alarm) { *l = a }

type fakeRinger struct {
	started []models.RingParams
	stopped []int
}

func (r *fakeRinger) Start(p models.RingParams) { r.started = append(r.started, p) }
func (r *fakeRinger) Stop(alarmID int) { r.stopped = append(r.stopped, alarmID) }

type fakeJournal struct {
	entries []history.Entry
	err     error
}

func (j *fakeJournal) Record(_ context.Context, e history.Entry) error {
	if j.err != nil {
		return j.err
	}
	j.entries = append(j.entries, e)
	return nil
}

type harness struct {
	clock   time.Time
	alarms  alarmList
	timers  *platform.TimerService
	ringer  *fakeRinger
	journal *fakeJournal
	manager *alarms.Manager
	d       *Dispatcher
}

func newHarness(now time.Time, list ...models.Alarm) *harness {
	h := &harness{
		clock:   now,
		alarms:  list,
		timers:  platform.NewTimerService(true, nil),
		ringer:  &fakeRinger{},
		journal: &fakeJournal{},
	}
	nowFn := func() time.Time { return h.clock }
	sched := scheduler.New(h.timers, nowFn, nil)
	h.manager = alarms.New(&h.alarms, sched, nil)
	h.d = New(h.manager, sched, h.ringer, h.journal, nowFn, nil)
	return h
}

func (h *harness) pending(key models.WakeKey) (time.Time, bool) {
	reg, ok := h.timers.Lookup(key)
	return reg.At, ok
}

// 2024-01-02 is a Tuesday.
var tuesday0800 = time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)

func weekdayAlarm() models.Alarm {
	return models.Alarm{
		ID:               1,
		Hour:             7,
		Minute:           30,
		Label:            "Gym",
		Enabled:          true,
		Days:             models.NewWeekdaySet(models.Mon, models.Wed, models.Fri),
		Sound:            "american",
		Vibrate:          true,
		VibrationPattern: "pulse",
		SnoozeMinutes:    10,
	}
}

func TestBootSchedulesOnlyEnabled(t *testing.T) {
	h := newHarness(tuesday0800,
		models.Alarm{ID: 1, Hour: 7, Minute: 0, Enabled: true},
		models.Alarm{ID: 2, Hour: 9, Minute: 0, Enabled: true},
		models.Alarm{ID: 3, Hour: 10, Minute: 0, Enabled: false},
	)

	for _, kind := range []Kind{Boot, LockedBoot, TimeChanged, TimezoneChanged} {
		h.d.Dispatch(context.Background(), Event{Kind: kind})

		pending := h.timers.Pending()
		require.Len(t, pending, 2, kind.String())
		assert.Equal(t, models.PrimaryKey(2), pending[0].Key)
		assert.Equal(t, models.PrimaryKey(1), pending[1].Key)
		_, ok := h.pending(models.PrimaryKey(3))
		assert.False(t, ok)
	}

	assert.Equal(t, Armed, h.d.State(1))
	assert.Equal(t, Armed, h.d.State(2))
	assert.Equal(t, Idle, h.d.State(3))
	assert.Empty(t, h.ringer.started)
}

func TestPrimaryFireRearmsAndRings(t *testing.T) {
	alarm := weekdayAlarm()
	wednesday0730 := time.Date(2024, 1, 3, 7, 30, 0, 0, time.UTC)
	h := newHarness(wednesday0730, alarm)

	h.d.Dispatch(context.Background(), FromWake(models.WakePayload{RingParams: alarm.RingParams()}))

	at, ok := h.pending(models.PrimaryKey(1))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 5, 7, 30, 0, 0, time.UTC), at, "re-armed for Friday")
	require.Len(t, h.ringer.started, 1)
	assert.Equal(t, "Gym", h.ringer.started[0].Label)
	assert.Equal(t, Firing, h.d.State(1))
	require.Len(t, h.journal.entries, 1)
	assert.Equal(t, history.KindFired, h.journal.entries[0].Kind)
}

func TestPrimaryFireForDisabledOrMissingStillRings(t *testing.T) {
	disabled := weekdayAlarm()
	disabled.Enabled = false
	h := newHarness(tuesday0800, disabled)

	h.d.Dispatch(context.Background(), Event{Kind: PrimaryFire, AlarmID: 1, Params: disabled.RingParams()})
	h.d.Dispatch(context.Background(), Event{Kind: PrimaryFire, AlarmID: 42, Params: models.RingParams{Label: "ghost"}})

	assert.Empty(t, h.timers.Pending())
	require.Len(t, h.ringer.started, 2)
	assert.Equal(t, 42, h.ringer.started[1].AlarmID, "alarm id is carried into the params")
}

func TestPrimaryFireAfterDisableDoesNotRearm(t *testing.T) {
	alarm := weekdayAlarm()
	wednesday0730 := time.Date(2024, 1, 3, 7, 30, 0, 0, time.UTC)
	h := newHarness(wednesday0730, alarm)

	// The wake-up is already in flight when the user turns the alarm off.
	ev := FromWake(models.WakePayload{RingParams: alarm.RingParams()})
	require.NoError(t, h.manager.Toggle(1, false))
	h.d.Dispatch(context.Background(), ev)

	_, ok := h.pending(models.PrimaryKey(1))
	assert.False(t, ok)
	assert.Len(t, h.ringer.started, 1, "the in-flight ring still sounds")

	require.NoError(t, h.manager.Toggle(1, true))
	require.NoError(t, h.manager.Delete(1))
	h.d.Dispatch(context.Background(), ev)
	assert.Empty(t, h.timers.Pending())
}

func TestSnoozeFireNeverRearms(t *testing.T) {
	alarm := weekdayAlarm()
	h := newHarness(tuesday0800, alarm)

	payload := models.WakePayload{RingParams: alarm.RingParams(), TriggerAt: tuesday0800}
	ev := FromWake(payload)
	require.Equal(t, SnoozeFire, ev.Kind)

	h.d.Dispatch(context.Background(), ev)
	assert.Empty(t, h.timers.Pending())
	assert.Len(t, h.ringer.started, 1)
	assert.Equal(t, history.KindSnoozeFired, h.journal.entries[0].Kind)
}

func TestEndToEndSnooze(t *testing.T) {
	alarm := weekdayAlarm()
	h := newHarness(tuesday0800, alarm)
	ctx := context.Background()

	h.d.Dispatch(ctx, Event{Kind: Boot})
	at, ok := h.pending(models.PrimaryKey(1))
	require.True(t, ok)
	wednesday0730 := time.Date(2024, 1, 3, 7, 30, 0, 0, time.UTC)
	assert.Equal(t, wednesday0730, at)

	// The timer fires on Wednesday.
	h.clock = wednesday0730
	for _, w := range dueWakes(h) {
		h.d.Dispatch(ctx, FromWake(w.Payload))
	}
	friday0730 := time.Date(2024, 1, 5, 7, 30, 0, 0, time.UTC)
	at, _ = h.pending(models.PrimaryKey(1))
	assert.Equal(t, friday0730, at)

	// User taps Snooze a few seconds later.
	h.clock = wednesday0730.Add(5 * time.Second)
	h.d.OnSnooze(h.ringer.started[0])
	assert.Equal(t, []int{1}, h.ringer.stopped)
	assert.Equal(t, Snoozed, h.d.State(1))

	snoozeAt, ok := h.pending(models.SnoozeKey(1))
	require.True(t, ok)
	assert.WithinDuration(t, h.clock.Add(10*time.Minute), snoozeAt, time.Second)
	at, _ = h.pending(models.PrimaryKey(1))
	assert.Equal(t, friday0730, at, "weekly recurrence untouched")

	// The snooze fires and does not touch the recurrence.
	h.clock = snoozeAt
	due := dueWakes(h)
	require.Len(t, due, 1)
	h.d.Dispatch(ctx, FromWake(due[0].Payload))
	at, _ = h.pending(models.PrimaryKey(1))
	assert.Equal(t, friday0730, at)
	assert.Len(t, h.ringer.started, 2)

	h.d.OnDismiss(1)
	assert.Equal(t, Armed, h.d.State(1))

	var kinds []history.Kind
	for _, e := range h.journal.entries {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []history.Kind{history.KindFired, history.KindSnoozed, history.KindSnoozeFired, history.KindDismissed}, kinds)
	assert.Equal(t, "Gym", h.journal.entries[3].Label)
}

func TestDismissForDisabledAlarmGoesIdle(t *testing.T) {
	alarm := weekdayAlarm()
	alarm.Enabled = false
	h := newHarness(tuesday0800, alarm)

	h.d.OnDismiss(1)
	h.d.OnDismiss(1)
	assert.Equal(t, []int{1, 1}, h.ringer.stopped)
	assert.Equal(t, Idle, h.d.State(1))
	assert.Empty(t, h.timers.Pending())
}

func TestJournalFailureDoesNotBlock(t *testing.T) {
	alarm := weekdayAlarm()
	h := newHarness(tuesday0800, alarm)
	h.journal.err = errors.New("disk full")

	h.d.Dispatch(context.Background(), Event{Kind: PrimaryFire, AlarmID: 1, Params: alarm.RingParams()})
	assert.Len(t, h.ringer.started, 1)
	_, ok := h.pending(models.PrimaryKey(1))
	assert.True(t, ok)
}

func TestNilJournal(t *testing.T) {
	alarm := weekdayAlarm()
	timers := platform.NewTimerService(true, nil)
	sched := scheduler.New(timers, nil, nil)
	d := New(alarms.New(&alarmList{alarm}, sched, nil), sched, &fakeRinger{}, nil, nil, nil)
	assert.NotPanics(t, func() { d.OnSnooze(alarm.RingParams()) })
}

// dueWakes pops due registrations the way the timer run loop does
func dueWakes(h *harness) []platform.Wake {
	var due []platform.Wake
	for _, reg := range h.timers.Pending() {
		if !reg.At.After(h.clock) {
			h.timers.Cancel(reg.Key)
			due = append(due, platform.Wake{Key: reg.Key, At: reg.At, Exact: reg.Exact, Payload: reg.Payload})
		}
	}
	return due
}
