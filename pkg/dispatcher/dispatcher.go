// Package dispatcher is the single entry point for everything that moves an
// alarm through its lifecycle: boot, clock changes, timer firings and the
// Snooze and Dismiss actions.
package dispatcher

import (
	"context"
	"sync"
	"time"

	"github.com/borgmon/wakeup/pkg/history"
	"github.com/borgmon/wakeup/pkg/models"
	"go.uber.org/zap"
)

type Kind int

const (
	Boot Kind = iota
	LockedBoot
	TimeChanged
	TimezoneChanged
	PrimaryFire
	SnoozeFire
	DismissAction
	SnoozeAction
)

func (k Kind) String() string {
	switch k {
	case Boot:
		return "boot"
	case LockedBoot:
		return "locked_boot"
	case TimeChanged:
		return "time_changed"
	case TimezoneChanged:
		return "timezone_changed"
	case PrimaryFire:
		return "primary_fire"
	case SnoozeFire:
		return "snooze_fire"
	case DismissAction:
		return "dismiss"
	case SnoozeAction:
		return "snooze"
	default:
		return "unknown"
	}
}

// Event is the one inbound event type
type Event struct {
	Kind      Kind
	AlarmID   int
	Params    models.RingParams
	TriggerAt time.Time // set on snooze-originated firings
}

// FromWake converts a fired registration into its event
func FromWake(p models.WakePayload) Event {
	ev := Event{Kind: PrimaryFire, AlarmID: p.AlarmID, Params: p.RingParams}
	if p.IsSnooze() {
		ev.Kind = SnoozeFire
		ev.TriggerAt = p.TriggerAt
	}
	return ev
}

// State is an alarm's lifecycle state
type State string

const (
	Idle    State = "idle"
	Armed   State = "armed"
	Firing  State = "firing"
	Snoozed State = "snoozed"
)

// Alarms is the serialized view of the alarm list. Rearm and RescheduleAll
// must not interleave with edits to the list.
type Alarms interface {
	List() []models.Alarm
	Rearm(alarmID int) (time.Time, bool)
	RescheduleAll() []models.Alarm
}

type Scheduler interface {
	Snooze(params models.RingParams) time.Time
}

type Ringer interface {
	Start(params models.RingParams)
	Stop(alarmID int)
}

type Journal interface {
	Record(ctx context.Context, e history.Entry) error
}

type Dispatcher struct {
	alarms  Alarms
	sched   Scheduler
	ringer  Ringer
	journal Journal
	now     func() time.Time
	logger  *zap.Logger

	mu     sync.Mutex
	states map[int]State
}

// New creates a dispatcher. journal may be nil.
func New(alarms Alarms, sched Scheduler, ringer Ringer, journal Journal, now func() time.Time, logger *zap.Logger) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		alarms:  alarms,
		sched:   sched,
		ringer:  ringer,
		journal: journal,
		now:     now,
		logger:  logger,
		states:  make(map[int]State),
	}
}

// Dispatch applies one event. It never fails; problems are logged and the
// remaining work carries on.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	if ev.Params.AlarmID == 0 {
		ev.Params.AlarmID = ev.AlarmID
	}
	if ev.AlarmID == 0 {
		ev.AlarmID = ev.Params.AlarmID
	}
	d.logger.Debug("Dispatching", zap.Stringer("event", ev.Kind), zap.Int("alarm_id", ev.AlarmID))

	switch ev.Kind {
	case Boot, LockedBoot, TimeChanged, TimezoneChanged:
		d.rescheduleAll(ev.Kind)
	case PrimaryFire:
		d.primaryFire(ctx, ev)
	case SnoozeFire:
		d.snoozeFire(ctx, ev)
	case DismissAction:
		d.dismiss(ctx, ev)
	case SnoozeAction:
		d.snooze(ctx, ev)
	default:
		d.logger.Warn("Unknown event", zap.Int("kind", int(ev.Kind)))
	}
}

// OnDismiss is the Dismiss action of the ring window and notification
func (d *Dispatcher) OnDismiss(alarmID int) {
	d.Dispatch(context.Background(), Event{Kind: DismissAction, AlarmID: alarmID})
}

// OnSnooze is the Snooze action of the ring window and notification
func (d *Dispatcher) OnSnooze(params models.RingParams) {
	d.Dispatch(context.Background(), Event{Kind: SnoozeAction, AlarmID: params.AlarmID, Params: params})
}

// State returns the lifecycle state of an alarm
func (d *Dispatcher) State(alarmID int) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.states[alarmID]; ok {
		return s
	}
	return Idle
}

func (d *Dispatcher) setState(alarmID int, s State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states[alarmID] = s
}

func (d *Dispatcher) rescheduleAll(kind Kind) {
	alarms := d.alarms.RescheduleAll()

	for _, a := range alarms {
		switch {
		case !a.Enabled:
			d.setState(a.ID, Idle)
		case d.State(a.ID) == Idle:
			d.setState(a.ID, Armed)
		}
	}
	d.logger.Info("Alarms restored", zap.Stringer("reason", kind), zap.Int("count", len(alarms)))
}

func (d *Dispatcher) find(alarmID int) (models.Alarm, bool) {
	for _, a := range d.alarms.List() {
		if a.ID == alarmID {
			return a, true
		}
	}
	return models.Alarm{}, false
}

func (d *Dispatcher) primaryFire(ctx context.Context, ev Event) {
	// Re-arm before ringing so a failed ring never loses the next occurrence.
	if next, ok := d.alarms.Rearm(ev.AlarmID); ok {
		d.logger.Info("Alarm re-armed", zap.Int("alarm_id", ev.AlarmID), zap.Time("trigger_at", next))
	} else {
		d.logger.Info("Alarm fired but is gone or disabled, not re-arming", zap.Int("alarm_id", ev.AlarmID))
	}

	d.setState(ev.AlarmID, Firing)
	d.ringer.Start(ev.Params)
	d.record(ctx, ev, history.KindFired)
}

// snoozeFire rings without touching the recurrence
func (d *Dispatcher) snoozeFire(ctx context.Context, ev Event) {
	d.setState(ev.AlarmID, Firing)
	d.ringer.Start(ev.Params)
	d.record(ctx, ev, history.KindSnoozeFired)
}

func (d *Dispatcher) dismiss(ctx context.Context, ev Event) {
	d.ringer.Stop(ev.AlarmID)

	alarm, ok := d.find(ev.AlarmID)
	if ok && ev.Params.Label == "" {
		ev.Params.Label = alarm.Normalize().Label
	}
	if ok && alarm.Enabled {
		d.setState(ev.AlarmID, Armed)
	} else {
		d.setState(ev.AlarmID, Idle)
	}
	d.record(ctx, ev, history.KindDismissed)
}

func (d *Dispatcher) snooze(ctx context.Context, ev Event) {
	d.ringer.Stop(ev.AlarmID)

	at := d.sched.Snooze(ev.Params)
	d.setState(ev.AlarmID, Snoozed)
	d.logger.Info("Alarm snoozed", zap.Int("alarm_id", ev.AlarmID), zap.Time("trigger_at", at))
	d.record(ctx, ev, history.KindSnoozed)
}

func (d *Dispatcher) record(ctx context.Context, ev Event, kind history.Kind) {
	if d.journal == nil {
		return
	}
	e := history.Entry{AlarmID: ev.AlarmID, Kind: kind, Label: ev.Params.Label, At: d.now()}
	if err := d.journal.Record(ctx, e); err != nil {
		d.logger.Warn("Failed to journal ring event", zap.Int("alarm_id", ev.AlarmID), zap.Error(err))
	}
}
