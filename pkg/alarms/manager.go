// Package alarms edits the alarm list: every change is persisted and the
// affected registrations are updated in the same call.
package alarms

import (
	"sort"
	"sync"
	"time"

	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/trigger"
	"go.uber.org/zap"
)

var ErrNotFound = models.Errorf(models.ErrNotFound, "alarm not found")

type Store interface {
	GetAlarms() []models.Alarm
	SetAlarms(alarms []models.Alarm)
}

type Scheduler interface {
	Schedule(alarm models.Alarm) time.Time
	Cancel(alarmID int)
	RescheduleAll(alarms []models.Alarm)
}

// Filter narrows the list. A nil Day or empty Group matches everything;
// alarms without days match every Day.
type Filter struct {
	Day   *models.Weekday
	Group string
}

// Upcoming is an enabled alarm and its next trigger instant
type Upcoming struct {
	Alarm models.Alarm
	At    time.Time
}

type Manager struct {
	mu       sync.Mutex
	store    Store
	sched    Scheduler
	logger   *zap.Logger
	onChange []func()
}

func New(store Store, sched Scheduler, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, sched: sched, logger: logger}
}

// OnChange registers a callback run after every successful change
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

func (m *Manager) List() []models.Alarm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.GetAlarms()
}

func (m *Manager) Get(id int) (models.Alarm, error) {
	for _, a := range m.List() {
		if a.ID == id {
			return a, nil
		}
	}
	return models.Alarm{}, ErrNotFound
}

// Create assigns the next id, stores the alarm and schedules it if enabled
func (m *Manager) Create(a models.Alarm) (models.Alarm, error) {
	m.mu.Lock()
	alarms := m.store.GetAlarms()
	a.ID = nextID(alarms)
	a = a.Normalize()
	if err := a.Validate(); err != nil {
		m.mu.Unlock()
		return models.Alarm{}, err
	}
	m.store.SetAlarms(append(alarms, a))
	if a.Enabled {
		m.sched.Schedule(a)
	}
	m.mu.Unlock()

	m.logger.Info("Alarm created", zap.Int("alarm_id", a.ID), zap.String("time", a.TimeString()))
	m.changed()
	return a, nil
}

// Update replaces an alarm; enabled alarms are rescheduled, disabled ones cancelled
func (m *Manager) Update(a models.Alarm) error {
	a = a.Normalize()
	if err := a.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	alarms := m.store.GetAlarms()
	i := indexOf(alarms, a.ID)
	if i < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	alarms[i] = a
	m.store.SetAlarms(alarms)
	m.apply(a)
	m.mu.Unlock()

	m.logger.Info("Alarm updated", zap.Int("alarm_id", a.ID))
	m.changed()
	return nil
}

// Toggle enables or disables one alarm
func (m *Manager) Toggle(id int, enabled bool) error {
	m.mu.Lock()
	alarms := m.store.GetAlarms()
	i := indexOf(alarms, id)
	if i < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	alarms[i].Enabled = enabled
	m.store.SetAlarms(alarms)
	m.apply(alarms[i])
	m.mu.Unlock()

	m.changed()
	return nil
}

// ToggleGroup enables or disables every alarm of a group and returns how
// many alarms it touched
func (m *Manager) ToggleGroup(name string, enabled bool) (int, error) {
	name = models.NormalizeGroupName(name)

	m.mu.Lock()
	alarms := m.store.GetAlarms()
	var affected []models.Alarm
	for i := range alarms {
		if alarms[i].Normalize().GroupName == name {
			alarms[i].Enabled = enabled
			affected = append(affected, alarms[i])
		}
	}
	if len(affected) == 0 {
		m.mu.Unlock()
		return 0, ErrNotFound
	}
	m.store.SetAlarms(alarms)
	for _, a := range affected {
		m.apply(a)
	}
	m.mu.Unlock()

	m.logger.Info("Group toggled", zap.String("group", name), zap.Bool("enabled", enabled), zap.Int("count", len(affected)))
	m.changed()
	return len(affected), nil
}

// Delete cancels both registrations, then removes the alarm
func (m *Manager) Delete(id int) error {
	m.mu.Lock()
	alarms := m.store.GetAlarms()
	i := indexOf(alarms, id)
	if i < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	m.sched.Cancel(id)
	m.store.SetAlarms(append(alarms[:i], alarms[i+1:]...))
	m.mu.Unlock()

	m.logger.Info("Alarm deleted", zap.Int("alarm_id", id))
	m.changed()
	return nil
}

// Rearm schedules the next occurrence of a fired alarm. It re-reads the
// alarm under the same lock as every edit, so a concurrent disable, delete
// or update is never undone. It reports false when the alarm is gone,
// disabled or invalid.
func (m *Manager) Rearm(id int) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alarms := m.store.GetAlarms()
	i := indexOf(alarms, id)
	if i < 0 || !alarms[i].Enabled {
		return time.Time{}, false
	}
	if err := alarms[i].Validate(); err != nil {
		m.logger.Warn("Not re-arming invalid alarm", zap.Int("alarm_id", id), zap.Error(err))
		return time.Time{}, false
	}
	return m.sched.Schedule(alarms[i]), true
}

// RescheduleAll re-registers every stored alarm and returns the set it used
func (m *Manager) RescheduleAll() []models.Alarm {
	m.mu.Lock()
	defer m.mu.Unlock()

	alarms := m.store.GetAlarms()
	m.sched.RescheduleAll(alarms)
	return alarms
}

func (m *Manager) Groups() []models.AlarmGroup {
	return models.BuildGroups(m.List())
}

func (m *Manager) Filter(f Filter) []models.Alarm {
	var out []models.Alarm
	for _, a := range m.List() {
		if f.Group != "" && a.Normalize().GroupName != f.Group {
			continue
		}
		if f.Day != nil && !a.Days.IsEmpty() && !a.Days.Has(*f.Day) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Upcoming returns the enabled alarms ordered by next trigger instant
func (m *Manager) Upcoming(now time.Time) []Upcoming {
	var out []Upcoming
	for _, a := range m.List() {
		if a.Enabled {
			out = append(out, Upcoming{Alarm: a, At: trigger.Next(a, now)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].At.Before(out[j].At)
	})
	return out
}

func (m *Manager) apply(a models.Alarm) {
	if a.Enabled {
		m.sched.Schedule(a)
	} else {
		m.sched.Cancel(a.ID)
	}
}

func (m *Manager) changed() {
	m.mu.Lock()
	fns := append([]func(){}, m.onChange...)
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func nextID(alarms []models.Alarm) int {
	max := 0
	for _, a := range alarms {
		if a.ID > max {
			max = a.ID
		}
	}
	return max + 1
}

func indexOf(alarms []models.Alarm, id int) int {
	for i, a := range alarms {
		if a.ID == id {
			return i
		}
	}
	return -1
}
