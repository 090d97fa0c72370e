package calendar

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/borgmon/wakeup/pkg/models"
	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"
	"go.uber.org/zap"
)

// Import reads alarms from an iCalendar document. Each VEVENT recurring daily
// or weekly becomes one alarm at its DTSTART wall-clock time in loc. One-off
// and other recurrences are skipped. Returned alarms carry no id.
func Import(r io.Reader, loc *time.Location, logger *zap.Logger) ([]models.Alarm, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}
	if err := isICalendar(string(body)); err != nil {
		return nil, err
	}

	dec := ical.NewDecoder(strings.NewReader(string(body)))
	var alarms []models.Alarm
	seen := make(map[string]bool)
	skipped := 0

	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, models.Errorf(models.ErrInvalid, "decode calendar: %v", err)
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			a, err := parseAlarm(comp, loc)
			if err != nil {
				skipped++
				logger.Debug("Skipping event", zap.Error(err))
				continue
			}
			key := uidOf(comp) + "|" + a.Label + "|" + a.TimeString() + "|" + a.Days.String()
			if seen[key] {
				skipped++
				continue
			}
			seen[key] = true
			alarms = append(alarms, a)
		}
	}

	logger.Info("Calendar imported", zap.Int("alarms", len(alarms)), zap.Int("skipped", skipped))
	return alarms, nil
}

func parseAlarm(comp *ical.Component, loc *time.Location) (models.Alarm, error) {
	start, err := comp.Props.DateTime(ical.PropDateTimeStart, startLocation(comp, loc))
	if err != nil {
		return models.Alarm{}, fmt.Errorf("event %q: start: %w", uidOf(comp), err)
	}
	if start.IsZero() {
		return models.Alarm{}, fmt.Errorf("event %q has no start", uidOf(comp))
	}
	start = start.In(loc)

	rule, err := comp.Props.RecurrenceRule()
	if err != nil {
		return models.Alarm{}, fmt.Errorf("event %q: recurrence: %w", uidOf(comp), err)
	}
	if rule == nil {
		return models.Alarm{}, fmt.Errorf("event %q does not recur", uidOf(comp))
	}
	if status := comp.Props.Get(ical.PropStatus); status != nil && strings.EqualFold(status.Value, "CANCELLED") {
		return models.Alarm{}, fmt.Errorf("event %q is cancelled", uidOf(comp))
	}

	a := models.Alarm{
		Hour:    start.Hour(),
		Minute:  start.Minute(),
		Enabled: true,
	}
	switch rule.Freq {
	case rrule.DAILY:
	case rrule.WEEKLY:
		if len(rule.Byweekday) == 0 {
			a.Days = models.NewWeekdaySet(models.WeekdayOf(start.Weekday()))
		}
		for _, wd := range rule.Byweekday {
			if d, ok := dayOf(wd); ok {
				a.Days = a.Days.With(d)
			}
		}
	default:
		return models.Alarm{}, fmt.Errorf("event %q: unsupported frequency %v", uidOf(comp), rule.Freq)
	}

	if p := comp.Props.Get(ical.PropSummary); p != nil {
		a.Label, _ = p.Text()
	}
	if p := comp.Props.Get(ical.PropCategories); p != nil {
		if groups, err := p.TextList(); err == nil && len(groups) > 0 {
			a.GroupName = groups[0]
		}
	}
	return a.Normalize(), nil
}

func uidOf(comp *ical.Component) string {
	if p := comp.Props.Get(ical.PropUID); p != nil {
		return p.Value
	}
	return ""
}
