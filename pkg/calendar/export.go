// Package calendar converts the alarm schedule to and from iCalendar so it can
// be inspected in, or moved between, calendar applications.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/borgmon/wakeup/pkg/models"
	"github.com/borgmon/wakeup/pkg/trigger"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
	"github.com/teambition/rrule-go"
)

const (
	ProductID = "-//borgmon//wakeup//EN"

	floatingLayout = "20060102T150405"
	eventDuration  = time.Minute
)

// uidSpace makes exported UIDs stable per alarm id
var uidSpace = uuid.MustParse("7f6c1a52-4c0e-4d4b-9f38-1f0d6a3b2e91")

// weekdays maps models.Weekday to rrule weekdays, both Monday first
var weekdays = map[models.Weekday]rrule.Weekday{
	models.Mon: rrule.MO,
	models.Tue: rrule.TU,
	models.Wed: rrule.WE,
	models.Thu: rrule.TH,
	models.Fri: rrule.FR,
	models.Sat: rrule.SA,
	models.Sun: rrule.SU,
}

// Rule returns the recurrence of an alarm: daily when it has no days,
// otherwise weekly on its days
func Rule(alarm models.Alarm) *rrule.ROption {
	if alarm.Days.IsEmpty() {
		return &rrule.ROption{Freq: rrule.DAILY}
	}
	days := alarm.Days.Days()
	byday := make([]rrule.Weekday, 0, len(days))
	for _, d := range days {
		byday = append(byday, weekdays[d])
	}
	return &rrule.ROption{Freq: rrule.WEEKLY, Byweekday: byday}
}

// Occurrences expands the next n trigger instants after now
func Occurrences(alarm models.Alarm, now time.Time, n int) ([]time.Time, error) {
	if n <= 0 {
		return nil, nil
	}
	opt := Rule(alarm)
	opt.Dtstart = trigger.Next(alarm, now)
	opt.Count = n
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("build recurrence for alarm %d: %w", alarm.ID, err)
	}
	return r.All(), nil
}

// UID returns the stable event UID of an alarm
func UID(alarmID int) string {
	return uuid.NewSHA1(uidSpace, []byte(fmt.Sprintf("alarm-%d", alarmID))).String()
}

// Export builds a calendar holding one recurring event per enabled alarm.
// Start times are floating so the events follow the viewer's wall clock, the
// same way the alarms do.
func Export(alarms []models.Alarm, now time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, a := range alarms {
		if !a.Enabled || a.Validate() != nil {
			continue
		}
		cal.Children = append(cal.Children, event(a.Normalize(), now).Component)
	}
	return cal
}

// WriteICS encodes Export's calendar to w
func WriteICS(w io.Writer, alarms []models.Alarm, now time.Time) error {
	if err := ical.NewEncoder(w).Encode(Export(alarms, now)); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func event(a models.Alarm, now time.Time) *ical.Event {
	start := trigger.Next(a, now)

	ev := ical.NewEvent()
	ev.Props.SetText(ical.PropUID, UID(a.ID))
	ev.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	ev.Props.Set(floating(ical.PropDateTimeStart, start))
	ev.Props.Set(floating(ical.PropDateTimeEnd, start.Add(eventDuration)))
	ev.Props.SetText(ical.PropSummary, a.Label)
	ev.Props.SetText(ical.PropCategories, a.GroupName)
	ev.Props.SetRecurrenceRule(Rule(a))

	reminder := ical.NewComponent(ical.CompAlarm)
	action := ical.NewProp(ical.PropAction)
	action.Value = "DISPLAY"
	reminder.Props.Set(action)
	at := ical.NewProp(ical.PropTrigger)
	at.Value = "PT0S"
	reminder.Props.Set(at)
	reminder.Props.SetText(ical.PropDescription, a.Label)
	ev.Children = append(ev.Children, reminder)

	return ev
}

func floating(name string, t time.Time) *ical.Prop {
	p := ical.NewProp(name)
	p.Value = t.Format(floatingLayout)
	return p
}

// dayOf maps an rrule weekday back to the alarm's day symbol
func dayOf(wd rrule.Weekday) (models.Weekday, bool) {
	for d, r := range weekdays {
		if r.Day() == wd.Day() {
			return d, true
		}
	}
	return "", false
}

func isICalendar(body string) error {
	trimmed := strings.TrimSpace(body)
	upper := strings.ToUpper(trimmed)
	if strings.HasPrefix(upper, "<!DOCTYPE") || strings.HasPrefix(upper, "<HTML") {
		return models.Errorf(models.ErrInvalid, "received HTML instead of iCalendar data")
	}
	if !strings.HasPrefix(upper, "BEGIN:VCALENDAR") {
		preview := trimmed
		if len(preview) > 100 {
			preview = preview[:100]
		}
		return models.Errorf(models.ErrInvalid, "invalid iCalendar format, expected BEGIN:VCALENDAR, got: %s", preview)
	}
	return nil
}
