// Package trigger computes when an alarm fires next. Everything here is a pure
// function of the alarm's time of day, its weekday set and the reference time.
package trigger

import (
	"time"

	"github.com/borgmon/wakeup/pkg/models"
)

// Next returns the first instant strictly after now at which the alarm is due.
// The result is in now's location.
func Next(alarm models.Alarm, now time.Time) time.Time {
	if alarm.Days.IsEmpty() {
		return nextDaily(alarm, now)
	}

	var best time.Time
	for _, d := range alarm.Days.Days() {
		offset := (int(d.TimeWeekday()) - int(now.Weekday()) + 7) % 7
		candidate := atDayOffset(alarm, now, offset)
		if offset == 0 && !candidate.After(now) {
			candidate = atDayOffset(alarm, now, 7)
		}
		if best.IsZero() || candidate.Before(best) {
			best = candidate
		}
	}

	if best.IsZero() {
		return nextDaily(alarm, now)
	}
	return best
}

// Upcoming returns the next n trigger instants after now
func Upcoming(alarm models.Alarm, now time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	from := now
	for i := 0; i < n; i++ {
		next := Next(alarm, from)
		out = append(out, next)
		from = next
	}
	return out
}

func nextDaily(alarm models.Alarm, now time.Time) time.Time {
	candidate := atDayOffset(alarm, now, 0)
	if !candidate.After(now) {
		candidate = atDayOffset(alarm, now, 1)
	}
	return candidate
}

// atDayOffset builds hh:mm:00.000 on the calendar day offset days after now's
// date. Calendar arithmetic keeps the wall-clock time across DST changes.
func atDayOffset(alarm models.Alarm, now time.Time, offset int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+offset, alarm.Hour, alarm.Minute, 0, 0, now.Location())
}
