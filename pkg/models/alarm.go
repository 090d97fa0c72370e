package models

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	DefaultLabel            = "Alarm"
	DefaultGroupName        = "Default"
	DefaultSnoozeMinutes    = 10
	DefaultVibrationPattern = "pulse"

	// DefaultSound is the canonical sound id used when an alarm names none.
	DefaultSound = "american"
	// NoSound disables audio while keeping vibration and notification.
	NoSound = "none"
)

// Weekday is a day symbol as stored in the alarm record ("Mon".."Sun")
type Weekday string

const (
	Mon Weekday = "Mon"
	Tue Weekday = "Tue"
	Wed Weekday = "Wed"
	Thu Weekday = "Thu"
	Fri Weekday = "Fri"
	Sat Weekday = "Sat"
	Sun Weekday = "Sun"
)

// AllWeekdays lists the symbols in display order (Monday first)
var AllWeekdays = []Weekday{Mon, Tue, Wed, Thu, Fri, Sat, Sun}

// ParseWeekday maps a stored symbol to a Weekday, reporting false for unknown symbols
func ParseWeekday(s string) (Weekday, bool) {
	for _, d := range AllWeekdays {
		if strings.EqualFold(string(d), strings.TrimSpace(s)) {
			return d, true
		}
	}
	return "", false
}

// TimeWeekday converts to the standard library weekday
func (d Weekday) TimeWeekday() time.Weekday {
	switch d {
	case Mon:
		return time.Monday
	case Tue:
		return time.Tuesday
	case Wed:
		return time.Wednesday
	case Thu:
		return time.Thursday
	case Fri:
		return time.Friday
	case Sat:
		return time.Saturday
	default:
		return time.Sunday
	}
}

// WeekdayOf returns the symbol for a standard library weekday
func WeekdayOf(wd time.Weekday) Weekday {
	switch wd {
	case time.Monday:
		return Mon
	case time.Tuesday:
		return Tue
	case time.Wednesday:
		return Wed
	case time.Thursday:
		return Thu
	case time.Friday:
		return Fri
	case time.Saturday:
		return Sat
	default:
		return Sun
	}
}

// WeekdaySet is a set of weekdays. The zero value is the empty set, which for
// an alarm means "every day".
type WeekdaySet uint8

// NewWeekdaySet builds a set from symbols; duplicates collapse
func NewWeekdaySet(days ...Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

func (s WeekdaySet) bit(d Weekday) WeekdaySet {
	return 1 << uint(d.TimeWeekday())
}

// With returns the set including d
func (s WeekdaySet) With(d Weekday) WeekdaySet {
	return s | s.bit(d)
}

// Without returns the set excluding d
func (s WeekdaySet) Without(d Weekday) WeekdaySet {
	return s &^ s.bit(d)
}

func (s WeekdaySet) Has(d Weekday) bool {
	return s&s.bit(d) != 0
}

func (s WeekdaySet) IsEmpty() bool {
	return s == 0
}

func (s WeekdaySet) Len() int {
	n := 0
	for _, d := range AllWeekdays {
		if s.Has(d) {
			n++
		}
	}
	return n
}

// Days returns the members in display order
func (s WeekdaySet) Days() []Weekday {
	days := make([]Weekday, 0, 7)
	for _, d := range AllWeekdays {
		if s.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

func (s WeekdaySet) String() string {
	if s.IsEmpty() {
		return "Every day"
	}
	parts := make([]string, 0, 7)
	for _, d := range s.Days() {
		parts = append(parts, string(d))
	}
	return strings.Join(parts, ",")
}

// MarshalJSON encodes the set as an array of symbols
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	days := s.Days()
	return json.Marshal(days)
}

// UnmarshalJSON decodes an array of symbols, dropping unknown ones
func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var set WeekdaySet
	for _, r := range raw {
		if d, ok := ParseWeekday(r); ok {
			set = set.With(d)
		}
	}
	*s = set
	return nil
}

// Alarm is the durable alarm definition
type Alarm struct {
	ID               int        `json:"id"`
	Hour             int        `json:"hour"`   // 0-23
	Minute           int        `json:"minute"` // 0-59
	Label            string     `json:"label"`
	GroupName        string     `json:"groupName"`
	Enabled          bool       `json:"enabled"`
	Sound            string     `json:"sound"`
	SnoozeMinutes    int        `json:"snoozeMinutes"`
	Vibrate          bool       `json:"vibrate"`
	VibrationPattern string     `json:"vibrationPattern"`
	Days             WeekdaySet `json:"days"`
}

// NormalizeGroupName trims the name and falls back to "Default" when blank
func NormalizeGroupName(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return DefaultGroupName
	}
	return cleaned
}

// Normalize returns a copy with defaults applied to blank fields
func (a Alarm) Normalize() Alarm {
	if strings.TrimSpace(a.Label) == "" {
		a.Label = DefaultLabel
	}
	a.GroupName = NormalizeGroupName(a.GroupName)
	if strings.TrimSpace(a.Sound) == "" {
		a.Sound = DefaultSound
	}
	if a.SnoozeMinutes < 1 {
		a.SnoozeMinutes = DefaultSnoozeMinutes
	}
	if a.VibrationPattern == "" {
		a.VibrationPattern = DefaultVibrationPattern
	}
	return a
}

// Validate checks the fields the scheduler depends on
func (a Alarm) Validate() error {
	switch {
	case a.ID < 1:
		return Errorf(ErrInvalid, "alarm id must be positive, got %d", a.ID)
	case a.ID > MaxAlarmID:
		return Errorf(ErrInvalid, "alarm id %d exceeds %d", a.ID, MaxAlarmID)
	case a.Hour < 0 || a.Hour > 23:
		return Errorf(ErrInvalid, "alarm %d: hour %d out of range", a.ID, a.Hour)
	case a.Minute < 0 || a.Minute > 59:
		return Errorf(ErrInvalid, "alarm %d: minute %d out of range", a.ID, a.Minute)
	}
	return nil
}

// RingParams returns the parameters a ringing session needs for this alarm
func (a Alarm) RingParams() RingParams {
	n := a.Normalize()
	return RingParams{
		AlarmID:          n.ID,
		Label:            n.Label,
		Sound:            n.Sound,
		Vibrate:          n.Vibrate,
		VibrationPattern: n.VibrationPattern,
		SnoozeMinutes:    n.SnoozeMinutes,
	}
}

// TimeString formats the alarm time as HH:MM
func (a Alarm) TimeString() string {
	return time.Date(2000, 1, 1, a.Hour, a.Minute, 0, 0, time.UTC).Format("15:04")
}
