package models

import (
	"fmt"
	"time"
)

// Purpose distinguishes the two registration slots an alarm can hold
type Purpose string

const (
	PurposePrimary Purpose = "primary"
	PurposeSnooze  Purpose = "snooze"
)

// snoozeKeyOffset moves snooze registrations into their own key space so they
// never collide with a primary registration. Alarm ids stay below it.
const snoozeKeyOffset = 1_000_000

// MaxAlarmID is the largest id whose two key codes stay disjoint
const MaxAlarmID = snoozeKeyOffset - 1

// WakeKey identifies one platform-held wake-up registration
type WakeKey struct {
	AlarmID int
	Purpose Purpose
}

func PrimaryKey(alarmID int) WakeKey {
	return WakeKey{AlarmID: alarmID, Purpose: PurposePrimary}
}

func SnoozeKey(alarmID int) WakeKey {
	return WakeKey{AlarmID: alarmID, Purpose: PurposeSnooze}
}

// Code returns the numeric registration key
func (k WakeKey) Code() int {
	if k.Purpose == PurposeSnooze {
		return k.AlarmID + snoozeKeyOffset
	}
	return k.AlarmID
}

func (k WakeKey) String() string {
	return fmt.Sprintf("%s-%d", k.Purpose, k.AlarmID)
}

// RingParams carries what a ringing session needs, independent of the store
type RingParams struct {
	AlarmID          int
	Label            string
	Sound            string
	Vibrate          bool
	VibrationPattern string
	SnoozeMinutes    int
}

// Normalize fills blank ringing parameters with their defaults
func (p RingParams) Normalize() RingParams {
	if p.Label == "" {
		p.Label = DefaultLabel
	}
	if p.Sound == "" {
		p.Sound = DefaultSound
	}
	if p.VibrationPattern == "" {
		p.VibrationPattern = DefaultVibrationPattern
	}
	if p.SnoozeMinutes < 1 {
		p.SnoozeMinutes = DefaultSnoozeMinutes
	}
	return p
}

// WakePayload is attached to a registration and handed back when it fires
type WakePayload struct {
	RingParams

	// TriggerAt is set only on snooze registrations and marks the firing as
	// snooze-originated.
	TriggerAt time.Time
}

func (p WakePayload) IsSnooze() bool {
	return !p.TriggerAt.IsZero()
}
