package schedule

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrInvalidWindow = errors.New("schedule window start must be before end")
	ErrRuleNotFound  = errors.New("status rule not found")
)

// PauseCapMinutes caps any notification pause at 12 hours.
const PauseCapMinutes = 12 * 60

// MinuteOfDay is a local-time offset from midnight, 0..1439.
type MinuteOfDay int

func (m MinuteOfDay) Hour() int   { return int(m) / 60 }
func (m MinuteOfDay) Minute() int { return int(m) % 60 }

// MinuteOf converts a wall clock reading to its minute-of-day offset.
func MinuteOf(t time.Time) MinuteOfDay {
	return MinuteOfDay(t.Hour()*60 + t.Minute())
}

// State is the schedule's verdict for a point in time. Unmanaged means the
// day's entry is disabled and presence must be left alone entirely; it is
// deliberately distinct from Away.
type State int

const (
	StateUnmanaged State = iota
	StateActive
	StateAway
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateAway:
		return "away"
	default:
		return "unmanaged"
	}
}

// DaySchedule is one weekday's work-hours window.
type DaySchedule struct {
	Enabled bool        `json:"enabled"`
	Start   MinuteOfDay `json:"start"`
	End     MinuteOfDay `json:"end"`
}

// Table holds one DaySchedule per weekday, indexed by time.Weekday
// (Sunday = 0). It is a value type: callers always work on snapshots, so a
// concurrent edit never changes an evaluation mid-pass.
type Table [7]DaySchedule

// Validate rejects windows that end before they start.
func (t Table) Validate() error {
	for _, d := range t {
		if d.Enabled && d.Start >= d.End {
			return ErrInvalidWindow
		}
	}
	return nil
}

// Evaluate yields the schedule verdict for now's weekday and local time.
func (t Table) Evaluate(now time.Time) State {
	day := t[now.Weekday()]
	if !day.Enabled {
		return StateUnmanaged
	}
	m := MinuteOf(now)
	if m >= day.Start && m < day.End {
		return StateActive
	}
	return StateAway
}

// MinutesUntilActive reports how long until the schedule next turns Active:
// today's start if it has not begun, otherwise the next enabled day's start.
// The result is capped at PauseCapMinutes, which is also the fallback when
// every day is disabled.
func (t Table) MinutesUntilActive(now time.Time) int {
	m := MinuteOf(now)
	today := t[now.Weekday()]
	if today.Enabled {
		if m < today.Start {
			return capMinutes(int(today.Start - m))
		}
		if m < today.End {
			return 0
		}
	}
	// Scan forward up to a week for the next enabled day.
	for offset := 1; offset <= 7; offset++ {
		day := t[(int(now.Weekday())+offset)%7]
		if !day.Enabled {
			continue
		}
		mins := offset*24*60 - int(m) + int(day.Start)
		return capMinutes(mins)
	}
	return PauseCapMinutes
}

func capMinutes(v int) int {
	if v > PauseCapMinutes {
		return PauseCapMinutes
	}
	if v < 1 {
		return 1
	}
	return v
}

// DefaultTable is the seed used on first run: 09:00-17:00, Monday-Friday.
func DefaultTable() Table {
	var t Table
	for wd := time.Monday; wd <= time.Friday; wd++ {
		t[wd] = DaySchedule{Enabled: true, Start: 9 * 60, End: 17 * 60}
	}
	return t
}
