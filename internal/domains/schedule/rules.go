package schedule

import (
	"time"

	"github.com/google/uuid"
)

// WeekdayMask is a bit set of weekdays, bit n = time.Weekday(n).
type WeekdayMask uint8

func (m WeekdayMask) Has(d time.Weekday) bool {
	return m&(1<<uint(d)) != 0
}

func (m WeekdayMask) With(d time.Weekday) WeekdayMask {
	return m | (1 << uint(d))
}

// MaskOf builds a mask from explicit weekdays.
func MaskOf(days ...time.Weekday) WeekdayMask {
	var m WeekdayMask
	for _, d := range days {
		m = m.With(d)
	}
	return m
}

// Weekdays expands the mask back into a sorted slice, for API responses.
func (m WeekdayMask) Weekdays() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if m.Has(d) {
			days = append(days, d)
		}
	}
	return days
}

// StatusRule is a recurring status window evaluated independently of
// presence: active when enabled, now's weekday is in the mask and the
// local time falls in [Start, End).
type StatusRule struct {
	ID       uuid.UUID   `json:"id"`
	Emoji    string      `json:"emoji"`
	Text     string      `json:"text"`
	Start    MinuteOfDay `json:"start"`
	End      MinuteOfDay `json:"end"`
	Weekdays WeekdayMask `json:"weekdays"`
	Enabled  bool        `json:"enabled"`
}

func (r StatusRule) Matches(now time.Time) bool {
	if !r.Enabled || !r.Weekdays.Has(now.Weekday()) {
		return false
	}
	m := MinuteOf(now)
	return m >= r.Start && m < r.End
}

// ExpiresAt is the epoch second the rule's window closes today.
func (r StatusRule) ExpiresAt(now time.Time) int64 {
	end := time.Date(now.Year(), now.Month(), now.Day(), r.End.Hour(), r.End.Minute(), 0, 0, now.Location())
	return end.Unix()
}

// FirstMatching returns the first enabled rule covering now, or nil.
func FirstMatching(rules []StatusRule, now time.Time) *StatusRule {
	for i := range rules {
		if rules[i].Matches(now) {
			return &rules[i]
		}
	}
	return nil
}
