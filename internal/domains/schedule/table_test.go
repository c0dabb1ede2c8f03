package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mon 2026-03-02 is a convenient anchor: local weekday arithmetic stays in
// one week.
func at(day time.Weekday, hour, min int) time.Time {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.Local) // Sunday
	return base.AddDate(0, 0, int(day)).Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func TestTableEvaluate(t *testing.T) {
	table := DefaultTable()

	assert.Equal(t, StateActive, table.Evaluate(at(time.Monday, 9, 0)))
	assert.Equal(t, StateActive, table.Evaluate(at(time.Monday, 16, 59)))
	assert.Equal(t, StateAway, table.Evaluate(at(time.Monday, 17, 0)))
	assert.Equal(t, StateAway, table.Evaluate(at(time.Monday, 8, 59)))
	assert.Equal(t, StateUnmanaged, table.Evaluate(at(time.Sunday, 12, 0)))
	assert.Equal(t, StateUnmanaged, table.Evaluate(at(time.Saturday, 12, 0)))
}

func TestTableValidate(t *testing.T) {
	table := DefaultTable()
	require.NoError(t, table.Validate())

	table[time.Monday] = DaySchedule{Enabled: true, Start: 17 * 60, End: 9 * 60}
	assert.ErrorIs(t, table.Validate(), ErrInvalidWindow)

	// A disabled day's window is not checked.
	table[time.Monday] = DaySchedule{Enabled: false, Start: 17 * 60, End: 9 * 60}
	assert.NoError(t, table.Validate())
}

func TestMinutesUntilActive(t *testing.T) {
	table := DefaultTable()

	// Before today's window: minutes until 09:00.
	assert.Equal(t, 120, table.MinutesUntilActive(at(time.Monday, 7, 0)))
	// Inside the window.
	assert.Equal(t, 0, table.MinutesUntilActive(at(time.Monday, 12, 0)))
	// After hours: next morning at 09:00, capped at 12h.
	assert.Equal(t, PauseCapMinutes, table.MinutesUntilActive(at(time.Monday, 18, 0)))
	// Late enough that the next 09:00 is under the cap.
	assert.Equal(t, 10*60, table.MinutesUntilActive(at(time.Monday, 23, 0)))
	// Weekend gap is capped too.
	assert.Equal(t, PauseCapMinutes, table.MinutesUntilActive(at(time.Saturday, 10, 0)))

	// Every day disabled: fallback cap.
	var empty Table
	assert.Equal(t, PauseCapMinutes, empty.MinutesUntilActive(at(time.Monday, 10, 0)))
}

func TestStatusRuleMatches(t *testing.T) {
	rule := StatusRule{
		Text:     "standup",
		Start:    10 * 60,
		End:      10*60 + 30,
		Weekdays: MaskOf(time.Monday, time.Wednesday),
		Enabled:  true,
	}

	assert.True(t, rule.Matches(at(time.Monday, 10, 0)))
	assert.True(t, rule.Matches(at(time.Monday, 10, 29)))
	assert.False(t, rule.Matches(at(time.Monday, 10, 30)))
	assert.False(t, rule.Matches(at(time.Tuesday, 10, 15)))

	rule.Enabled = false
	assert.False(t, rule.Matches(at(time.Monday, 10, 15)))
}

func TestStatusRuleExpiresAt(t *testing.T) {
	rule := StatusRule{Start: 10 * 60, End: 10*60 + 30, Weekdays: MaskOf(time.Monday), Enabled: true}
	now := at(time.Monday, 10, 5)
	want := at(time.Monday, 10, 30).Unix()
	assert.Equal(t, want, rule.ExpiresAt(now))
}

func TestFirstMatching(t *testing.T) {
	rules := []StatusRule{
		{Text: "focus", Start: 9 * 60, End: 12 * 60, Weekdays: MaskOf(time.Tuesday), Enabled: true},
		{Text: "standup", Start: 10 * 60, End: 11 * 60, Weekdays: MaskOf(time.Monday), Enabled: true},
		{Text: "late", Start: 10 * 60, End: 12 * 60, Weekdays: MaskOf(time.Monday), Enabled: true},
	}

	got := FirstMatching(rules, at(time.Monday, 10, 30))
	require.NotNil(t, got)
	assert.Equal(t, "standup", got.Text)

	assert.Nil(t, FirstMatching(rules, at(time.Friday, 10, 30)))
}

func TestWeekdayMaskRoundTrip(t *testing.T) {
	m := MaskOf(time.Sunday, time.Wednesday, time.Saturday)
	assert.Equal(t, []time.Weekday{time.Sunday, time.Wednesday, time.Saturday}, m.Weekdays())
	assert.True(t, m.Has(time.Wednesday))
	assert.False(t, m.Has(time.Thursday))
}
