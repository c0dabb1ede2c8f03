package meeting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/presenced/pkg/Logger"
)

type stubProvider struct {
	events []Event
	err    error
	calls  int
}

func (p *stubProvider) EventsBetween(ctx context.Context, start, end time.Time) ([]Event, error) {
	p.calls++
	return p.events, p.err
}

func testConfig() Config {
	return Config{
		CacheTTL:    5 * time.Minute,
		TriggerBusy: true,
		OOOEnabled:  true,
	}
}

func newTestMeetingSource(cfg Config, provider CalendarProvider, now time.Time) *Source {
	s := New(cfg, provider, Logger.Nop())
	s.nowFn = func() time.Time { return now }
	return s
}

func TestCheckDetectsOverlappingBusyEvent(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := now.Add(30 * time.Minute)
	provider := &stubProvider{events: []Event{
		{Start: now.Add(-10 * time.Minute), End: end, Availability: AvailabilityBusy, Title: "Design review"},
	}}
	s := newTestMeetingSource(testConfig(), provider, now)

	s.Check(context.Background())

	snap := s.Snapshot()
	assert.True(t, snap.InMeeting)
	require.NotNil(t, snap.MeetingEnd)
	assert.Equal(t, end, *snap.MeetingEnd)
	assert.Equal(t, "Design review", snap.MeetingTitle)
	assert.False(t, snap.OOO)
}

func TestCheckIgnoresNonTriggeringEvents(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	window := func(a Availability, allDay bool) Event {
		return Event{Start: now.Add(-time.Hour), End: now.Add(time.Hour), Availability: a, IsAllDay: allDay}
	}

	cases := []struct {
		name string
		ev   Event
	}{
		{"tentative not triggering", window(AvailabilityTentative, false)},
		{"free not triggering", window(AvailabilityFree, false)},
		{"all-day busy", window(AvailabilityBusy, true)},
		{"already ended", Event{Start: now.Add(-2 * time.Hour), End: now.Add(-time.Hour), Availability: AvailabilityBusy}},
		{"not started", Event{Start: now.Add(time.Hour), End: now.Add(2 * time.Hour), Availability: AvailabilityBusy}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestMeetingSource(testConfig(), &stubProvider{events: []Event{tc.ev}}, now)
			s.Check(context.Background())
			assert.False(t, s.Snapshot().InMeeting)
		})
	}
}

func TestCheckRespectsCalendarSelection(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	ev := Event{Start: now.Add(-time.Hour), End: now.Add(time.Hour), Availability: AvailabilityBusy, CalendarID: "personal"}

	cfg := testConfig()
	cfg.SelectedCalendarIDs = []string{"work"}
	s := newTestMeetingSource(cfg, &stubProvider{events: []Event{ev}}, now)
	s.Check(context.Background())
	assert.False(t, s.Snapshot().InMeeting)

	cfg.SelectedCalendarIDs = []string{"work", "personal"}
	s = newTestMeetingSource(cfg, &stubProvider{events: []Event{ev}}, now)
	s.Check(context.Background())
	assert.True(t, s.Snapshot().InMeeting)
}

func TestCheckDetectsOOO(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	end := now.Add(8 * time.Hour)
	// All-day unavailable events count for OOO even though they never count
	// as meetings.
	ev := Event{Start: now.Add(-10 * time.Hour), End: end, Availability: AvailabilityUnavailable, IsAllDay: true}

	s := newTestMeetingSource(testConfig(), &stubProvider{events: []Event{ev}}, now)
	s.Check(context.Background())

	snap := s.Snapshot()
	assert.True(t, snap.OOO)
	require.NotNil(t, snap.OOOEnd)
	assert.Equal(t, end, *snap.OOOEnd)
	assert.False(t, snap.InMeeting)

	cfg := testConfig()
	cfg.OOOEnabled = false
	s = newTestMeetingSource(cfg, &stubProvider{events: []Event{ev}}, now)
	s.Check(context.Background())
	assert.False(t, s.Snapshot().OOO)
}

func TestCheckCachesUntilInvalidated(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	provider := &stubProvider{}
	s := newTestMeetingSource(testConfig(), provider, now)

	ctx := context.Background()
	s.Check(ctx)
	s.Check(ctx)
	assert.Equal(t, 1, provider.calls)

	s.Invalidate()
	s.Check(ctx)
	assert.Equal(t, 2, provider.calls)
}

func TestCheckFetchFailureKeepsPreviousEvaluation(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	provider := &stubProvider{events: []Event{
		{Start: now.Add(-time.Hour), End: now.Add(time.Hour), Availability: AvailabilityBusy},
	}}
	s := newTestMeetingSource(testConfig(), provider, now)

	ctx := context.Background()
	s.Check(ctx)
	require.True(t, s.Snapshot().InMeeting)

	provider.err = errors.New("calendar store unavailable")
	s.Invalidate()
	s.Check(ctx)
	assert.True(t, s.Snapshot().InMeeting)
}

func TestOnMeetingChangeFiresOnTransitions(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	provider := &stubProvider{events: []Event{
		{Start: now.Add(-time.Hour), End: now.Add(time.Hour), Availability: AvailabilityBusy, Title: "1:1"},
	}}
	s := newTestMeetingSource(testConfig(), provider, now)

	var fired []bool
	s.OnMeetingChange(func(inMeeting bool, end time.Time, title string) { fired = append(fired, inMeeting) })

	ctx := context.Background()
	s.Check(ctx)
	s.Check(ctx)

	provider.events = nil
	s.Invalidate()
	s.Check(ctx)

	assert.Equal(t, []bool{true, false}, fired)
}
