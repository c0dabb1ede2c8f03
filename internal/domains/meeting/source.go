package meeting

import (
	"context"
	"sync"
	"time"

	"github.com/xpanvictor/presenced/pkg/Logger"
)

// Availability mirrors the calendar provider's free/busy classification.
type Availability string

const (
	AvailabilityBusy        Availability = "busy"
	AvailabilityTentative   Availability = "tentative"
	AvailabilityFree        Availability = "free"
	AvailabilityUnavailable Availability = "unavailable"
)

// Event is one calendar event as reported by the facts provider.
type Event struct {
	Start        time.Time    `json:"start"`
	End          time.Time    `json:"end"`
	IsAllDay     bool         `json:"isAllDay"`
	Availability Availability `json:"availability"`
	CalendarID   string       `json:"calendarId"`
	Title        string       `json:"title"`
}

// CalendarProvider enumerates events overlapping a range. The OS-level
// implementation lives outside this engine.
type CalendarProvider interface {
	EventsBetween(ctx context.Context, start, end time.Time) ([]Event, error)
}

// Config selects which events count as meetings.
type Config struct {
	CacheTTL            time.Duration
	TriggerBusy         bool
	TriggerTentative    bool
	TriggerFree         bool
	SelectedCalendarIDs []string
	OOOEnabled          bool
}

// Snapshot is a copy of the source's externally visible state.
type Snapshot struct {
	InMeeting    bool       `json:"inMeeting"`
	MeetingEnd   *time.Time `json:"meetingEnd,omitempty"`
	MeetingTitle string     `json:"meetingTitle,omitempty"`
	OOO          bool       `json:"ooo"`
	OOOEnd       *time.Time `json:"oooEnd,omitempty"`
}

// Source derives stable in-meeting and out-of-office booleans from the
// calendar. There is no timer debounce: calendar data is already stable,
// so the booleans are simply the presence or absence of a matching event.
// Both booleans share one event cache for today, refreshed when stale or
// on an explicit calendar-changed signal.
type Source struct {
	mu sync.Mutex

	cfg      Config
	provider CalendarProvider
	logger   *Logger.Logger
	nowFn    func() time.Time

	events    []Event
	fetchedAt time.Time

	inMeeting    bool
	meetingEnd   time.Time
	meetingTitle string

	ooo    bool
	oooEnd time.Time

	onMeetingChange func(inMeeting bool, end time.Time, title string)
	onOOOChange     func(ooo bool, end time.Time)
}

func New(cfg Config, provider CalendarProvider, logger *Logger.Logger) *Source {
	return &Source{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		nowFn:    time.Now,
	}
}

func (s *Source) OnMeetingChange(fn func(inMeeting bool, end time.Time, title string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMeetingChange = fn
}

func (s *Source) OnOOOChange(fn func(ooo bool, end time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOOOChange = fn
}

// Invalidate marks the cache stale; the next check re-fetches. Wired to
// the external calendar-changed signal.
func (s *Source) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchedAt = time.Time{}
}

// Check refreshes the cache if needed and re-derives both booleans. A
// fetch failure is logged and leaves the previous evaluation standing.
func (s *Source) Check(ctx context.Context) {
	now := s.nowFunc()()

	s.mu.Lock()
	cfg := s.cfg
	stale := s.fetchedAt.IsZero() || now.Sub(s.fetchedAt) >= cfg.CacheTTL
	events := s.events
	s.mu.Unlock()

	if stale {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		fetched, err := s.provider.EventsBetween(ctx, dayStart, dayStart.Add(24*time.Hour))
		if err != nil {
			s.logger.Errorf("calendar fetch failed: %v", err)
			return
		}
		s.mu.Lock()
		s.events = fetched
		s.fetchedAt = now
		s.mu.Unlock()
		events = fetched
	}

	s.evaluate(cfg, events, now)
}

func (s *Source) evaluate(cfg Config, events []Event, now time.Time) {
	var (
		meeting *Event
		ooo     *Event
	)
	for i := range events {
		ev := &events[i]
		if !overlapping(ev, now) || !calendarSelected(cfg, ev.CalendarID) {
			continue
		}
		if meeting == nil && !ev.IsAllDay && triggers(cfg, ev.Availability) {
			meeting = ev
		}
		if ooo == nil && cfg.OOOEnabled && ev.Availability == AvailabilityUnavailable {
			ooo = ev
		}
	}

	s.mu.Lock()
	meetingChanged := (meeting != nil) != s.inMeeting
	oooChanged := (ooo != nil) != s.ooo

	s.inMeeting = meeting != nil
	if meeting != nil {
		s.meetingEnd = meeting.End
		s.meetingTitle = meeting.Title
	} else {
		s.meetingEnd = time.Time{}
		s.meetingTitle = ""
	}

	s.ooo = ooo != nil
	if ooo != nil {
		s.oooEnd = ooo.End
	} else {
		s.oooEnd = time.Time{}
	}

	inMeeting, meetingEnd, meetingTitle := s.inMeeting, s.meetingEnd, s.meetingTitle
	oooNow, oooEnd := s.ooo, s.oooEnd
	meetingCb := s.onMeetingChange
	oooCb := s.onOOOChange
	s.mu.Unlock()

	if meetingChanged && meetingCb != nil {
		meetingCb(inMeeting, meetingEnd, meetingTitle)
	}
	if oooChanged && oooCb != nil {
		oooCb(oooNow, oooEnd)
	}
}

func triggers(cfg Config, a Availability) bool {
	switch a {
	case AvailabilityBusy:
		return cfg.TriggerBusy
	case AvailabilityTentative:
		return cfg.TriggerTentative
	case AvailabilityFree:
		return cfg.TriggerFree
	}
	return false
}

// calendarSelected applies the user's calendar selection; an empty
// selection means every calendar counts.
func calendarSelected(cfg Config, id string) bool {
	if len(cfg.SelectedCalendarIDs) == 0 {
		return true
	}
	for _, sel := range cfg.SelectedCalendarIDs {
		if sel == id {
			return true
		}
	}
	return false
}

func overlapping(ev *Event, now time.Time) bool {
	return !ev.Start.After(now) && now.Before(ev.End)
}

func (s *Source) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{InMeeting: s.inMeeting, MeetingTitle: s.meetingTitle, OOO: s.ooo}
	if !s.meetingEnd.IsZero() {
		t := s.meetingEnd
		snap.MeetingEnd = &t
	}
	if !s.oooEnd.IsZero() {
		t := s.oooEnd
		snap.OOOEnd = &t
	}
	return snap
}

// SetConfig applies reloaded trigger settings and invalidates the cache so
// the next check re-evaluates against them.
func (s *Source) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.fetchedAt = time.Time{}
}

func (s *Source) nowFunc() func() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowFn
}
