package presence

import (
	"time"

	"github.com/xpanvictor/presenced/internal/domains/schedule"
)

// Presence is the binary availability flag shown to other users, separate
// from the status text overlay.
type Presence string

const (
	PresenceActive  Presence = "active"
	PresenceAway    Presence = "away"
	PresenceUnknown Presence = "unknown"
)

// Status is the transient emoji+text overlay. ExpiresAt is epoch seconds,
// 0 meaning no expiration. The zero value means "no status set".
type Status struct {
	Emoji     string `json:"emoji"`
	Text      string `json:"text"`
	ExpiresAt int64  `json:"expiresAt"`
}

func (s Status) IsZero() bool {
	return s.Emoji == "" && s.Text == "" && s.ExpiresAt == 0
}

// Source names which priority layer decided the presence field of a target.
type Source string

const (
	SourceNone     Source = ""
	SourceOverride Source = "override"
	SourceOOO      Source = "ooo"
	SourceSchedule Source = "schedule"
)

// Signals is the snapshot of every input the reconciler decides from.
// The engine collects it with each owner's lock held one at a time; the
// decision itself runs lock free on the copy.
type Signals struct {
	Now time.Time

	// Call detection (debounced). InCallManual is true when the current
	// in-call state was forced by the user rather than detected.
	InCall       bool
	InCallManual bool

	// Meeting detection (debounced) plus the matched event's end and title.
	InMeeting    bool
	MeetingEnd   time.Time
	MeetingTitle string

	// Manual meeting override from the override store.
	InMeetingManual bool

	// Out of office detection.
	OOO    bool
	OOOEnd time.Time

	// Explicit presence override, nil when the user has not forced one.
	PresenceOverride *Presence

	// Work-hours schedule evaluation for Now.
	Schedule           schedule.State
	MinutesUntilActive int

	// First matching scheduled status rule, nil when none applies.
	ScheduledStatus *Status
}

// Messages carries the configured status templates the reconciler stamps
// onto targets.
type Messages struct {
	CallEmoji    string
	CallText     string
	MeetingEmoji string
	MeetingText  string
	OOOEmoji     string
	OOOText      string

	OOOEnabled         bool
	PauseOnOOO         bool
	PauseOnScheduleOff bool
}

// Target is the (presence, status) pair one reconciliation pass wants the
// remote service to show. ManagePresence is false on an unmanaged day:
// presence is then left alone entirely, which is distinct from Away.
type Target struct {
	Presence       Presence
	ManagePresence bool
	PresenceSource Source
	Status         Status
	// PauseMinutes > 0 asks for a notification pause of that length. It is
	// only honored on a transition, tracked by the applied state's DND flag.
	PauseMinutes int
}
