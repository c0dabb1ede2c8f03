package presence

import (
	"time"

	"github.com/xpanvictor/presenced/internal/domains/schedule"
)

// Decide turns one snapshot of signals into the target the remote service
// should show. It is a pure function: no locks, no I/O, no clock reads
// beyond sig.Now.
//
// Status layers, highest priority first:
//  1. manual in-call
//  2. manual in-meeting
//  3. auto in-call (suppressed while an auto meeting is active, so the
//     badge does not flap between "in call" and "in meeting")
//  4. auto in-meeting, expiring at the meeting's end
//  5. out of office, expiring at the OOO window's end
//  6. first matching scheduled status rule
//
// Presence layers, highest priority first: explicit override, OOO forcing
// Away, then the work-hours schedule. A disabled day leaves presence
// unmanaged rather than Away.
func Decide(sig Signals, msg Messages) Target {
	t := Target{Presence: PresenceUnknown}

	oooActive := sig.OOO && msg.OOOEnabled

	// Status resolution.
	switch {
	case sig.InCall && sig.InCallManual:
		t.Status = Status{Emoji: msg.CallEmoji, Text: msg.CallText}
	case sig.InMeetingManual:
		t.Status = Status{Emoji: msg.MeetingEmoji, Text: msg.MeetingText}
	case sig.InCall && !sig.InMeeting:
		t.Status = Status{Emoji: msg.CallEmoji, Text: msg.CallText}
	case sig.InMeeting:
		t.Status = Status{Emoji: msg.MeetingEmoji, Text: msg.MeetingText, ExpiresAt: epoch(sig.MeetingEnd)}
	case oooActive:
		t.Status = Status{Emoji: msg.OOOEmoji, Text: msg.OOOText, ExpiresAt: epoch(sig.OOOEnd)}
	case sig.ScheduledStatus != nil:
		t.Status = *sig.ScheduledStatus
	}

	// Presence resolution.
	switch {
	case sig.PresenceOverride != nil:
		t.Presence = *sig.PresenceOverride
		t.ManagePresence = true
		t.PresenceSource = SourceOverride
	case oooActive:
		t.Presence = PresenceAway
		t.ManagePresence = true
		t.PresenceSource = SourceOOO
		if msg.PauseOnOOO {
			t.PauseMinutes = minutesUntil(sig.Now, sig.OOOEnd)
		}
	case sig.Schedule == schedule.StateUnmanaged:
		t.ManagePresence = false
		t.PresenceSource = SourceNone
	default:
		t.ManagePresence = true
		t.PresenceSource = SourceSchedule
		if sig.Schedule == schedule.StateActive {
			t.Presence = PresenceActive
		} else {
			t.Presence = PresenceAway
			if msg.PauseOnScheduleOff {
				t.PauseMinutes = sig.MinutesUntilActive
			}
		}
	}

	return t
}

func epoch(end time.Time) int64 {
	if end.IsZero() {
		return 0
	}
	return end.Unix()
}

func minutesUntil(now, end time.Time) int {
	if end.IsZero() || !end.After(now) {
		return 1
	}
	mins := int(end.Sub(now) / time.Minute)
	if mins < 1 {
		mins = 1
	}
	if mins > schedule.PauseCapMinutes {
		mins = schedule.PauseCapMinutes
	}
	return mins
}
