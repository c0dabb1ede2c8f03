package engine

import "time"

// EventKind tags a typed state-change event consumed by the shell.
type EventKind string

const (
	EventPresenceChanged   EventKind = "presence_changed"
	EventStatusChanged     EventKind = "status_changed"
	EventCallChanged       EventKind = "call_changed"
	EventMeetingChanged    EventKind = "meeting_changed"
	EventOOOChanged        EventKind = "ooo_changed"
	EventSynced            EventKind = "synced"
	EventSyncError         EventKind = "sync_error"
	EventCredentialInvalid EventKind = "credential_invalid"
	EventConnectivity      EventKind = "connectivity"
)

// Event is one state change announced to the shell. The engine never
// reaches into UI code; it only emits these.
type Event struct {
	Kind     EventKind `json:"kind"`
	Presence string    `json:"presence,omitempty"`
	Status   string    `json:"status,omitempty"`
	Bool     bool      `json:"value,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}

// emit never blocks: if the shell is not draining, the oldest unread event
// is simply lost. The /state endpoint is always authoritative.
func (e *Engine) emit(ev Event) {
	ev.At = e.nowFn()
	select {
	case e.events <- ev:
	default:
		select {
		case <-e.events:
		default:
		}
		select {
		case e.events <- ev:
		default:
		}
	}
}

// Events exposes the state-change stream. Single consumer: the websocket
// hub fans it out to connected shells.
func (e *Engine) Events() <-chan Event {
	return e.events
}
