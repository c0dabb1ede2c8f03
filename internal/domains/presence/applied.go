package presence

import "sync"

// Applied is a snapshot of the last state successfully pushed remotely.
type Applied struct {
	Presence Presence
	Status   Status
	WeSetDND bool
}

// AppliedState records what was last written to the remote service. A write
// is only issued when the newly computed target differs from it, and it is
// updated only after the write succeeds: a failed write leaves it unchanged
// so the next pass retries from scratch.
type AppliedState struct {
	mu      sync.Mutex
	applied Applied
}

func NewAppliedState() *AppliedState {
	return &AppliedState{applied: Applied{Presence: PresenceUnknown}}
}

func (a *AppliedState) Snapshot() Applied {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applied
}

func (a *AppliedState) SetPresence(p Presence) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied.Presence = p
}

func (a *AppliedState) SetStatus(s Status) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied.Status = s
}

func (a *AppliedState) SetWeSetDND(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.applied.WeSetDND = v
}
