package override

import (
	"sync"

	"github.com/xpanvictor/presenced/internal/domains/presence"
)

// Snapshot is a point-in-time copy of the active manual overrides.
type Snapshot struct {
	// Presence is non-nil while the user has forced Active or Away.
	Presence *presence.Presence
	// InMeeting is non-nil while the user has forced the meeting badge on
	// or off, bypassing calendar detection.
	InMeeting *bool
}

// Store holds explicit manual overrides. They always take precedence while
// present and are only cleared by an explicit resume/clear action. The call
// override is not here: it lives in the call source because it interacts
// with that source's debounce timers and suppression window.
type Store struct {
	mu        sync.Mutex
	presence  *presence.Presence
	inMeeting *bool
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{}
	if s.presence != nil {
		p := *s.presence
		snap.Presence = &p
	}
	if s.inMeeting != nil {
		m := *s.inMeeting
		snap.InMeeting = &m
	}
	return snap
}

func (s *Store) SetPresence(p presence.Presence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence = &p
}

// ClearPresence resumes schedule-driven presence.
func (s *Store) ClearPresence() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presence = nil
}

func (s *Store) SetInMeeting(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inMeeting = &v
}

func (s *Store) ClearInMeeting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inMeeting = nil
}
