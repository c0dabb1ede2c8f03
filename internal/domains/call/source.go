package call

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/xpanvictor/presenced/pkg/Logger"
)

// Debounce machine states.
const (
	stateIdle         = "idle"
	statePendingStart = "pending_start"
	stateInCall       = "in_call"
	statePendingEnd   = "pending_end"
)

// Debounce machine events.
const (
	evMicActive    = "mic_active"
	evMicIdle      = "mic_idle"
	evStartElapsed = "start_elapsed"
	evEndElapsed   = "end_elapsed"
	evForceCall    = "force_call"
	evForceClear   = "force_clear"
)

const deviceCacheTTL = 10 * time.Second

// Config tunes the debounce windows. Delays are already clamped to 1-30s
// by the config layer.
type Config struct {
	StartDelay  time.Duration
	EndDelay    time.Duration
	SuppressFor time.Duration
	IgnoredUIDs []string
}

// Snapshot is a copy of the source's externally visible state.
type Snapshot struct {
	InCall       bool       `json:"inCall"`
	Manual       *bool      `json:"manual,omitempty"`
	PendingSince *time.Time `json:"pendingSince,omitempty"`
}

// Source debounces raw microphone activity into a stable in-call boolean.
// Raw activity must hold for StartDelay before the call starts and stay
// quiet for EndDelay before it ends. A manual override bypasses the
// debounce entirely; a manual clear additionally suppresses auto detection
// for SuppressFor so a still-open call app does not re-trigger it.
type Source struct {
	mu sync.Mutex

	cfg         Config
	lister      DeviceLister
	machine     *fsm.FSM
	logger      *Logger.Logger
	nowFn       func() time.Time
	ignoredUIDs map[string]bool

	// At most one of these is set at any time.
	pendingStart time.Time
	pendingEnd   time.Time

	suppressUntil time.Time
	manual        *bool

	// Device list cache bounds enumeration cost to one listing per 10s.
	devices   []Device
	devicesAt time.Time

	onChange func(inCall bool)
}

func New(cfg Config, lister DeviceLister, logger *Logger.Logger) *Source {
	s := &Source{
		cfg:         cfg,
		lister:      lister,
		logger:      logger,
		nowFn:       time.Now,
		ignoredUIDs: uidSet(cfg.IgnoredUIDs),
	}
	s.machine = fsm.NewFSM(
		stateIdle,
		fsm.Events{
			{Name: evMicActive, Src: []string{stateIdle}, Dst: statePendingStart},
			{Name: evMicActive, Src: []string{statePendingEnd}, Dst: stateInCall},
			{Name: evStartElapsed, Src: []string{statePendingStart}, Dst: stateInCall},
			{Name: evMicIdle, Src: []string{statePendingStart}, Dst: stateIdle},
			{Name: evMicIdle, Src: []string{stateInCall}, Dst: statePendingEnd},
			{Name: evEndElapsed, Src: []string{statePendingEnd}, Dst: stateIdle},
			{Name: evForceCall, Src: []string{stateIdle, statePendingStart, statePendingEnd}, Dst: stateInCall},
			{Name: evForceClear, Src: []string{statePendingStart, stateInCall, statePendingEnd}, Dst: stateIdle},
		},
		fsm.Callbacks{},
	)
	return s
}

// OnChange registers the callback fired on every debounced in-call
// transition. It runs outside the source's lock.
func (s *Source) OnChange(fn func(inCall bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Poll reads the raw mic predicate and advances the debounce machine.
// Enumeration failure is logged and treated as no signal this tick.
func (s *Source) Poll(ctx context.Context) {
	now := s.now()
	raw, err := s.micActive(now)
	if err != nil {
		s.logger.Errorf("device enumeration failed: %v", err)
		return
	}
	s.Evaluate(ctx, raw, now)
}

// Evaluate advances the machine for one raw reading at a given time. Split
// out of Poll so the debounce contract is testable with explicit clocks.
func (s *Source) Evaluate(ctx context.Context, raw bool, now time.Time) {
	s.mu.Lock()
	was := s.inCallLocked()

	if s.manual != nil {
		// Forced state, debounce bypassed; keep timers cleared.
		s.pendingStart, s.pendingEnd = time.Time{}, time.Time{}
	} else {
		if now.Before(s.suppressUntil) {
			raw = false
		}
		s.step(ctx, raw, now)
	}

	isNow := s.inCallLocked()
	cb := s.onChange
	s.mu.Unlock()

	if isNow != was && cb != nil {
		cb(isNow)
	}
}

// step applies the transition rules with the lock held.
func (s *Source) step(ctx context.Context, raw bool, now time.Time) {
	if s.inCallLocked() {
		switch {
		case raw:
			s.pendingEnd = time.Time{}
			s.fire(ctx, evMicActive) // pending_end -> in_call
		case s.pendingEnd.IsZero():
			s.pendingEnd = now
			s.fire(ctx, evMicIdle) // in_call -> pending_end
		case now.Sub(s.pendingEnd) >= s.cfg.EndDelay:
			s.pendingEnd = time.Time{}
			s.fire(ctx, evEndElapsed)
		}
		return
	}
	switch {
	case !raw:
		s.pendingStart = time.Time{}
		s.fire(ctx, evMicIdle) // pending_start -> idle
	case s.pendingStart.IsZero():
		s.pendingStart = now
		s.fire(ctx, evMicActive)
	case now.Sub(s.pendingStart) >= s.cfg.StartDelay:
		s.pendingStart = time.Time{}
		s.fire(ctx, evStartElapsed)
	}
}

// ForceInCall sets the sticky manual in-call override, clearing all
// timers and bypassing the debounce until ForceClear.
func (s *Source) ForceInCall(ctx context.Context) {
	s.mu.Lock()
	was := s.inCallLocked()
	v := true
	s.manual = &v
	s.pendingStart, s.pendingEnd = time.Time{}, time.Time{}
	s.fire(ctx, evForceCall)
	isNow := s.inCallLocked()
	cb := s.onChange
	s.mu.Unlock()

	if isNow != was && cb != nil {
		cb(isNow)
	}
}

// ForceClear drops any override, resets the machine to idle and opens the
// suppression window: residual mic activity (a still-open call app) must
// not re-trigger auto detection for SuppressFor. After the window closes,
// detection resumes with the normal start delay.
func (s *Source) ForceClear(ctx context.Context) {
	s.mu.Lock()
	was := s.inCallLocked()
	s.manual = nil
	s.pendingStart, s.pendingEnd = time.Time{}, time.Time{}
	s.suppressUntil = s.nowFn().Add(s.cfg.SuppressFor)
	s.fire(ctx, evForceClear)
	isNow := s.inCallLocked()
	cb := s.onChange
	s.mu.Unlock()

	if isNow != was && cb != nil {
		cb(isNow)
	}
}

func (s *Source) InCall() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inCallLocked()
}

// Manual reports the active override, nil when detection is automatic.
func (s *Source) Manual() *bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manual == nil {
		return nil
	}
	v := *s.manual
	return &v
}

func (s *Source) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{InCall: s.inCallLocked()}
	if s.manual != nil {
		v := *s.manual
		snap.Manual = &v
	}
	if !s.pendingStart.IsZero() {
		t := s.pendingStart
		snap.PendingSince = &t
	} else if !s.pendingEnd.IsZero() {
		t := s.pendingEnd
		snap.PendingSince = &t
	}
	return snap
}

// SetConfig applies reloaded debounce settings; timers in flight keep
// their recorded timestamps and are re-judged against the new delays.
func (s *Source) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.ignoredUIDs = uidSet(cfg.IgnoredUIDs)
}

func (s *Source) inCallLocked() bool {
	cur := s.machine.Current()
	return cur == stateInCall || cur == statePendingEnd
}

// fire swallows no-transition errors: callers guard state so anything else
// is a programming error worth logging.
func (s *Source) fire(ctx context.Context, event string) {
	if err := s.machine.Event(ctx, event); err != nil {
		if _, ok := err.(fsm.NoTransitionError); ok {
			return
		}
		if _, ok := err.(fsm.InvalidEventError); ok {
			return
		}
		s.logger.Errorf("call machine event %s from %s: %v", event, s.machine.Current(), err)
	}
}

// micActive evaluates the filtered device predicate, re-listing devices at
// most every 10s.
func (s *Source) micActive(now time.Time) (bool, error) {
	s.mu.Lock()
	cached := s.devices
	fresh := now.Sub(s.devicesAt) < deviceCacheTTL && s.devices != nil
	ignored := s.ignoredUIDs
	s.mu.Unlock()

	if !fresh {
		devices, err := s.lister.ListInputDevices()
		if err != nil {
			return false, err
		}
		s.mu.Lock()
		s.devices = devices
		s.devicesAt = now
		s.mu.Unlock()
		cached = devices
	}
	return anyActive(cached, ignored), nil
}

func (s *Source) now() time.Time {
	s.mu.Lock()
	fn := s.nowFn
	s.mu.Unlock()
	return fn()
}

func uidSet(uids []string) map[string]bool {
	set := make(map[string]bool, len(uids))
	for _, uid := range uids {
		set[uid] = true
	}
	return set
}
