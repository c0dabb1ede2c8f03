package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/xpanvictor/presenced/internal/config"
	"github.com/xpanvictor/presenced/internal/domains/call"
	"github.com/xpanvictor/presenced/internal/domains/meeting"
	"github.com/xpanvictor/presenced/internal/domains/override"
	"github.com/xpanvictor/presenced/internal/domains/presence"
	"github.com/xpanvictor/presenced/internal/domains/schedule"
	"github.com/xpanvictor/presenced/internal/remote"
	"github.com/xpanvictor/presenced/pkg/Logger"
)

// tokenSetter is implemented by remote clients whose credential can be
// swapped after a config reload.
type tokenSetter interface {
	SetToken(token string)
}

// Engine ties the signal sources, the reconciler and the remote client
// together. Each source runs its own timer-driven poll; the engine adds a
// reconciliation tick and a connectivity probe, all scheduled on one
// gocron scheduler so Stop cancels everything at once.
type Engine struct {
	logger *Logger.Logger

	call      *call.Source
	meeting   *meeting.Source
	overrides *override.Store
	applied   *presence.AppliedState
	remote    remote.Client
	watcher   *ConnectivityWatcher
	repo      schedule.Repository

	cfgMu sync.RWMutex
	cfg   config.Settings

	schedMu sync.RWMutex
	table   schedule.Table
	rules   []schedule.StatusRule

	lifeMu  sync.Mutex
	running bool
	sched   gocron.Scheduler
	runCtx  context.Context
	cancel  context.CancelFunc

	passInFlight atomic.Bool
	credInvalid  atomic.Bool
	online       atomic.Bool

	errMu   sync.Mutex
	lastErr string

	events chan Event
	nowFn  func() time.Time
}

// New wires an engine from its collaborators. Nothing starts until Start.
func New(
	cfg *config.Settings,
	lister call.DeviceLister,
	calendar meeting.CalendarProvider,
	repo schedule.Repository,
	remoteClient remote.Client,
	probe ReachabilityProbe,
	logger *Logger.Logger,
) (*Engine, error) {
	e := &Engine{
		logger:    logger,
		overrides: override.NewStore(),
		applied:   presence.NewAppliedState(),
		remote:    remoteClient,
		repo:      repo,
		cfg:       *cfg,
		events:    make(chan Event, 64),
		nowFn:     time.Now,
	}
	e.online.Store(true)

	e.call = call.New(call.Config{
		StartDelay:  cfg.Call.StartDelay(),
		EndDelay:    cfg.Call.EndDelay(),
		SuppressFor: cfg.Call.SuppressFor(),
		IgnoredUIDs: cfg.Call.IgnoredDeviceUIDs,
	}, lister, logger.Named("call"))

	e.meeting = meeting.New(meeting.Config{
		CacheTTL:            cfg.Meeting.CacheTTL(),
		TriggerBusy:         cfg.Meeting.TriggerBusy,
		TriggerTentative:    cfg.Meeting.TriggerTentative,
		TriggerFree:         cfg.Meeting.TriggerFree,
		SelectedCalendarIDs: cfg.Meeting.SelectedCalendarIDs,
		OOOEnabled:          cfg.OOO.Enabled,
	}, calendar, logger.Named("meeting"))

	e.watcher = NewConnectivityWatcher(probe, logger.Named("connectivity"))
	e.watcher.OnChange(func(online bool) {
		e.online.Store(online)
		e.emit(Event{Kind: EventConnectivity, Bool: online})
	})
	e.watcher.OnOnline(func(ctx context.Context) {
		e.realign(ctx)
		e.Reconcile(ctx)
	})

	// Signal-changed notifications kick an immediate pass instead of
	// waiting for the next tick.
	e.call.OnChange(func(inCall bool) {
		e.emit(Event{Kind: EventCallChanged, Bool: inCall})
		e.kick()
	})
	e.meeting.OnMeetingChange(func(inMeeting bool, _ time.Time, title string) {
		e.emit(Event{Kind: EventMeetingChanged, Bool: inMeeting, Detail: title})
		e.kick()
	})
	e.meeting.OnOOOChange(func(ooo bool, _ time.Time) {
		e.emit(Event{Kind: EventOOOChanged, Bool: ooo})
		e.kick()
	})

	if err := e.loadScheduleState(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) loadScheduleState() error {
	table, err := e.repo.LoadTable()
	if err != nil {
		return err
	}
	rules, err := e.repo.ListRules()
	if err != nil {
		return err
	}
	e.schedMu.Lock()
	e.table = table
	e.rules = rules
	e.schedMu.Unlock()
	return nil
}

// Start schedules all polls. Starting a running engine is a no-op.
func (e *Engine) Start() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.running {
		return nil
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	e.runCtx, e.cancel = context.WithCancel(context.Background())

	e.cfgMu.RLock()
	callEvery := time.Duration(e.cfg.Call.PollSecs) * time.Second
	meetingEvery := time.Duration(e.cfg.Meeting.CheckSecs) * time.Second
	tickEvery := time.Duration(e.cfg.Engine.TickSecs) * time.Second
	connEvery := time.Duration(e.cfg.Engine.ConnectivitySecs) * time.Second
	e.cfgMu.RUnlock()
	if meetingEvery <= 0 {
		meetingEvery = time.Minute
	}
	if connEvery <= 0 {
		connEvery = 15 * time.Second
	}

	jobs := []struct {
		every time.Duration
		run   func(context.Context)
	}{
		{callEvery, e.call.Poll},
		{meetingEvery, e.meeting.Check},
		{tickEvery, e.Reconcile},
		{connEvery, e.watcher.Check},
	}
	for _, j := range jobs {
		run := j.run
		if _, err := sched.NewJob(
			gocron.DurationJob(j.every),
			gocron.NewTask(func() { run(e.runCtx) }),
		); err != nil {
			e.cancel()
			return err
		}
	}

	e.sched = sched
	e.running = true
	sched.Start()
	e.logger.Infof("engine started (mic %s, meeting %s, tick %s)", callEvery, meetingEvery, tickEvery)
	return nil
}

// Stop cancels every scheduled poll. After it returns no further timer
// fires and no new remote writes are issued; an in-flight write sees its
// context cancelled and its result discarded.
func (e *Engine) Stop() {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if !e.running {
		return
	}
	e.cancel()
	if err := e.sched.Shutdown(); err != nil {
		e.logger.Errorf("scheduler shutdown: %v", err)
	}
	e.sched = nil
	e.running = false
	e.logger.Info("engine stopped")
}

// kick runs an out-of-band reconciliation pass for a signal change.
func (e *Engine) kick() {
	e.lifeMu.Lock()
	running, ctx := e.running, e.runCtx
	e.lifeMu.Unlock()
	if !running {
		return
	}
	go e.Reconcile(ctx)
}

// Reconcile executes one pass: refresh the DND read, collect signals,
// decide the target and apply whatever differs from the applied state.
// Passes never run concurrently; if one is still applying, this one is
// skipped rather than queued (the next tick catches up).
func (e *Engine) Reconcile(ctx context.Context) {
	if !e.passInFlight.CompareAndSwap(false, true) {
		e.logger.Debug("reconcile pass already in flight, skipping")
		return
	}
	defer e.passInFlight.Store(false)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorf("reconcile pass panicked, skipped: %v", r)
		}
	}()

	if e.credInvalid.Load() {
		// No writes until the credential is refreshed.
		return
	}

	e.refreshDND(ctx)

	now := e.nowFn()
	sig := e.collectSignals(now)
	target := presence.Decide(sig, e.messages())
	e.apply(ctx, target)
}

// refreshDND realigns the we-set-DND flag with remote truth so a snooze the
// user ended by hand is not "resumed" again later.
func (e *Engine) refreshDND(ctx context.Context) {
	if !e.online.Load() || !e.applied.Snapshot().WeSetDND {
		return
	}
	active, err := e.remote.GetDNDActive(ctx)
	if err != nil {
		e.logger.Debugf("dnd refresh failed: %v", err)
		return
	}
	if !active {
		e.applied.SetWeSetDND(false)
	}
}

// collectSignals snapshots every source, taking each owner's lock one at a
// time and never two at once.
func (e *Engine) collectSignals(now time.Time) presence.Signals {
	callSnap := e.call.Snapshot()
	meetSnap := e.meeting.Snapshot()
	ov := e.overrides.Snapshot()

	e.schedMu.RLock()
	table := e.table
	rules := make([]schedule.StatusRule, len(e.rules))
	copy(rules, e.rules)
	e.schedMu.RUnlock()

	sig := presence.Signals{
		Now:              now,
		InCall:           callSnap.InCall,
		InCallManual:     callSnap.Manual != nil && *callSnap.Manual,
		InMeeting:        meetSnap.InMeeting,
		MeetingTitle:     meetSnap.MeetingTitle,
		OOO:              meetSnap.OOO,
		PresenceOverride: ov.Presence,
	}
	if meetSnap.MeetingEnd != nil {
		sig.MeetingEnd = *meetSnap.MeetingEnd
	}
	if meetSnap.OOOEnd != nil {
		sig.OOOEnd = *meetSnap.OOOEnd
	}
	if ov.InMeeting != nil {
		sig.InMeetingManual = *ov.InMeeting
		if !*ov.InMeeting {
			// Forced off: auto detection is ignored too.
			sig.InMeeting = false
		}
	}

	sig.Schedule = table.Evaluate(now)
	sig.MinutesUntilActive = table.MinutesUntilActive(now)
	if rule := schedule.FirstMatching(rules, now); rule != nil {
		sig.ScheduledStatus = &presence.Status{
			Emoji:     rule.Emoji,
			Text:      rule.Text,
			ExpiresAt: rule.ExpiresAt(now),
		}
	}
	return sig
}

func (e *Engine) messages() presence.Messages {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return presence.Messages{
		CallEmoji:          e.cfg.Call.Emoji,
		CallText:           e.cfg.Call.Text,
		MeetingEmoji:       e.cfg.Meeting.Emoji,
		MeetingText:        e.cfg.Meeting.Text,
		OOOEmoji:           e.cfg.OOO.Emoji,
		OOOText:            e.cfg.OOO.Text,
		OOOEnabled:         e.cfg.OOO.Enabled,
		PauseOnOOO:         e.cfg.OOO.PauseNotifications,
		PauseOnScheduleOff: e.cfg.Engine.PauseOnScheduledAway,
	}
}

// apply pushes the diff between target and applied state. Locks are not
// held across any remote call; the applied state is only advanced after a
// successful write so a failure retries from scratch next pass.
func (e *Engine) apply(ctx context.Context, t presence.Target) {
	prev := e.applied.Snapshot()
	failed := false

	if t.ManagePresence && t.Presence != prev.Presence {
		if err := e.remote.SetPresence(ctx, t.Presence); err != nil {
			e.handleWriteError("set presence", err)
			failed = true
		} else {
			e.applied.SetPresence(t.Presence)
			e.emit(Event{Kind: EventPresenceChanged, Presence: string(t.Presence)})
		}
	}

	if t.Status != prev.Status {
		if err := e.remote.SetStatus(ctx, t.Status); err != nil {
			e.handleWriteError("set status", err)
			failed = true
		} else {
			e.applied.SetStatus(t.Status)
			e.emit(Event{Kind: EventStatusChanged, Status: t.Status.Text})
		}
	}

	switch {
	case t.PauseMinutes > 0 && !prev.WeSetDND:
		if err := e.remote.PauseNotifications(ctx, t.PauseMinutes); err != nil {
			e.handleWriteError("pause notifications", err)
			failed = true
		} else {
			e.applied.SetWeSetDND(true)
		}
	case t.PauseMinutes == 0 && prev.WeSetDND && t.ManagePresence && t.Presence == presence.PresenceActive:
		if err := e.remote.ResumeNotifications(ctx); err != nil {
			e.handleWriteError("resume notifications", err)
			failed = true
		} else {
			e.applied.SetWeSetDND(false)
		}
	}

	if !failed {
		e.setLastError("")
	}
}

func (e *Engine) handleWriteError(op string, err error) {
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) && apiErr.Kind == remote.KindAuth {
		e.credInvalid.Store(true)
		e.setLastError("credentials rejected by remote service")
		e.emit(Event{Kind: EventCredentialInvalid, Detail: err.Error()})
		e.logger.Errorf("%s: credentials rejected: %v", op, err)
		return
	}
	e.setLastError(err.Error())
	e.emit(Event{Kind: EventSyncError, Detail: err.Error()})
	e.logger.Errorf("%s failed: %v", op, err)
}

// realign pulls actual remote state into the applied cache so out-of-band
// changes (the user flipping status in the remote UI) are respected.
func (e *Engine) realign(ctx context.Context) {
	if p, err := e.remote.GetPresence(ctx); err != nil {
		e.logger.Warnf("presence fetch failed: %v", err)
	} else {
		e.applied.SetPresence(p)
	}
	if active, err := e.remote.GetDNDActive(ctx); err != nil {
		e.logger.Warnf("dnd fetch failed: %v", err)
	} else if !active {
		e.applied.SetWeSetDND(false)
	}
	e.emit(Event{Kind: EventSynced})
}

// SyncNow realigns with remote truth and runs an immediate pass.
func (e *Engine) SyncNow(ctx context.Context) {
	e.realign(ctx)
	e.Reconcile(ctx)
}

// CalendarChanged is the external calendar-store change signal.
func (e *Engine) CalendarChanged(ctx context.Context) {
	e.meeting.Invalidate()
	e.meeting.Check(ctx)
}

func (e *Engine) setLastError(msg string) {
	e.errMu.Lock()
	e.lastErr = msg
	e.errMu.Unlock()
}

func (e *Engine) lastError() string {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.lastErr
}
