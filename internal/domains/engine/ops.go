package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/xpanvictor/presenced/internal/config"
	"github.com/xpanvictor/presenced/internal/domains/call"
	"github.com/xpanvictor/presenced/internal/domains/meeting"
	"github.com/xpanvictor/presenced/internal/domains/presence"
	"github.com/xpanvictor/presenced/internal/domains/schedule"
)

// Snapshot is the engine state the shell renders.
type Snapshot struct {
	Presence        presence.Presence `json:"presence"`
	Status          presence.Status   `json:"status"`
	Call            call.Snapshot     `json:"call"`
	Meeting         meeting.Snapshot  `json:"meeting"`
	Schedule        string            `json:"schedule"`
	PresenceForced  bool              `json:"presenceForced"`
	MeetingForced   *bool             `json:"meetingForced,omitempty"`
	LastError       string            `json:"lastError,omitempty"`
	CredentialValid bool              `json:"credentialValid"`
	Online          bool              `json:"online"`
}

func (e *Engine) Snapshot() Snapshot {
	applied := e.applied.Snapshot()
	ov := e.overrides.Snapshot()

	e.schedMu.RLock()
	table := e.table
	e.schedMu.RUnlock()

	snap := Snapshot{
		Presence:        applied.Presence,
		Status:          applied.Status,
		Call:            e.call.Snapshot(),
		Meeting:         e.meeting.Snapshot(),
		Schedule:        table.Evaluate(e.nowFn()).String(),
		PresenceForced:  ov.Presence != nil,
		LastError:       e.lastError(),
		CredentialValid: !e.credInvalid.Load(),
		Online:          e.online.Load(),
	}
	if ov.InMeeting != nil {
		v := *ov.InMeeting
		snap.MeetingForced = &v
	}
	return snap
}

// ForceActive pins presence to Active until ResumeSchedule.
func (e *Engine) ForceActive() {
	e.overrides.SetPresence(presence.PresenceActive)
	e.kick()
}

// ForceAway pins presence to Away until ResumeSchedule.
func (e *Engine) ForceAway() {
	e.overrides.SetPresence(presence.PresenceAway)
	e.kick()
}

// ResumeSchedule drops the presence override; the schedule decides again.
func (e *Engine) ResumeSchedule() {
	e.overrides.ClearPresence()
	e.kick()
}

func (e *Engine) SetManualInCall(ctx context.Context) {
	e.call.ForceInCall(ctx)
	e.kick()
}

func (e *Engine) ClearManualInCall(ctx context.Context) {
	e.call.ForceClear(ctx)
	e.kick()
}

// SetManualInMeeting forces the meeting badge on or off, bypassing
// calendar detection until cleared.
func (e *Engine) SetManualInMeeting(v bool) {
	e.overrides.SetInMeeting(v)
	e.kick()
}

func (e *Engine) ClearManualInMeeting() {
	e.overrides.ClearInMeeting()
	e.kick()
}

// Table returns the current weekly schedule snapshot.
func (e *Engine) Table() schedule.Table {
	e.schedMu.RLock()
	defer e.schedMu.RUnlock()
	return e.table
}

// UpdateTable persists an edited weekly schedule and applies it on the
// next evaluation.
func (e *Engine) UpdateTable(t schedule.Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := e.repo.SaveTable(t); err != nil {
		return err
	}
	e.schedMu.Lock()
	e.table = t
	e.schedMu.Unlock()
	e.kick()
	return nil
}

func (e *Engine) Rules() []schedule.StatusRule {
	e.schedMu.RLock()
	defer e.schedMu.RUnlock()
	rules := make([]schedule.StatusRule, len(e.rules))
	copy(rules, e.rules)
	return rules
}

// SaveRule inserts or updates a scheduled status rule.
func (e *Engine) SaveRule(rule schedule.StatusRule) (schedule.StatusRule, error) {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.Start >= rule.End {
		return schedule.StatusRule{}, schedule.ErrInvalidWindow
	}
	if err := e.repo.SaveRule(rule); err != nil {
		return schedule.StatusRule{}, err
	}
	if err := e.reloadRules(); err != nil {
		return schedule.StatusRule{}, err
	}
	e.kick()
	return rule, nil
}

func (e *Engine) DeleteRule(id uuid.UUID) error {
	if err := e.repo.DeleteRule(id); err != nil {
		return err
	}
	if err := e.reloadRules(); err != nil {
		return err
	}
	e.kick()
	return nil
}

func (e *Engine) reloadRules() error {
	rules, err := e.repo.ListRules()
	if err != nil {
		return err
	}
	e.schedMu.Lock()
	e.rules = rules
	e.schedMu.Unlock()
	return nil
}

// ReloadConfig applies a freshly loaded settings file: debounce delays,
// trigger sets, message templates and the credential. Poll intervals need
// a restart; everything else takes effect on the next tick.
func (e *Engine) ReloadConfig(cfg *config.Settings) {
	e.cfgMu.Lock()
	e.cfg = *cfg
	e.cfgMu.Unlock()

	e.call.SetConfig(call.Config{
		StartDelay:  cfg.Call.StartDelay(),
		EndDelay:    cfg.Call.EndDelay(),
		SuppressFor: cfg.Call.SuppressFor(),
		IgnoredUIDs: cfg.Call.IgnoredDeviceUIDs,
	})
	e.meeting.SetConfig(meeting.Config{
		CacheTTL:            cfg.Meeting.CacheTTL(),
		TriggerBusy:         cfg.Meeting.TriggerBusy,
		TriggerTentative:    cfg.Meeting.TriggerTentative,
		TriggerFree:         cfg.Meeting.TriggerFree,
		SelectedCalendarIDs: cfg.Meeting.SelectedCalendarIDs,
		OOOEnabled:          cfg.OOO.Enabled,
	})
	if setter, ok := e.remote.(tokenSetter); ok && cfg.Remote.Token != "" {
		setter.SetToken(cfg.Remote.Token)
		// A fresh token lifts the write freeze from a rejected one.
		e.credInvalid.Store(false)
	}
	e.kick()
}
