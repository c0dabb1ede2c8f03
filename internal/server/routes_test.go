package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/presenced/internal/config"
	"github.com/xpanvictor/presenced/internal/domains/call"
	"github.com/xpanvictor/presenced/internal/domains/engine"
	"github.com/xpanvictor/presenced/internal/domains/meeting"
	"github.com/xpanvictor/presenced/internal/domains/presence"
	"github.com/xpanvictor/presenced/internal/domains/schedule"
	"github.com/xpanvictor/presenced/pkg/Logger"
)

type noopRemote struct{}

func (noopRemote) SetPresence(ctx context.Context, p presence.Presence) error     { return nil }
func (noopRemote) SetStatus(ctx context.Context, s presence.Status) error         { return nil }
func (noopRemote) PauseNotifications(ctx context.Context, minutes int) error      { return nil }
func (noopRemote) ResumeNotifications(ctx context.Context) error                  { return nil }
func (noopRemote) GetPresence(ctx context.Context) (presence.Presence, error)     { return presence.PresenceActive, nil }
func (noopRemote) GetDNDActive(ctx context.Context) (bool, error)                 { return false, nil }

type noopLister struct{}

func (noopLister) ListInputDevices() ([]call.Device, error) { return nil, nil }

type noopCalendar struct{}

func (noopCalendar) EventsBetween(ctx context.Context, start, end time.Time) ([]meeting.Event, error) {
	return nil, nil
}

type memRepo struct {
	table schedule.Table
	rules []schedule.StatusRule
}

func (m *memRepo) LoadTable() (schedule.Table, error) { return m.table, nil }
func (m *memRepo) SaveTable(t schedule.Table) error   { m.table = t; return nil }
func (m *memRepo) ListRules() ([]schedule.StatusRule, error) {
	return append([]schedule.StatusRule(nil), m.rules...), nil
}
func (m *memRepo) SaveRule(rule schedule.StatusRule) error {
	for i := range m.rules {
		if m.rules[i].ID == rule.ID {
			m.rules[i] = rule
			return nil
		}
	}
	m.rules = append(m.rules, rule)
	return nil
}
func (m *memRepo) DeleteRule(id uuid.UUID) error {
	for i := range m.rules {
		if m.rules[i].ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return schedule.ErrRuleNotFound
}

type alwaysReachable struct{}

func (alwaysReachable) Reachable(ctx context.Context) bool { return true }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Settings{
		Call:    config.CallConfig{PollSecs: 5, StartDelaySecs: 10, EndDelaySecs: 3, SuppressSecs: 30},
		Meeting: config.MeetingConfig{CheckSecs: 60, CacheTTLMins: 15, TriggerBusy: true},
		Engine:  config.EngineConfig{TickSecs: 60, ConnectivitySecs: 15},
	}
	eng, err := engine.New(
		cfg,
		noopLister{},
		noopCalendar{},
		&memRepo{table: schedule.DefaultTable()},
		noopRemote{},
		alwaysReachable{},
		Logger.Nop(),
	)
	require.NoError(t, err)

	r := gin.New()
	InitializeRoutes(r, NewServerDependencies(eng, Logger.Nop(), cfg))
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(t)
	w := do(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStateEndpoint(t *testing.T) {
	r := newTestRouter(t)
	w := do(r, http.MethodGet, "/state", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.True(t, snap.CredentialValid)
}

func TestForceAndResumePresence(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/presence/force-away", "").Code)

	var snap engine.Snapshot
	w := do(r, http.MethodGet, "/state", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.True(t, snap.PresenceForced)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/presence/resume", "").Code)
	w = do(r, http.MethodGet, "/state", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.False(t, snap.PresenceForced)
}

func TestManualCallRoundTrip(t *testing.T) {
	r := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/call/manual", "").Code)
	var snap engine.Snapshot
	w := do(r, http.MethodGet, "/state", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.True(t, snap.Call.InCall)

	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/call/manual", "").Code)
	w = do(r, http.MethodGet, "/state", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.False(t, snap.Call.InCall)
}

func TestManualMeetingOverride(t *testing.T) {
	r := newTestRouter(t)

	// Explicit false suppresses calendar detection.
	w := do(r, http.MethodPost, "/meeting/manual", `{"inMeeting":false}`)
	require.Equal(t, http.StatusOK, w.Code)

	var snap engine.Snapshot
	w = do(r, http.MethodGet, "/state", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.NotNil(t, snap.MeetingForced)
	assert.False(t, *snap.MeetingForced)

	// No body defaults to forcing the badge on.
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/meeting/manual", "").Code)
	w = do(r, http.MethodGet, "/state", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.NotNil(t, snap.MeetingForced)
	assert.True(t, *snap.MeetingForced)

	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/meeting/manual", "").Code)
	w = do(r, http.MethodGet, "/state", "")
	snap = engine.Snapshot{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Nil(t, snap.MeetingForced)
}

func TestScheduleRoundTrip(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/schedule", "")
	require.Equal(t, http.StatusOK, w.Code)

	var payload schedulePayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "09:00", payload.Days[int(time.Monday)].Start)
	assert.False(t, payload.Days[int(time.Sunday)].Enabled)

	payload.Days[int(time.Saturday)] = dayPayload{Enabled: true, Start: "10:00", End: "14:30"}
	body, _ := json.Marshal(payload)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPut, "/schedule", string(body)).Code)

	w = do(r, http.MethodGet, "/schedule", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, "14:30", payload.Days[int(time.Saturday)].End)
}

func TestPutScheduleRejectsInvertedWindow(t *testing.T) {
	r := newTestRouter(t)

	w := do(r, http.MethodGet, "/schedule", "")
	var payload schedulePayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))

	payload.Days[int(time.Monday)] = dayPayload{Enabled: true, Start: "17:00", End: "09:00"}
	body, _ := json.Marshal(payload)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPut, "/schedule", string(body)).Code)
}

func TestStatusRuleEndpoints(t *testing.T) {
	r := newTestRouter(t)

	body := `{"text":"Focus","start":"09:00","end":"11:00","weekdays":[1,3],"enabled":true}`
	w := do(r, http.MethodPost, "/statuses", body)
	require.Equal(t, http.StatusOK, w.Code)

	var created struct {
		Rule schedule.StatusRule `json:"rule"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, created.Rule.Weekdays.Has(time.Monday))
	assert.True(t, created.Rule.Weekdays.Has(time.Wednesday))

	w = do(r, http.MethodGet, "/statuses", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodDelete, "/statuses/"+created.Rule.ID.String(), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodDelete, "/statuses/"+created.Rule.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSaveRuleRejectsBadWeekday(t *testing.T) {
	r := newTestRouter(t)
	body := `{"text":"Focus","start":"09:00","end":"11:00","weekdays":[9],"enabled":true}`
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/statuses", body).Code)
}

func TestParseMinute(t *testing.T) {
	cases := []struct {
		in      string
		want    schedule.MinuteOfDay
		wantErr bool
	}{
		{"09:00", 540, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"09:60", 0, true},
		{"junk", 0, true},
	}
	for _, tc := range cases {
		got, err := parseMinute(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestFormatMinute(t *testing.T) {
	assert.Equal(t, "09:05", formatMinute(545))
	assert.Equal(t, "00:00", formatMinute(0))
}
