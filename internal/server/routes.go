package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xpanvictor/presenced/internal/config"
	"github.com/xpanvictor/presenced/internal/domains/engine"
	"github.com/xpanvictor/presenced/internal/domains/schedule"
	"github.com/xpanvictor/presenced/pkg/Logger"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse wraps operations that return nothing else.
type SuccessResponse struct {
	Message string `json:"message"`
}

type Dependencies struct {
	Engine  *engine.Engine
	Logger  *Logger.Logger
	Configs *config.Settings
}

func NewServerDependencies(eng *engine.Engine, logger *Logger.Logger, cfg *config.Settings) Dependencies {
	return Dependencies{
		Engine:  eng,
		Logger:  logger,
		Configs: cfg,
	}
}

// RoutesManager holds handler state: the engine plus the websocket hub.
type RoutesManager struct {
	deps Dependencies
	hub  *eventHub
}

func NewRoutesManager(deps Dependencies) *RoutesManager {
	return &RoutesManager{
		deps: deps,
		hub:  newEventHub(deps.Logger),
	}
}

func InitializeRoutes(r *gin.Engine, dep Dependencies) *RoutesManager {
	r.GET("/", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"message": "presenced healthy"}) })
	r.GET("/health", func(ctx *gin.Context) { ctx.JSON(200, gin.H{"status": "ok"}) })

	rm := NewRoutesManager(dep)
	go rm.hub.run(dep.Engine.Events())

	r.GET("/state", rm.handleState)
	r.GET("/ws/events", rm.handleEventsWebSocket)

	r.POST("/presence/force-active", rm.handleForceActive)
	r.POST("/presence/force-away", rm.handleForceAway)
	r.POST("/presence/resume", rm.handleResume)

	r.POST("/call/manual", rm.handleSetManualCall)
	r.DELETE("/call/manual", rm.handleClearManualCall)
	r.POST("/meeting/manual", rm.handleSetManualMeeting)
	r.DELETE("/meeting/manual", rm.handleClearManualMeeting)

	r.POST("/sync", rm.handleSyncNow)
	r.POST("/calendar/changed", rm.handleCalendarChanged)

	r.GET("/schedule", rm.handleGetSchedule)
	r.PUT("/schedule", rm.handlePutSchedule)
	r.GET("/statuses", rm.handleListRules)
	r.POST("/statuses", rm.handleSaveRule)
	r.DELETE("/statuses/:id", rm.handleDeleteRule)

	return rm
}

func (rm *RoutesManager) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, rm.deps.Engine.Snapshot())
}

func (rm *RoutesManager) handleForceActive(c *gin.Context) {
	rm.deps.Engine.ForceActive()
	c.JSON(http.StatusOK, SuccessResponse{Message: "presence forced active"})
}

func (rm *RoutesManager) handleForceAway(c *gin.Context) {
	rm.deps.Engine.ForceAway()
	c.JSON(http.StatusOK, SuccessResponse{Message: "presence forced away"})
}

func (rm *RoutesManager) handleResume(c *gin.Context) {
	rm.deps.Engine.ResumeSchedule()
	c.JSON(http.StatusOK, SuccessResponse{Message: "schedule resumed"})
}

func (rm *RoutesManager) handleSetManualCall(c *gin.Context) {
	rm.deps.Engine.SetManualInCall(c.Request.Context())
	c.JSON(http.StatusOK, SuccessResponse{Message: "manual in-call set"})
}

func (rm *RoutesManager) handleClearManualCall(c *gin.Context) {
	rm.deps.Engine.ClearManualInCall(c.Request.Context())
	c.JSON(http.StatusOK, SuccessResponse{Message: "manual in-call cleared"})
}

// meetingOverridePayload is optional; no body forces the badge on, an
// explicit false suppresses calendar detection instead.
type meetingOverridePayload struct {
	InMeeting *bool `json:"inMeeting"`
}

func (rm *RoutesManager) handleSetManualMeeting(c *gin.Context) {
	v := true
	var payload meetingOverridePayload
	if err := c.ShouldBindJSON(&payload); err == nil && payload.InMeeting != nil {
		v = *payload.InMeeting
	}
	rm.deps.Engine.SetManualInMeeting(v)
	c.JSON(http.StatusOK, SuccessResponse{Message: "manual in-meeting set"})
}

func (rm *RoutesManager) handleClearManualMeeting(c *gin.Context) {
	rm.deps.Engine.ClearManualInMeeting()
	c.JSON(http.StatusOK, SuccessResponse{Message: "manual in-meeting cleared"})
}

func (rm *RoutesManager) handleSyncNow(c *gin.Context) {
	rm.deps.Engine.SyncNow(c.Request.Context())
	c.JSON(http.StatusOK, rm.deps.Engine.Snapshot())
}

func (rm *RoutesManager) handleCalendarChanged(c *gin.Context) {
	rm.deps.Engine.CalendarChanged(c.Request.Context())
	c.JSON(http.StatusOK, SuccessResponse{Message: "calendar cache invalidated"})
}

// dayPayload mirrors schedule.DaySchedule with HH:MM strings.
type dayPayload struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type schedulePayload struct {
	Days [7]dayPayload `json:"days"`
}

func (rm *RoutesManager) handleGetSchedule(c *gin.Context) {
	table := rm.deps.Engine.Table()
	var payload schedulePayload
	for i, day := range table {
		payload.Days[i] = dayPayload{
			Enabled: day.Enabled,
			Start:   formatMinute(day.Start),
			End:     formatMinute(day.End),
		}
	}
	c.JSON(http.StatusOK, payload)
}

func (rm *RoutesManager) handlePutSchedule(c *gin.Context) {
	var payload schedulePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	var table schedule.Table
	for i, day := range payload.Days {
		start, err := parseMinute(day.Start)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		end, err := parseMinute(day.End)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		table[i] = schedule.DaySchedule{Enabled: day.Enabled, Start: start, End: end}
	}
	if err := rm.deps.Engine.UpdateTable(table); err != nil {
		if errors.Is(err, schedule.ErrInvalidWindow) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		rm.deps.Logger.Errorf("schedule update failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to save schedule"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "schedule saved"})
}

type rulePayload struct {
	ID       string `json:"id,omitempty"`
	Emoji    string `json:"emoji"`
	Text     string `json:"text" binding:"required"`
	Start    string `json:"start" binding:"required"`
	End      string `json:"end" binding:"required"`
	Weekdays []int  `json:"weekdays" binding:"required"`
	Enabled  bool   `json:"enabled"`
}

func (rm *RoutesManager) handleListRules(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rules": rm.deps.Engine.Rules()})
}

func (rm *RoutesManager) handleSaveRule(c *gin.Context) {
	var payload rulePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	rule, err := payload.toDomain()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	saved, err := rm.deps.Engine.SaveRule(rule)
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidWindow) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		rm.deps.Logger.Errorf("status rule save failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to save status rule"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": saved})
}

func (rm *RoutesManager) handleDeleteRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid rule id"})
		return
	}
	if err := rm.deps.Engine.DeleteRule(id); err != nil {
		if errors.Is(err, schedule.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		rm.deps.Logger.Errorf("status rule delete failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to delete status rule"})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "status rule deleted"})
}

func (p rulePayload) toDomain() (schedule.StatusRule, error) {
	rule := schedule.StatusRule{
		Emoji:   p.Emoji,
		Text:    p.Text,
		Enabled: p.Enabled,
	}
	if p.ID != "" {
		id, err := uuid.Parse(p.ID)
		if err != nil {
			return schedule.StatusRule{}, err
		}
		rule.ID = id
	}
	var err error
	if rule.Start, err = parseMinute(p.Start); err != nil {
		return schedule.StatusRule{}, err
	}
	if rule.End, err = parseMinute(p.End); err != nil {
		return schedule.StatusRule{}, err
	}
	for _, wd := range p.Weekdays {
		if wd < 0 || wd > 6 {
			return schedule.StatusRule{}, errInvalidWeekday
		}
		rule.Weekdays = rule.Weekdays.With(time.Weekday(wd))
	}
	return rule, nil
}
