package schedule

import (
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/presenced/internal/domains/schedule"
	"gorm.io/gorm"
)

// DayScheduleEntity represents one weekday's work-hours row.
type DayScheduleEntity struct {
	Weekday     int       `gorm:"primaryKey"`
	Enabled     bool      `gorm:"not null"`
	StartMinute int       `gorm:"column:start_minute;not null"`
	EndMinute   int       `gorm:"column:end_minute;not null"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM
func (DayScheduleEntity) TableName() string {
	return "day_schedules"
}

// StatusRuleEntity represents a scheduled status rule row.
type StatusRuleEntity struct {
	ID          string    `gorm:"primaryKey;type:char(36);not null"`
	Emoji       string    `gorm:"type:varchar(64)"`
	Text        string    `gorm:"type:varchar(255);not null"`
	StartMinute int       `gorm:"column:start_minute;not null"`
	EndMinute   int       `gorm:"column:end_minute;not null"`
	WeekdayMask uint8     `gorm:"column:weekday_mask;not null"`
	Enabled     bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM
func (StatusRuleEntity) TableName() string {
	return "status_rules"
}

// BeforeCreate is a GORM hook to ensure UUID is set
func (s *StatusRuleEntity) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// ToDomain converts StatusRuleEntity to a domain StatusRule
func (s *StatusRuleEntity) ToDomain() (schedule.StatusRule, error) {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return schedule.StatusRule{}, err
	}
	return schedule.StatusRule{
		ID:       id,
		Emoji:    s.Emoji,
		Text:     s.Text,
		Start:    schedule.MinuteOfDay(s.StartMinute),
		End:      schedule.MinuteOfDay(s.EndMinute),
		Weekdays: schedule.WeekdayMask(s.WeekdayMask),
		Enabled:  s.Enabled,
	}, nil
}

// NewStatusRuleEntityFromDomain converts a domain StatusRule to its entity
func NewStatusRuleEntityFromDomain(r schedule.StatusRule) *StatusRuleEntity {
	return &StatusRuleEntity{
		ID:          r.ID.String(),
		Emoji:       r.Emoji,
		Text:        r.Text,
		StartMinute: int(r.Start),
		EndMinute:   int(r.End),
		WeekdayMask: uint8(r.Weekdays),
		Enabled:     r.Enabled,
	}
}
