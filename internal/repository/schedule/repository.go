package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xpanvictor/presenced/internal/domains/schedule"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormScheduleRepo struct {
	db *gorm.DB
}

func NewGormScheduleRepo(db *gorm.DB) *GormScheduleRepo {
	return &GormScheduleRepo{db: db}
}

// LoadTable implements schedule.Repository. An empty table is seeded with
// the Mon-Fri 09:00-17:00 default on first run.
func (g *GormScheduleRepo) LoadTable() (schedule.Table, error) {
	var entities []DayScheduleEntity
	if err := g.db.Find(&entities).Error; err != nil {
		return schedule.Table{}, fmt.Errorf("failed to load schedule table: %w", err)
	}
	if len(entities) == 0 {
		table := schedule.DefaultTable()
		if err := g.SaveTable(table); err != nil {
			return schedule.Table{}, err
		}
		return table, nil
	}

	var table schedule.Table
	for _, ent := range entities {
		if ent.Weekday < 0 || ent.Weekday > 6 {
			continue
		}
		table[ent.Weekday] = schedule.DaySchedule{
			Enabled: ent.Enabled,
			Start:   schedule.MinuteOfDay(ent.StartMinute),
			End:     schedule.MinuteOfDay(ent.EndMinute),
		}
	}
	return table, nil
}

// SaveTable implements schedule.Repository
func (g *GormScheduleRepo) SaveTable(t schedule.Table) error {
	entities := make([]DayScheduleEntity, 0, 7)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		day := t[wd]
		entities = append(entities, DayScheduleEntity{
			Weekday:     int(wd),
			Enabled:     day.Enabled,
			StartMinute: int(day.Start),
			EndMinute:   int(day.End),
		})
	}
	err := g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "weekday"}},
		UpdateAll: true,
	}).Create(&entities).Error
	if err != nil {
		return fmt.Errorf("failed to save schedule table: %w", err)
	}
	return nil
}

// ListRules implements schedule.Repository
func (g *GormScheduleRepo) ListRules() ([]schedule.StatusRule, error) {
	var entities []StatusRuleEntity
	if err := g.db.Order("created_at").Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to list status rules: %w", err)
	}
	rules := make([]schedule.StatusRule, 0, len(entities))
	for _, ent := range entities {
		rule, err := ent.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to decode status rule %s: %w", ent.ID, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// SaveRule implements schedule.Repository
func (g *GormScheduleRepo) SaveRule(rule schedule.StatusRule) error {
	entity := NewStatusRuleEntityFromDomain(rule)
	err := g.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(entity).Error
	if err != nil {
		return fmt.Errorf("failed to save status rule: %w", err)
	}
	return nil
}

// DeleteRule implements schedule.Repository
func (g *GormScheduleRepo) DeleteRule(id uuid.UUID) error {
	res := g.db.Delete(&StatusRuleEntity{}, "id = ?", id.String())
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return schedule.ErrRuleNotFound
		}
		return fmt.Errorf("failed to delete status rule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return schedule.ErrRuleNotFound
	}
	return nil
}
