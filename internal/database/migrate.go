package database

import (
	scheduleRepo "github.com/xpanvictor/presenced/internal/repository/schedule"
	"gorm.io/gorm"
)

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&scheduleRepo.DayScheduleEntity{},
		&scheduleRepo.StatusRuleEntity{},
	)
}
