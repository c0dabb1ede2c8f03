package schedule

import "github.com/google/uuid"

// Repository persists the weekly table and the scheduled status rules.
// The engine holds an in-memory copy and goes through the repository only
// on edits; implementations live in internal/repository/schedule.
type Repository interface {
	LoadTable() (Table, error)
	SaveTable(Table) error

	ListRules() ([]StatusRule, error)
	SaveRule(StatusRule) error
	DeleteRule(id uuid.UUID) error
}
