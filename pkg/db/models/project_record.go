package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectRecord links a canonical project id to the opaque record id the
// tabular store assigned on first create. The unique index is what makes
// the upsert idempotent: a second concurrent create hits the constraint
// and falls back to an update.
type ProjectRecord struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GristConfigID uuid.UUID `gorm:"column:grist_config_id;type:uuid;not null;uniqueIndex:ux_project_records_config_project,priority:1"`
	ProjectID     int64     `gorm:"column:project_id;not null;uniqueIndex:ux_project_records_config_project,priority:2"`
	RecordID      int64     `gorm:"column:record_id;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ProjectRecord) TableName() string { return "project_records" }
