package models

import (
	"time"

	"github.com/google/uuid"
)

// GristReference points at one auxiliary lookup table in a source document,
// mirrored as-is into the configured destination documents.
type GristReference struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;type:varchar(255);not null"`
	DocID     string    `gorm:"column:doc_id;type:varchar(32);not null"`
	TableID   string    `gorm:"column:table_id;type:varchar(32);not null"`
	APIURL    string    `gorm:"column:api_url;type:varchar(128);not null"`
	APIKey    string    `gorm:"column:api_key;type:varchar(64);not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (GristReference) TableName() string { return "grist_references" }
