package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// LesCommunsConfig enables the partner-registry connector for one webhook
// source.
type LesCommunsConfig struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string         `gorm:"column:name;type:varchar(255);not null"`
	APIKey          string         `gorm:"column:api_key;type:varchar(64)"`
	Enabled         bool           `gorm:"column:enabled;not null;default:true;index"`
	WebhookConfigID uuid.UUID      `gorm:"column:webhook_config_id;type:uuid;not null;index"`
	WebhookConfig   *WebhookConfig `gorm:"foreignKey:WebhookConfigID"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (LesCommunsConfig) TableName() string { return "lescommuns_configs" }

// LesCommunsProject maps a canonical project id to the partner registry's
// record id, plus the services payload fetched after creation.
type LesCommunsProject struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ConfigID         uuid.UUID       `gorm:"column:config_id;type:uuid;not null;uniqueIndex:ux_lescommuns_projects_config_recoco,priority:1"`
	RecocoID         int64           `gorm:"column:recoco_id;not null;uniqueIndex:ux_lescommuns_projects_config_recoco,priority:2"`
	RemoteID         string          `gorm:"column:remote_id;type:varchar(100);not null"`
	RecommendationID *int64          `gorm:"column:recommendation_id"`
	Services         json.RawMessage `gorm:"column:services;type:jsonb"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (LesCommunsProject) TableName() string { return "lescommuns_projects" }

// LesCommunsSelection is the optional allow-list gating which projects are
// pushed to the partner registry.
type LesCommunsSelection struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ConfigID  uuid.UUID `gorm:"column:config_id;type:uuid;not null;uniqueIndex:ux_lescommuns_selections_config_recoco,priority:1"`
	RecocoID  int64     `gorm:"column:recoco_id;not null;uniqueIndex:ux_lescommuns_selections_config_recoco,priority:2"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (LesCommunsSelection) TableName() string { return "lescommuns_selections" }
