package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookConfig describes one upstream portal allowed to push events.
// The code is the opaque path segment the portal posts to.
type WebhookConfig struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code      string    `gorm:"column:code;type:varchar(32);uniqueIndex;not null"`
	APIURL    string    `gorm:"column:api_url;type:varchar(255);not null"`
	Enabled   bool      `gorm:"column:enabled;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (WebhookConfig) TableName() string { return "webhook_configs" }
