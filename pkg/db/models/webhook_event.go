package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/recoco/recoco-relay/pkg/enums"
)

// WebhookEvent is the durable record of one inbound change notification.
// It is created Pending by the ingestion gateway, published to the event
// queue by the relay publisher, and moved to exactly one terminal status
// by the worker.
type WebhookEvent struct {
	ID              uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WebhookUUID     uuid.UUID                `gorm:"column:webhook_uuid;type:uuid;not null"`
	WebhookConfigID uuid.UUID                `gorm:"column:webhook_config_id;type:uuid;not null;index"`
	WebhookConfig   *WebhookConfig           `gorm:"foreignKey:WebhookConfigID"`
	Topic           string                   `gorm:"column:topic;type:varchar(64);not null"`
	ObjectID        string                   `gorm:"column:object_id;type:varchar(32);not null"`
	ObjectType      enums.ObjectType         `gorm:"column:object_type;type:varchar(32);not null"`
	RemoteIP        string                   `gorm:"column:remote_ip;type:varchar(45)"`
	Headers         json.RawMessage          `gorm:"column:headers;type:jsonb"`
	Payload         json.RawMessage          `gorm:"column:payload;type:jsonb;not null"`
	Status          enums.WebhookEventStatus `gorm:"column:status;type:varchar(16);not null;default:'PENDING';index"`
	Exception       string                   `gorm:"column:exception;type:text"`
	AttemptCount    int                      `gorm:"column:attempt_count;not null;default:0"`
	PublishedAt     *time.Time               `gorm:"column:published_at"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

// ObjectData decodes the nested object from the raw payload, or an empty
// map when absent or malformed.
func (e *WebhookEvent) ObjectData() map[string]any {
	var envelope struct {
		Object map[string]any `json:"object"`
	}
	if err := json.Unmarshal(e.Payload, &envelope); err != nil || envelope.Object == nil {
		return map[string]any{}
	}
	return envelope.Object
}
