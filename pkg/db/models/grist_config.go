package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/recoco/recoco-relay/pkg/enums"
)

// GristConfig targets one table of one Grist document for a webhook source.
type GristConfig struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name            string         `gorm:"column:name;type:varchar(255);not null"`
	DocID           string         `gorm:"column:doc_id;type:varchar(32);not null"`
	TableID         string         `gorm:"column:table_id;type:varchar(32);not null"`
	Enabled         bool           `gorm:"column:enabled;not null;default:true;index"`
	APIURL          string         `gorm:"column:api_url;type:varchar(128);not null"`
	APIKey          string         `gorm:"column:api_key;type:varchar(64);not null"`
	WebhookConfigID uuid.UUID      `gorm:"column:webhook_config_id;type:uuid;not null;index"`
	WebhookConfig   *WebhookConfig `gorm:"foreignKey:WebhookConfigID"`
	Columns         []GristColumn  `gorm:"foreignKey:GristConfigID"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (GristConfig) TableName() string { return "grist_configs" }

// ColumnIDs returns the configured column ids in position order.
func (c *GristConfig) ColumnIDs() []string {
	ids := make([]string, 0, len(c.Columns))
	for _, col := range c.Columns {
		ids = append(ids, col.ColID)
	}
	return ids
}

// GristColumn is one desired column of the target table. Position drives
// the remote column ordering and must be unique per config.
type GristColumn struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GristConfigID uuid.UUID        `gorm:"column:grist_config_id;type:uuid;not null;uniqueIndex:ux_grist_columns_config_col,priority:1"`
	ColID         string           `gorm:"column:col_id;type:varchar(64);not null;uniqueIndex:ux_grist_columns_config_col,priority:2"`
	Label         string           `gorm:"column:label;type:varchar(128);not null"`
	Type          enums.ColumnType `gorm:"column:type;type:varchar(32);not null;default:'Text'"`
	Position      int              `gorm:"column:position;not null;default:0"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (GristColumn) TableName() string { return "grist_columns" }
