package grist

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/recoco/recoco-relay/pkg/db/models"
)

// Repository is the persistence surface of the tabular-store connector.
type Repository interface {
	EnabledConfigsByWebhook(ctx context.Context, webhookConfigID uuid.UUID) ([]models.GristConfig, error)
	FindConfig(ctx context.Context, id uuid.UUID) (*models.GristConfig, error)
	ReplaceColumns(ctx context.Context, cfg *models.GristConfig, columns []models.GristColumn) error
	FindProjectRecord(ctx context.Context, configID uuid.UUID, projectID int64) (*models.ProjectRecord, error)
	CreateProjectRecord(ctx context.Context, record *models.ProjectRecord) error
	TouchProjectRecord(ctx context.Context, record *models.ProjectRecord) error
	UpdateProjectRecordID(ctx context.Context, record *models.ProjectRecord) error
	ListReferences(ctx context.Context) ([]models.GristReference, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) EnabledConfigsByWebhook(ctx context.Context, webhookConfigID uuid.UUID) ([]models.GristConfig, error) {
	var configs []models.GristConfig
	err := r.db.WithContext(ctx).
		Preload("WebhookConfig").
		Preload("Columns", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("enabled = ? AND webhook_config_id = ?", true, webhookConfigID).
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *repository) FindConfig(ctx context.Context, id uuid.UUID) (*models.GristConfig, error) {
	var cfg models.GristConfig
	err := r.db.WithContext(ctx).
		Preload("WebhookConfig").
		Preload("Columns", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("id = ?", id).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) ReplaceColumns(ctx context.Context, cfg *models.GristConfig, columns []models.GristColumn) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("grist_config_id = ?", cfg.ID).Delete(&models.GristColumn{}).Error; err != nil {
			return err
		}
		if len(columns) == 0 {
			return nil
		}
		return tx.Create(&columns).Error
	})
}

func (r *repository) FindProjectRecord(ctx context.Context, configID uuid.UUID, projectID int64) (*models.ProjectRecord, error) {
	var record models.ProjectRecord
	err := r.db.WithContext(ctx).
		Where("grist_config_id = ? AND project_id = ?", configID, projectID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) CreateProjectRecord(ctx context.Context, record *models.ProjectRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) TouchProjectRecord(ctx context.Context, record *models.ProjectRecord) error {
	return r.db.WithContext(ctx).
		Model(record).
		Update("updated_at", time.Now().UTC()).Error
}

func (r *repository) UpdateProjectRecordID(ctx context.Context, record *models.ProjectRecord) error {
	return r.db.WithContext(ctx).
		Model(record).
		Update("record_id", record.RecordID).Error
}

func (r *repository) ListReferences(ctx context.Context) ([]models.GristReference, error) {
	var references []models.GristReference
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&references).Error; err != nil {
		return nil, err
	}
	return references, nil
}
