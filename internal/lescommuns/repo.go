package lescommuns

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/recoco/recoco-relay/pkg/db/models"
)

// Repository is the persistence surface of the partner-registry connector.
type Repository interface {
	EnabledConfigsByWebhook(ctx context.Context, webhookConfigID uuid.UUID) ([]models.LesCommunsConfig, error)
	FindConfig(ctx context.Context, id uuid.UUID) (*models.LesCommunsConfig, error)
	FindProject(ctx context.Context, configID uuid.UUID, recocoID int64) (*models.LesCommunsProject, error)
	FindProjectByID(ctx context.Context, id uuid.UUID) (*models.LesCommunsProject, error)
	CreateProject(ctx context.Context, project *models.LesCommunsProject) error
	TouchProject(ctx context.Context, project *models.LesCommunsProject) error
	SetRecommendation(ctx context.Context, project *models.LesCommunsProject, recommendationID int64) error
	SaveServices(ctx context.Context, project *models.LesCommunsProject, services json.RawMessage) error
	SelectionExists(ctx context.Context, recocoID int64) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) EnabledConfigsByWebhook(ctx context.Context, webhookConfigID uuid.UUID) ([]models.LesCommunsConfig, error) {
	var configs []models.LesCommunsConfig
	err := r.db.WithContext(ctx).
		Preload("WebhookConfig").
		Where("enabled = ? AND webhook_config_id = ?", true, webhookConfigID).
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

func (r *repository) FindConfig(ctx context.Context, id uuid.UUID) (*models.LesCommunsConfig, error) {
	var cfg models.LesCommunsConfig
	err := r.db.WithContext(ctx).
		Preload("WebhookConfig").
		Where("id = ?", id).
		First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) FindProject(ctx context.Context, configID uuid.UUID, recocoID int64) (*models.LesCommunsProject, error) {
	var project models.LesCommunsProject
	err := r.db.WithContext(ctx).
		Where("config_id = ? AND recoco_id = ?", configID, recocoID).
		First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repository) FindProjectByID(ctx context.Context, id uuid.UUID) (*models.LesCommunsProject, error) {
	var project models.LesCommunsProject
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repository) CreateProject(ctx context.Context, project *models.LesCommunsProject) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *repository) TouchProject(ctx context.Context, project *models.LesCommunsProject) error {
	return r.db.WithContext(ctx).
		Model(project).
		Update("updated_at", time.Now().UTC()).Error
}

func (r *repository) SetRecommendation(ctx context.Context, project *models.LesCommunsProject, recommendationID int64) error {
	project.RecommendationID = &recommendationID
	return r.db.WithContext(ctx).
		Model(project).
		Update("recommendation_id", recommendationID).Error
}

func (r *repository) SaveServices(ctx context.Context, project *models.LesCommunsProject, services json.RawMessage) error {
	project.Services = services
	return r.db.WithContext(ctx).
		Model(project).
		Update("services", services).Error
}

// SelectionExists reports whether the project is allow-listed by at least
// one enabled configuration.
func (r *repository) SelectionExists(ctx context.Context, recocoID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.LesCommunsSelection{}).
		Joins("JOIN lescommuns_configs ON lescommuns_configs.id = lescommuns_selections.config_id").
		Where("lescommuns_selections.recoco_id = ? AND lescommuns_configs.enabled = ?", recocoID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
