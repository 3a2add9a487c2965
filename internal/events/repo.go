package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/recoco/recoco-relay/pkg/db/models"
	"github.com/recoco/recoco-relay/pkg/enums"
	pkgerrors "github.com/recoco/recoco-relay/pkg/errors"
)

// Repository is the persistence surface of the event pipeline. The gateway
// creates events, the relay publisher claims and marks them published, and
// the worker writes the single terminal status transition.
type Repository interface {
	Create(ctx context.Context, event *models.WebhookEvent) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error)
	FindConfigByCode(ctx context.Context, code string) (*models.WebhookConfig, error)
	FetchPendingForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.WebhookEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkPublishFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkProcessed(ctx context.Context, event *models.WebhookEvent) error
	MarkInvalid(ctx context.Context, event *models.WebhookEvent, reason string) error
	MarkFailed(ctx context.Context, event *models.WebhookEvent, cause error) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	err := r.db.WithContext(ctx).
		Preload("WebhookConfig").
		Where("id = ?", id).
		First(&event).Error
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) FindConfigByCode(ctx context.Context, code string) (*models.WebhookConfig, error) {
	var cfg models.WebhookConfig
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&cfg).Error
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FetchPendingForPublish claims a batch of pending unpublished events.
// SKIP LOCKED keeps concurrent publisher instances off each other's rows.
func (r *repository) FetchPendingForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.WebhookEvent, error) {
	var rows []models.WebhookEvent
	err := tx.
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND published_at IS NULL AND attempt_count < ?", enums.EventStatusPending, maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	return tx.Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Update("published_at", time.Now().UTC()).Error
}

func (r *repository) MarkPublishFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	return tx.Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"exception":     err.Error(),
			"attempt_count": gorm.Expr("attempt_count + 1"),
		}).Error
}

// MarkFailedTx terminates an event inside the publisher transaction once
// its publish attempts are exhausted.
func (r *repository) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return tx.Model(&models.WebhookEvent{}).
		Where("id = ? AND status = ?", id, enums.EventStatusPending).
		Updates(map[string]any{
			"status":    enums.EventStatusFailed,
			"exception": reason,
		}).Error
}

func (r *repository) MarkProcessed(ctx context.Context, event *models.WebhookEvent) error {
	return r.transition(ctx, event, enums.EventStatusProcessed, "")
}

func (r *repository) MarkInvalid(ctx context.Context, event *models.WebhookEvent, reason string) error {
	return r.transition(ctx, event, enums.EventStatusInvalid, reason)
}

func (r *repository) MarkFailed(ctx context.Context, event *models.WebhookEvent, cause error) error {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return r.transition(ctx, event, enums.EventStatusFailed, reason)
}

// transition writes the terminal status. The status guard in the WHERE
// clause makes the transition single-shot: a concurrent worker that already
// terminated the event leaves nothing to update.
func (r *repository) transition(ctx context.Context, event *models.WebhookEvent, status enums.WebhookEventStatus, reason string) error {
	if event.Status.Terminal() {
		return pkgerrors.New(pkgerrors.CodeConflict, "event already has a terminal status")
	}

	updates := map[string]any{"status": status}
	if reason != "" {
		updates["exception"] = reason
	}

	result := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("id = ? AND status = ?", event.ID, enums.EventStatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "event already has a terminal status")
	}

	event.Status = status
	if reason != "" {
		event.Exception = reason
	}
	return nil
}
