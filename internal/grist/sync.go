package grist

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/recoco/recoco-relay/internal/mapping"
	"github.com/recoco/recoco-relay/pkg/db"
	"github.com/recoco/recoco-relay/pkg/db/models"
	"github.com/recoco/recoco-relay/pkg/logger"
)

// recordAPI is the slice of the document client the sync engine needs.
type recordAPI interface {
	CreateRecords(ctx context.Context, tableID string, records []map[string]any) ([]int64, error)
	UpdateRecords(ctx context.Context, tableID string, records map[int64]map[string]any) error
}

// Syncer writes project field maps into a document table, keeping the
// project-to-record id mapping as the sole source of truth for create vs.
// update decisions.
type Syncer struct {
	repo      Repository
	logg      *logger.Logger
	batchSize int
}

// NewSyncer builds a sync engine. batchSize bounds bulk create calls.
func NewSyncer(repo Repository, logg *logger.Logger, batchSize int) (*Syncer, error) {
	if repo == nil {
		return nil, fmt.Errorf("grist repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Syncer{repo: repo, logg: logg, batchSize: batchSize}, nil
}

// UpsertProjectRecord creates or updates the remote record of a project.
// When two concurrent creates race, the loser hits the unique constraint on
// the mapping row and falls back to updating the winner's record.
func (s *Syncer) UpsertProjectRecord(ctx context.Context, cfg *models.GristConfig, client recordAPI, projectID int64, fields mapping.FieldMap) error {
	record, err := s.repo.FindProjectRecord(ctx, cfg.ID, projectID)
	switch {
	case err == nil:
		if err := client.UpdateRecords(ctx, cfg.TableID, map[int64]map[string]any{
			record.RecordID: fields,
		}); err != nil {
			return err
		}
		return s.repo.TouchProjectRecord(ctx, record)

	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.createProjectRecord(ctx, cfg, client, projectID, fields)

	default:
		return err
	}
}

func (s *Syncer) createProjectRecord(ctx context.Context, cfg *models.GristConfig, client recordAPI, projectID int64, fields mapping.FieldMap) error {
	payload := map[string]any{"object_id": projectID}
	for k, v := range fields {
		payload[k] = v
	}

	ids, err := client.CreateRecords(ctx, cfg.TableID, []map[string]any{payload})
	if err != nil {
		return err
	}
	if len(ids) != 1 {
		return fmt.Errorf("expected 1 created record id, got %d", len(ids))
	}

	record := &models.ProjectRecord{
		GristConfigID: cfg.ID,
		ProjectID:     projectID,
		RecordID:      ids[0],
	}
	if err := s.repo.CreateProjectRecord(ctx, record); err != nil {
		if !db.IsUniqueViolation(err, "ux_project_records_config_project") {
			return err
		}
		// lost the create race: another sync already registered a record
		// for this project, route the fields to that one instead
		existing, findErr := s.repo.FindProjectRecord(ctx, cfg.ID, projectID)
		if findErr != nil {
			return findErr
		}
		s.logg.Warn(
			s.logg.WithProjectID(ctx, projectID),
			"concurrent record create detected, falling back to update",
		)
		if err := client.UpdateRecords(ctx, cfg.TableID, map[int64]map[string]any{
			existing.RecordID: fields,
		}); err != nil {
			return err
		}
		return s.repo.TouchProjectRecord(ctx, existing)
	}
	return nil
}

// PopulateItem is one project to insert during a bulk population.
type PopulateItem struct {
	ProjectID int64
	Fields    mapping.FieldMap
}

// PopulateError ties a failed item to its cause.
type PopulateError struct {
	ProjectID int64
	Err       error
}

// PopulateResult aggregates the outcome of a bulk population.
type PopulateResult struct {
	Created int
	Errors  []PopulateError
}

// Aggregate combines all item failures into one error, nil when the
// population fully succeeded.
func (r PopulateResult) Aggregate() error {
	var combined error
	for _, item := range r.Errors {
		combined = multierr.Append(combined, fmt.Errorf("project %d: %w", item.ProjectID, item.Err))
	}
	return combined
}

// Populate bulk-inserts projects in fixed-size batches. A failing batch is
// retried item by item so one malformed record never blocks the rest; all
// failures are collected and reported at the end.
func (s *Syncer) Populate(ctx context.Context, cfg *models.GristConfig, client recordAPI, items []PopulateItem) PopulateResult {
	var result PopulateResult

	for start := 0; start < len(items); start += s.batchSize {
		end := start + s.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		records := make([]map[string]any, 0, len(batch))
		for _, item := range batch {
			payload := map[string]any{"object_id": item.ProjectID}
			for k, v := range item.Fields {
				payload[k] = v
			}
			records = append(records, payload)
		}

		ids, err := client.CreateRecords(ctx, cfg.TableID, records)
		if err == nil {
			s.registerMappings(ctx, cfg, batch, ids, &result)
			continue
		}

		s.logg.Error(ctx, "batch create failed, retrying records individually", err)
		for i, record := range records {
			ids, itemErr := client.CreateRecords(ctx, cfg.TableID, []map[string]any{record})
			if itemErr != nil {
				result.Errors = append(result.Errors, PopulateError{
					ProjectID: batch[i].ProjectID,
					Err:       itemErr,
				})
				continue
			}
			s.registerMappings(ctx, cfg, batch[i:i+1], ids, &result)
		}
	}

	return result
}

func (s *Syncer) registerMappings(ctx context.Context, cfg *models.GristConfig, batch []PopulateItem, ids []int64, result *PopulateResult) {
	for i, item := range batch {
		if i >= len(ids) {
			break
		}
		result.Created++

		record := &models.ProjectRecord{
			GristConfigID: cfg.ID,
			ProjectID:     item.ProjectID,
			RecordID:      ids[i],
		}
		err := s.repo.CreateProjectRecord(ctx, record)
		if err == nil {
			continue
		}
		if db.IsUniqueViolation(err, "ux_project_records_config_project") {
			existing, findErr := s.repo.FindProjectRecord(ctx, cfg.ID, item.ProjectID)
			if findErr == nil {
				existing.RecordID = ids[i]
				err = s.repo.UpdateProjectRecordID(ctx, existing)
			} else {
				err = findErr
			}
		}
		if err != nil {
			s.logg.Error(s.logg.WithProjectID(ctx, item.ProjectID), "registering record mapping", err)
		}
	}
}
