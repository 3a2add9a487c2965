package grist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recoco/recoco-relay/internal/mapping"
	"github.com/recoco/recoco-relay/internal/recoco"
	"github.com/recoco/recoco-relay/pkg/config"
	"github.com/recoco/recoco-relay/pkg/db/models"
	pkgerrors "github.com/recoco/recoco-relay/pkg/errors"
	"github.com/recoco/recoco-relay/pkg/logger"
	"github.com/recoco/recoco-relay/pkg/metrics"
)

// Service exposes the operational jobs of the tabular-store connector:
// table setup, bulk population and refresh, column reconciliation, and
// reference mirroring.
type Service struct {
	repo           Repository
	syncer         *Syncer
	logg           *logger.Logger
	metrics        *metrics.SyncMetrics
	maxLabelChars  int
	batchSize      int
	requestTimeout time.Duration
	newRecoco      recocoClientFactory
	newGrist       gristClientFactory
}

// ServiceParams carries the service dependencies.
type ServiceParams struct {
	Repo    Repository
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
	Recoco  config.RecocoConfig
	Grist   config.GristConfig

	RecocoFactory recocoClientFactory
	GristFactory  gristClientFactory
}

// NewService builds the operations service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("grist repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	syncer, err := NewSyncer(params.Repo, params.Logger, params.Grist.RecordBatchSize)
	if err != nil {
		return nil, err
	}

	newRecoco := params.RecocoFactory
	if newRecoco == nil {
		newRecoco = func(apiURL string) (*recoco.Client, error) {
			return recoco.NewClient(apiURL, params.Recoco)
		}
	}
	newGrist := params.GristFactory
	if newGrist == nil {
		newGrist = func(cfg *models.GristConfig) (*Client, error) {
			return NewClientFromConfig(cfg, WithRequestTimeout(params.Grist.RequestTimeout))
		}
	}

	batchSize := params.Grist.RecordBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	maxLabelChars := params.Grist.ColumnHeaderMaxChars
	if maxLabelChars <= 0 {
		maxLabelChars = 64
	}

	return &Service{
		repo:           params.Repo,
		syncer:         syncer,
		logg:           params.Logger,
		metrics:        params.Metrics,
		maxLabelChars:  maxLabelChars,
		batchSize:      batchSize,
		requestTimeout: params.Grist.RequestTimeout,
		newRecoco:      newRecoco,
		newGrist:       newGrist,
	}, nil
}

func (s *Service) enabledConfig(ctx context.Context, configID uuid.UUID) (*models.GristConfig, error) {
	cfg, err := s.repo.FindConfig(ctx, configID)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, pkgerrors.New(pkgerrors.CodeConfig, "grist config is disabled")
	}
	return cfg, nil
}

// SetupTable creates and populates the configured table when absent, or
// refreshes every project record when the table exists and its schema is
// consistent with the configured columns.
func (s *Service) SetupTable(ctx context.Context, configID uuid.UUID) error {
	cfg, err := s.enabledConfig(ctx, configID)
	if err != nil {
		return err
	}
	ctx = s.logg.WithConfigID(s.logg.WithConnector(ctx, ConnectorName), cfg.ID.String())

	client, err := s.newGrist(cfg)
	if err != nil {
		return err
	}

	exists, err := client.TableExists(ctx, cfg.TableID)
	if err != nil {
		return err
	}

	if !exists {
		if err := client.CreateTable(ctx, cfg.TableID, DesiredColumns(cfg)); err != nil {
			return err
		}
		s.logg.Info(ctx, "table created, starting population")
		return s.populate(ctx, cfg, client)
	}

	remote, err := client.GetTableColumns(ctx, cfg.TableID)
	if err != nil {
		return err
	}
	if !Consistent(DesiredColumns(cfg), remote) {
		return pkgerrors.New(pkgerrors.CodeConflict, "table columns are out of sync, refusing refresh")
	}

	return s.refresh(ctx, cfg, client)
}

// Populate bulk-inserts every portal project into the configured table.
func (s *Service) Populate(ctx context.Context, configID uuid.UUID) error {
	cfg, err := s.enabledConfig(ctx, configID)
	if err != nil {
		return err
	}
	ctx = s.logg.WithConfigID(s.logg.WithConnector(ctx, ConnectorName), cfg.ID.String())

	client, err := s.newGrist(cfg)
	if err != nil {
		return err
	}
	return s.populate(ctx, cfg, client)
}

func (s *Service) populate(ctx context.Context, cfg *models.GristConfig, client *Client) error {
	recocoClient, err := s.newRecoco(cfg.WebhookConfig.APIURL)
	if err != nil {
		return err
	}

	desired := cfg.ColumnIDs()
	var items []PopulateItem
	err = recoco.ForEachProject(ctx, s.logg, recocoClient, func(projectID int64, fields mapping.FieldMap) error {
		items = append(items, PopulateItem{
			ProjectID: projectID,
			Fields:    mapping.Restrict(fields, desired),
		})
		return nil
	})
	if err != nil {
		return err
	}

	result := s.syncer.Populate(ctx, cfg, client, items)
	s.metrics.AddRecordsUpserted(ConnectorName, result.Created)
	s.metrics.AddRecordErrors(ConnectorName, len(result.Errors))

	if aggregate := result.Aggregate(); aggregate != nil {
		s.logg.Error(ctx, fmt.Sprintf("population finished with %d failures", len(result.Errors)), aggregate)
	}
	s.logg.Info(s.logg.WithField(ctx, "created", result.Created), "population finished")
	return nil
}

func (s *Service) refresh(ctx context.Context, cfg *models.GristConfig, client *Client) error {
	recocoClient, err := s.newRecoco(cfg.WebhookConfig.APIURL)
	if err != nil {
		return err
	}

	desired := cfg.ColumnIDs()
	var failures int
	err = recoco.ForEachProject(ctx, s.logg, recocoClient, func(projectID int64, fields mapping.FieldMap) error {
		restricted := mapping.Restrict(fields, desired)
		if err := s.syncer.UpsertProjectRecord(ctx, cfg, client, projectID, restricted); err != nil {
			failures++
			s.logg.Error(s.logg.WithProjectID(ctx, projectID), "refreshing project record", err)
			return nil
		}
		s.metrics.AddRecordsUpserted(ConnectorName, 1)
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.AddRecordErrors(ConnectorName, failures)
	s.logg.Info(ctx, "refresh finished")
	return nil
}

// SyncColumns reconciles the remote table schema with the configured
// columns and returns the diff.
func (s *Service) SyncColumns(ctx context.Context, configID uuid.UUID) (SchemaDiff, error) {
	cfg, err := s.enabledConfig(ctx, configID)
	if err != nil {
		return SchemaDiff{}, err
	}
	ctx = s.logg.WithConfigID(s.logg.WithConnector(ctx, ConnectorName), cfg.ID.String())

	client, err := s.newGrist(cfg)
	if err != nil {
		return SchemaDiff{}, err
	}

	exists, err := client.TableExists(ctx, cfg.TableID)
	if err != nil {
		return SchemaDiff{}, err
	}
	if !exists {
		return SchemaDiff{}, pkgerrors.New(pkgerrors.CodeNotFound, "remote table does not exist")
	}

	reconciler, err := NewReconciler(client, s.logg)
	if err != nil {
		return SchemaDiff{}, err
	}
	return reconciler.SyncColumns(ctx, cfg.TableID, DesiredColumns(cfg))
}

// ResetColumns rebuilds the stored column catalog from the fixed project
// spec plus the portal's current questions.
func (s *Service) ResetColumns(ctx context.Context, configID uuid.UUID) error {
	cfg, err := s.enabledConfig(ctx, configID)
	if err != nil {
		return err
	}
	ctx = s.logg.WithConfigID(s.logg.WithConnector(ctx, ConnectorName), cfg.ID.String())

	recocoClient, err := s.newRecoco(cfg.WebhookConfig.APIURL)
	if err != nil {
		return err
	}

	specs, err := BuildColumnCatalog(ctx, recocoClient, s.maxLabelChars)
	if err != nil {
		return err
	}

	if err := s.repo.ReplaceColumns(ctx, cfg, ColumnModels(cfg, specs)); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "columns", len(specs)), "column catalog rebuilt")
	return nil
}

// SyncReferences mirrors every registered reference table into the
// configured document.
func (s *Service) SyncReferences(ctx context.Context, configID uuid.UUID) error {
	cfg, err := s.enabledConfig(ctx, configID)
	if err != nil {
		return err
	}
	ctx = s.logg.WithConfigID(s.logg.WithConnector(ctx, ConnectorName), cfg.ID.String())

	references, err := s.repo.ListReferences(ctx)
	if err != nil {
		return err
	}

	dest, err := s.newGrist(cfg)
	if err != nil {
		return err
	}

	for _, reference := range references {
		source, err := NewClient(reference.APIURL, reference.APIKey, reference.DocID, WithRequestTimeout(s.requestTimeout))
		if err != nil {
			return fmt.Errorf("reference %s: %w", reference.Name, err)
		}
		mirror, err := NewMirror(source, dest, s.logg, s.batchSize)
		if err != nil {
			return err
		}
		if err := mirror.MirrorTable(ctx, reference.TableID); err != nil {
			return fmt.Errorf("reference %s: %w", reference.Name, err)
		}
	}
	return nil
}
