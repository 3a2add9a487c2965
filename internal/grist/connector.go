package grist

import (
	"context"
	"fmt"
	"time"

	"github.com/recoco/recoco-relay/internal/connectors"
	"github.com/recoco/recoco-relay/internal/mapping"
	"github.com/recoco/recoco-relay/internal/recoco"
	"github.com/recoco/recoco-relay/pkg/config"
	"github.com/recoco/recoco-relay/pkg/db/models"
	"github.com/recoco/recoco-relay/pkg/enums"
	"github.com/recoco/recoco-relay/pkg/logger"
	"github.com/recoco/recoco-relay/pkg/metrics"
)

// ConnectorName identifies the tabular-store connector in the registry.
const ConnectorName = "grist"

type recocoClientFactory func(apiURL string) (*recoco.Client, error)

type gristClientFactory func(cfg *models.GristConfig) (*Client, error)

// Connector relays project events into every enabled document
// configuration of the event's webhook source.
type Connector struct {
	repo      Repository
	syncer    *Syncer
	logg      *logger.Logger
	metrics   *metrics.SyncMetrics
	newRecoco recocoClientFactory
	newGrist  gristClientFactory
}

// ConnectorParams carries the connector dependencies.
type ConnectorParams struct {
	Repo           Repository
	Logger         *logger.Logger
	Metrics        *metrics.SyncMetrics
	Recoco         config.RecocoConfig
	BatchSize      int
	RequestTimeout time.Duration

	// test seams, default to the real clients
	RecocoFactory recocoClientFactory
	GristFactory  gristClientFactory
}

// NewConnector builds the tabular-store connector.
func NewConnector(params ConnectorParams) (*Connector, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("grist repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	syncer, err := NewSyncer(params.Repo, params.Logger, params.BatchSize)
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
			return NewClientFromConfig(cfg, WithRequestTimeout(params.RequestTimeout))
		}
	}

	return &Connector{
		repo:      params.Repo,
		syncer:    syncer,
		logg:      params.Logger,
		metrics:   params.Metrics,
		newRecoco: newRecoco,
		newGrist:  newGrist,
	}, nil
}

func (c *Connector) Name() string { return ConnectorName }

// OnEvent syncs the project into every enabled config of the event's
// webhook source. Non-project types are ignored.
func (c *Connector) OnEvent(ctx context.Context, projectID int64, objectType enums.ObjectType, cctx connectors.Context) error {
	if !objectType.IsProject() {
		return nil
	}

	ctx = c.logg.WithConnector(ctx, ConnectorName)
	started := time.Now()

	configs, err := c.repo.EnabledConfigsByWebhook(ctx, cctx.Event.WebhookConfigID)
	if err != nil {
		c.metrics.IncFailure(ConnectorName)
		return err
	}

	for i := range configs {
		cfg := &configs[i]
		if err := c.syncProject(ctx, cfg, projectID); err != nil {
			c.metrics.IncFailure(ConnectorName)
			return err
		}
	}

	c.metrics.ObserveDuration(ConnectorName, time.Since(started))
	c.metrics.IncSuccess(ConnectorName)
	return nil
}

func (c *Connector) syncProject(ctx context.Context, cfg *models.GristConfig, projectID int64) error {
	ctx = c.logg.WithConfigID(ctx, cfg.ID.String())

	desired := cfg.ColumnIDs()
	if len(desired) == 0 {
		c.logg.Warn(ctx, "config has no columns, nothing to sync")
		return nil
	}

	recocoClient, err := c.newRecoco(cfg.WebhookConfig.APIURL)
	if err != nil {
		return err
	}

	fields, err := recoco.FetchProjectFields(ctx, c.logg, recocoClient, projectID)
	if err != nil {
		return err
	}

	gristClient, err := c.newGrist(cfg)
	if err != nil {
		return err
	}

	restricted := mapping.Restrict(fields, desired)
	if err := c.syncer.UpsertProjectRecord(ctx, cfg, gristClient, projectID, restricted); err != nil {
		return err
	}

	c.metrics.AddRecordsUpserted(ConnectorName, 1)
	c.logg.Info(c.logg.WithProjectID(ctx, projectID), "project record synced")
	return nil
}
