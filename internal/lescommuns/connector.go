package lescommuns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/recoco/recoco-relay/internal/connectors"
	"github.com/recoco/recoco-relay/internal/recoco"
	"github.com/recoco/recoco-relay/pkg/config"
	"github.com/recoco/recoco-relay/pkg/db"
	"github.com/recoco/recoco-relay/pkg/db/models"
	"github.com/recoco/recoco-relay/pkg/enums"
	"github.com/recoco/recoco-relay/pkg/logger"
	"github.com/recoco/recoco-relay/pkg/metrics"
)

// ConnectorName identifies the partner-registry connector in the registry.
const ConnectorName = "lescommuns"

type recocoClientFactory func(apiURL string) (*recoco.Client, error)

type registryClientFactory func(row *models.LesCommunsConfig) (*Client, error)

// Connector pushes project events into the partner registry and keeps the
// dependent services chain running after each upsert.
type Connector struct {
	repo        Repository
	logg        *logger.Logger
	metrics     *metrics.SyncMetrics
	cfg         config.LesCommunsConfig
	chain       *Orchestrator
	newRecoco   recocoClientFactory
	newRegistry registryClientFactory
}

// ConnectorParams carries the connector dependencies.
type ConnectorParams struct {
	Repo    Repository
	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics
	Recoco  config.RecocoConfig
	Config  config.LesCommunsConfig

	// test seams, default to the real clients
	RecocoFactory   recocoClientFactory
	RegistryFactory registryClientFactory
}

// NewConnector builds the partner-registry connector.
func NewConnector(params ConnectorParams) (*Connector, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("lescommuns repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	newRecoco := params.RecocoFactory
	if newRecoco == nil {
		newRecoco = func(apiURL string) (*recoco.Client, error) {
			return recoco.NewClient(apiURL, params.Recoco)
		}
	}
	newRegistry := params.RegistryFactory
	if newRegistry == nil {
		newRegistry = func(row *models.LesCommunsConfig) (*Client, error) {
			cfg := params.Config
			if row.APIKey != "" {
				cfg.APIKey = row.APIKey
			}
			return NewClient(cfg)
		}
	}

	chain, err := NewOrchestrator(OrchestratorParams{
		Repo:            params.Repo,
		Logger:          params.Logger,
		Config:          params.Config,
		RecocoFactory:   newRecoco,
		RegistryFactory: newRegistry,
	})
	if err != nil {
		return nil, err
	}

	return &Connector{
		repo:        params.Repo,
		logg:        params.Logger,
		metrics:     params.Metrics,
		cfg:         params.Config,
		chain:       chain,
		newRecoco:   newRecoco,
		newRegistry: newRegistry,
	}, nil
}

func (c *Connector) Name() string { return ConnectorName }

// OnEvent upserts the project into the registry for project events, and for
// recommendation events carrying the configured resource tag. Other types
// are ignored.
func (c *Connector) OnEvent(ctx context.Context, projectID int64, objectType enums.ObjectType, cctx connectors.Context) error {
	ctx = c.logg.WithConnector(ctx, ConnectorName)

	switch {
	case objectType.IsProject():
		return c.updateOrCreateProject(ctx, projectID, cctx, nil)

	case objectType == enums.ObjectTypeRecommendation:
		data := cctx.Event.ObjectData()
		if !hasResourceTag(data, c.cfg.ResourceTag) {
			return nil
		}
		recommendationID, ok := intAt(data, "id")
		if !ok {
			return nil
		}
		return c.updateOrCreateProject(ctx, projectID, cctx, &recommendationID)

	default:
		return nil
	}
}

func (c *Connector) updateOrCreateProject(ctx context.Context, projectID int64, cctx connectors.Context, recommendationID *int64) error {
	started := time.Now()

	rows, err := c.repo.EnabledConfigsByWebhook(ctx, cctx.Event.WebhookConfigID)
	if err != nil {
		c.metrics.IncFailure(ConnectorName)
		return err
	}

	for i := range rows {
		row := &rows[i]
		if err := c.syncProject(ctx, row, projectID, recommendationID); err != nil {
			c.metrics.IncFailure(ConnectorName)
			return err
		}
	}

	c.metrics.ObserveDuration(ConnectorName, time.Since(started))
	c.metrics.IncSuccess(ConnectorName)
	return nil
}

func (c *Connector) syncProject(ctx context.Context, row *models.LesCommunsConfig, projectID int64, recommendationID *int64) error {
	ctx = c.logg.WithConfigID(ctx, row.ID.String())

	if c.cfg.SelectionEnabled {
		selected, err := c.repo.SelectionExists(ctx, projectID)
		if err != nil {
			return err
		}
		if !selected {
			c.logg.Info(c.logg.WithProjectID(ctx, projectID), "project not selected for registry sync")
			return nil
		}
	}

	recocoClient, err := c.newRecoco(row.WebhookConfig.APIURL)
	if err != nil {
		return err
	}
	raw, err := recocoClient.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	payload := ProjectPayload(c.logg.WithProjectID(ctx, projectID), c.logg, raw)

	registry, err := c.newRegistry(row)
	if err != nil {
		return err
	}

	project, err := c.upsertRegistryProject(ctx, row, registry, projectID, payload)
	if err != nil {
		return err
	}

	if recommendationID != nil {
		if err := c.repo.SetRecommendation(ctx, project, *recommendationID); err != nil {
			return err
		}
	}

	c.metrics.AddRecordsUpserted(ConnectorName, 1)
	c.logg.Info(c.logg.WithProjectID(ctx, projectID), "registry project synced")

	// the registry provisions services asynchronously after a project
	// create, chase them with bounded retries
	steps := []Step{c.chain.LoadServices(row.ID, project.ID)}
	if project.RecommendationID != nil {
		steps = append(steps, c.chain.SyncResourceAddons(row.ID, project.ID))
	}
	if err := c.chain.Run(ctx, steps...); err != nil {
		c.logg.Error(ctx, "registry services chain failed", err)
	}
	return nil
}

func (c *Connector) upsertRegistryProject(ctx context.Context, row *models.LesCommunsConfig, registry *Client, projectID int64, payload Projet) (*models.LesCommunsProject, error) {
	project, err := c.repo.FindProject(ctx, row.ID, projectID)
	switch {
	case err == nil:
		if err := registry.UpdateProject(ctx, project.RemoteID, payload); err != nil {
			return nil, err
		}
		if err := c.repo.TouchProject(ctx, project); err != nil {
			return nil, err
		}
		return project, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		remoteID, err := registry.CreateProject(ctx, payload)
		if err != nil {
			return nil, err
		}
		project = &models.LesCommunsProject{
			ConfigID: row.ID,
			RecocoID: projectID,
			RemoteID: remoteID,
		}
		if err := c.repo.CreateProject(ctx, project); err != nil {
			if !db.IsUniqueViolation(err, "ux_lescommuns_projects_config_recoco") {
				return nil, err
			}
			existing, findErr := c.repo.FindProject(ctx, row.ID, projectID)
			if findErr != nil {
				return nil, findErr
			}
			c.logg.Warn(
				c.logg.WithProjectID(ctx, projectID),
				"concurrent registry project create detected, keeping existing record",
			)
			return existing, nil
		}
		return project, nil

	default:
		return nil, err
	}
}

// hasResourceTag reports whether the recommendation's nested resource
// carries the configured tag. Malformed payloads simply do not match.
func hasResourceTag(data map[string]any, tag string) bool {
	resource, ok := data["resource"].(map[string]any)
	if !ok {
		return false
	}
	tags, ok := resource["tags"].([]any)
	if !ok {
		return false
	}
	for _, candidate := range tags {
		if text, ok := candidate.(string); ok && text == tag {
			return true
		}
	}
	return false
}
