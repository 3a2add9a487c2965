package lescommuns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/recoco/recoco-relay/internal/recoco"
	"github.com/recoco/recoco-relay/pkg/config"
	"github.com/recoco/recoco-relay/pkg/db/models"
	pkgerrors "github.com/recoco/recoco-relay/pkg/errors"
	"github.com/recoco/recoco-relay/pkg/logger"
)

// Step is one unit of the dependent-resource chain. The boolean reports
// whether useful work was done; false without an error means the dependent
// resource is not ready yet and the whole chain should run again later.
type Step func(ctx context.Context) (bool, error)

var errNoWorkDone = errors.New("chain step reported no work done")

// Orchestrator runs dependent async steps with bounded retries. A step
// reporting "no work yet" re-runs the whole chain after an exponential
// backoff; a step failing with a coded domain error aborts immediately.
type Orchestrator struct {
	repo        Repository
	logg        *logger.Logger
	cfg         config.LesCommunsConfig
	newRecoco   recocoClientFactory
	newRegistry registryClientFactory
	attempts    uint64
	backoff     time.Duration
}

// OrchestratorParams carries the orchestrator dependencies.
type OrchestratorParams struct {
	Repo   Repository
	Logger *logger.Logger
	Config config.LesCommunsConfig

	// test seams, default to the real clients
	RecocoFactory   recocoClientFactory
	RegistryFactory registryClientFactory
}

// NewOrchestrator builds the chain orchestrator.
func NewOrchestrator(params OrchestratorParams) (*Orchestrator, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("lescommuns repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	attempts := params.Config.ServicesAttempts
	if attempts <= 0 {
		attempts = 5
	}
	backoff := params.Config.ServicesBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	newRecoco := params.RecocoFactory
	if newRecoco == nil {
		newRecoco = func(apiURL string) (*recoco.Client, error) {
			return recoco.NewClient(apiURL, config.RecocoConfig{
				Username: params.Config.Username,
				Password: params.Config.Password,
			})
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

	return &Orchestrator{
		repo:        params.Repo,
		logg:        params.Logger,
		cfg:         params.Config,
		newRecoco:   newRecoco,
		newRegistry: newRegistry,
		attempts:    uint64(attempts),
		backoff:     backoff,
	}, nil
}

// Run executes the steps in order, retrying the whole chain when any step
// reports no work done. Domain errors (disabled config, missing record)
// are fatal and never retried.
func (o *Orchestrator) Run(ctx context.Context, steps ...Step) error {
	backoff := retry.WithMaxRetries(o.attempts, retry.NewExponential(o.backoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		for _, step := range steps {
			done, err := step(ctx)
			if err != nil {
				return err
			}
			if !done {
				return retry.RetryableError(errNoWorkDone)
			}
		}
		return nil
	})
}

// LoadServices fetches the services the registry provisioned for the
// project and stores them on the local record. Reports no work while the
// registry has not provisioned them yet.
func (o *Orchestrator) LoadServices(configID, projectID uuid.UUID) Step {
	return func(ctx context.Context) (bool, error) {
		cfg, project, err := o.loadEnabled(ctx, configID, projectID)
		if err != nil {
			return false, err
		}

		client, err := o.newRegistry(cfg)
		if err != nil {
			return false, err
		}

		services, err := client.GetProjectServices(ctx, project.RemoteID)
		if err != nil {
			return false, err
		}
		if len(services) == 0 {
			return false, nil
		}

		encoded, err := json.Marshal(services)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode registry services")
		}
		if err := o.repo.SaveServices(ctx, project, encoded); err != nil {
			return false, err
		}

		o.logg.Info(o.logg.WithConfigID(ctx, configID.String()), "registry services stored")
		return true, nil
	}
}

// SyncResourceAddons upserts the portal resource addon carrying the stored
// services of the project's recommendation. Reports no work while the
// recommendation or the services are not known yet.
func (o *Orchestrator) SyncResourceAddons(configID, projectID uuid.UUID) Step {
	return func(ctx context.Context) (bool, error) {
		cfg, project, err := o.loadEnabled(ctx, configID, projectID)
		if err != nil {
			return false, err
		}
		if project.RecommendationID == nil || len(project.Services) == 0 {
			return false, nil
		}

		var services []map[string]any
		if err := json.Unmarshal(project.Services, &services); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode stored services")
		}

		client, err := o.newRecoco(cfg.WebhookConfig.APIURL)
		if err != nil {
			return false, err
		}

		payload := map[string]any{
			"recommendation": *project.RecommendationID,
			"nature":         o.cfg.ResourceTag,
			"data":           services,
			"enabled":        true,
		}

		addons, err := client.GetResourceAddons(ctx, *project.RecommendationID, o.cfg.ResourceTag)
		if err != nil {
			return false, err
		}
		if addons.Count == 0 {
			if _, err := client.CreateResourceAddon(ctx, payload); err != nil {
				return false, err
			}
			return true, nil
		}

		addonID, ok := intAt(addons.Results[0], "id")
		if !ok {
			return false, pkgerrors.New(pkgerrors.CodeDependency, "resource addon carries no id")
		}
		if err := client.UpdateResourceAddon(ctx, addonID, payload); err != nil {
			return false, err
		}
		return true, nil
	}
}

// loadEnabled re-reads the config and the project before every step: the
// config can be disabled between steps of a chain.
func (o *Orchestrator) loadEnabled(ctx context.Context, configID, projectID uuid.UUID) (*models.LesCommunsConfig, *models.LesCommunsProject, error) {
	cfg, err := o.repo.FindConfig(ctx, configID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "lescommuns config not found")
		}
		return nil, nil, err
	}
	if !cfg.Enabled {
		return nil, nil, pkgerrors.New(pkgerrors.CodeConfig, "lescommuns config is disabled")
	}
	if cfg.WebhookConfig != nil && !cfg.WebhookConfig.Enabled {
		return nil, nil, pkgerrors.New(pkgerrors.CodeConfig, "webhook config is disabled")
	}

	project, err := o.repo.FindProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "lescommuns project not found")
		}
		return nil, nil, err
	}
	return cfg, project, nil
}
