package lescommuns

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/recoco/recoco-relay/internal/connectors"
	"github.com/recoco/recoco-relay/internal/recoco"
	"github.com/recoco/recoco-relay/pkg/config"
	"github.com/recoco/recoco-relay/pkg/db/models"
	"github.com/recoco/recoco-relay/pkg/enums"
	"github.com/recoco/recoco-relay/pkg/metrics"
)

type connectorRepo struct {
	Repository

	config     *models.LesCommunsConfig
	project    *models.LesCommunsProject
	created    []*models.LesCommunsProject
	configHits int
	saved      json.RawMessage
	selected   bool
}

func (r *connectorRepo) EnabledConfigsByWebhook(_ context.Context, webhookConfigID uuid.UUID) ([]models.LesCommunsConfig, error) {
	r.configHits++
	if r.config == nil || r.config.WebhookConfigID != webhookConfigID {
		return nil, nil
	}
	return []models.LesCommunsConfig{*r.config}, nil
}

func (r *connectorRepo) FindConfig(_ context.Context, id uuid.UUID) (*models.LesCommunsConfig, error) {
	if r.config == nil || r.config.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.config, nil
}

func (r *connectorRepo) FindProject(_ context.Context, configID uuid.UUID, recocoID int64) (*models.LesCommunsProject, error) {
	if r.project == nil || r.project.ConfigID != configID || r.project.RecocoID != recocoID {
		return nil, gorm.ErrRecordNotFound
	}
	return r.project, nil
}

func (r *connectorRepo) FindProjectByID(_ context.Context, id uuid.UUID) (*models.LesCommunsProject, error) {
	if r.project == nil || r.project.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.project, nil
}

func (r *connectorRepo) CreateProject(_ context.Context, project *models.LesCommunsProject) error {
	project.ID = uuid.New()
	r.created = append(r.created, project)
	r.project = project
	return nil
}

func (r *connectorRepo) TouchProject(_ context.Context, project *models.LesCommunsProject) error {
	project.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *connectorRepo) SetRecommendation(_ context.Context, project *models.LesCommunsProject, recommendationID int64) error {
	project.RecommendationID = &recommendationID
	return nil
}

func (r *connectorRepo) SaveServices(_ context.Context, project *models.LesCommunsProject, services json.RawMessage) error {
	r.saved = services
	project.Services = services
	return nil
}

func (r *connectorRepo) SelectionExists(context.Context, int64) (bool, error) {
	return r.selected, nil
}

// connectorFixture wires a connector against one httptest server playing
// both the portal API and the partner registry.
func connectorFixture(t *testing.T, handler http.Handler) (*connectorRepo, *Connector, *models.WebhookEvent) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	webhookConfigID := uuid.New()
	repo := &connectorRepo{
		config: &models.LesCommunsConfig{
			ID:              uuid.New(),
			Name:            "test",
			Enabled:         true,
			WebhookConfigID: webhookConfigID,
			WebhookConfig: &models.WebhookConfig{
				ID:      webhookConfigID,
				APIURL:  srv.URL,
				Enabled: true,
			},
		},
	}

	cfg := config.LesCommunsConfig{
		APIURL:           srv.URL,
		APIKey:           "fixed-key",
		ResourceTag:      "lescommuns",
		ServicesAttempts: 1,
		ServicesBackoff:  time.Millisecond,
	}
	connector, err := NewConnector(ConnectorParams{
		Repo:    repo,
		Logger:  testLogger(),
		Metrics: metrics.NewSyncMetrics(nil),
		Recoco:  config.RecocoConfig{Username: "sync", Password: "pass"},
		Config:  cfg,
		RecocoFactory: func(string) (*recoco.Client, error) {
			return recoco.NewClient(srv.URL, config.RecocoConfig{Username: "sync", Password: "pass"})
		},
	})
	if err != nil {
		t.Fatalf("failed to build connector: %v", err)
	}

	event := &models.WebhookEvent{
		ID:              uuid.New(),
		WebhookConfigID: webhookConfigID,
		Payload:         []byte(`{}`),
	}
	return repo, connector, event
}

func portalMux(t *testing.T, services []map[string]any) (*http.ServeMux, *[]string) {
	t.Helper()

	var paths []string
	mux := http.NewServeMux()
	mux.HandleFunc("/token/", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access": "tok"})
	})
	mux.HandleFunc("/projects/777/", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":     777,
			"name":   "Pôle Santé",
			"status": "DONE",
		})
	})
	mux.HandleFunc("/projets/", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/projets/":
			json.NewEncoder(w).Encode(map[string]any{"id": 99})
		case r.Method == http.MethodPatch:
			w.WriteHeader(http.StatusOK)
		default:
			json.NewEncoder(w).Encode(services)
		}
	})
	return mux, &paths
}

func TestOnEventIgnoresUnrelatedObjectTypes(t *testing.T) {
	repo, connector, event := connectorFixture(t, http.NotFoundHandler())

	err := connector.OnEvent(context.Background(), 777, enums.ObjectTypeTaggedItem, connectors.Context{Event: event})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.configHits != 0 {
		t.Fatalf("expected no config lookup for an unrelated object type")
	}
}

func TestOnEventIgnoresUntaggedRecommendation(t *testing.T) {
	repo, connector, event := connectorFixture(t, http.NotFoundHandler())
	event.Payload = []byte(`{"object":{"id":31,"resource":{"tags":["other"]}}}`)

	err := connector.OnEvent(context.Background(), 777, enums.ObjectTypeRecommendation, connectors.Context{Event: event})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.configHits != 0 {
		t.Fatalf("expected no config lookup for an untagged recommendation")
	}
}

func TestOnEventCreatesRegistryProject(t *testing.T) {
	mux, paths := portalMux(t, []map[string]any{{"nom": "indicateur"}})
	repo, connector, event := connectorFixture(t, mux)

	err := connector.OnEvent(context.Background(), 777, enums.ObjectTypeProject, connectors.Context{Event: event})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 registry project, got %d", len(repo.created))
	}
	project := repo.created[0]
	if project.RemoteID != "99" {
		t.Fatalf("unexpected remote id %q", project.RemoteID)
	}
	if project.RecocoID != 777 {
		t.Fatalf("unexpected canonical id %d", project.RecocoID)
	}
	if (*paths)[0] != "POST /projets/" {
		t.Fatalf("expected a registry create first, got %v", *paths)
	}
	if repo.saved == nil {
		t.Fatalf("expected the provisioned services to be stored")
	}
}

func TestOnEventTaggedRecommendationUpdatesProject(t *testing.T) {
	mux, paths := portalMux(t, []map[string]any{{"nom": "indicateur"}})
	mux.HandleFunc("/api/resource-addons/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]any{"count": 0, "results": []any{}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": 7})
	})
	repo, connector, event := connectorFixture(t, mux)
	event.Payload = []byte(`{"object":{"id":31,"resource":{"tags":["lescommuns"]}}}`)
	repo.project = &models.LesCommunsProject{
		ID:       uuid.New(),
		ConfigID: repo.config.ID,
		RecocoID: 777,
		RemoteID: "99",
	}

	err := connector.OnEvent(context.Background(), 777, enums.ObjectTypeRecommendation, connectors.Context{Event: event})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.project.RecommendationID == nil || *repo.project.RecommendationID != 31 {
		t.Fatalf("expected the recommendation id to be recorded, got %v", repo.project.RecommendationID)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected an update, not a create")
	}
	if (*paths)[0] != "PATCH /projets/99/" {
		t.Fatalf("expected a registry update first, got %v", *paths)
	}
}

func TestOnEventSkipsUnselectedProject(t *testing.T) {
	repo, _, event := connectorFixture(t, http.NotFoundHandler())
	repo.selected = false

	cfg := config.LesCommunsConfig{
		APIURL:           repo.config.WebhookConfig.APIURL,
		APIKey:           "fixed-key",
		ResourceTag:      "lescommuns",
		SelectionEnabled: true,
		ServicesAttempts: 1,
		ServicesBackoff:  time.Millisecond,
	}
	connector, err := NewConnector(ConnectorParams{
		Repo:    repo,
		Logger:  testLogger(),
		Metrics: metrics.NewSyncMetrics(nil),
		Recoco:  config.RecocoConfig{Username: "sync", Password: "pass"},
		Config:  cfg,
	})
	if err != nil {
		t.Fatalf("failed to build connector: %v", err)
	}

	err = connector.OnEvent(context.Background(), 777, enums.ObjectTypeProject, connectors.Context{Event: event})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no registry project for an unselected project")
	}
}
