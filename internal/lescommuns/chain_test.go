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

	"github.com/recoco/recoco-relay/internal/recoco"
	"github.com/recoco/recoco-relay/pkg/config"
	"github.com/recoco/recoco-relay/pkg/db/models"
	pkgerrors "github.com/recoco/recoco-relay/pkg/errors"
)

type chainRepo struct {
	Repository

	config  *models.LesCommunsConfig
	project *models.LesCommunsProject
	saved   json.RawMessage
}

func (r *chainRepo) FindConfig(_ context.Context, id uuid.UUID) (*models.LesCommunsConfig, error) {
	if r.config == nil || r.config.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.config, nil
}

func (r *chainRepo) FindProjectByID(_ context.Context, id uuid.UUID) (*models.LesCommunsProject, error) {
	if r.project == nil || r.project.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.project, nil
}

func (r *chainRepo) SaveServices(_ context.Context, project *models.LesCommunsProject, services json.RawMessage) error {
	r.saved = services
	project.Services = services
	return nil
}

func chainFixtures(t *testing.T, servicesHandler http.HandlerFunc) (*chainRepo, *Orchestrator) {
	t.Helper()

	srv := httptest.NewServer(servicesHandler)
	t.Cleanup(srv.Close)

	repo := &chainRepo{
		config: &models.LesCommunsConfig{
			ID:      uuid.New(),
			Enabled: true,
			WebhookConfig: &models.WebhookConfig{
				APIURL:  srv.URL,
				Enabled: true,
			},
		},
		project: &models.LesCommunsProject{
			ID:       uuid.New(),
			RecocoID: 777,
			RemoteID: "lc-12",
		},
	}

	orchestrator, err := NewOrchestrator(OrchestratorParams{
		Repo:   repo,
		Logger: testLogger(),
		Config: config.LesCommunsConfig{
			APIURL:           srv.URL,
			APIKey:           "fixed-key",
			ResourceTag:      "lescommuns",
			ServicesAttempts: 2,
			ServicesBackoff:  time.Millisecond,
		},
		RecocoFactory: func(apiURL string) (*recoco.Client, error) {
			return recoco.NewClient(apiURL, config.RecocoConfig{
				Username: "sync@example.org",
				Password: "secret",
			})
		},
	})
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return repo, orchestrator
}

func TestLoadServicesStoresProvisionedServices(t *testing.T) {
	repo, orchestrator := chainFixtures(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projets/lc-12/services/" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer fixed-key" {
			t.Fatalf("unexpected auth header %q", got)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "name": "Service 1"},
			{"id": 2, "name": "Service 2"},
		})
	})

	step := orchestrator.LoadServices(repo.config.ID, repo.project.ID)
	if err := orchestrator.Run(context.Background(), step); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var stored []map[string]any
	if err := json.Unmarshal(repo.saved, &stored); err != nil {
		t.Fatalf("stored services: %v", err)
	}
	if len(stored) != 2 || stored[0]["name"] != "Service 1" {
		t.Fatalf("stored = %v", stored)
	}
}

func TestRunRetriesWhileNoWorkThenFails(t *testing.T) {
	var calls int
	repo, orchestrator := chainFixtures(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	})

	step := orchestrator.LoadServices(repo.config.ID, repo.project.ID)
	err := orchestrator.Run(context.Background(), step)
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	// initial attempt plus the configured retries
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if repo.saved != nil {
		t.Fatalf("no services must be stored, got %s", repo.saved)
	}
}

func TestRunAbortsOnDisabledConfig(t *testing.T) {
	var calls int
	repo, orchestrator := chainFixtures(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	})
	repo.config.Enabled = false

	step := orchestrator.LoadServices(repo.config.ID, repo.project.ID)
	err := orchestrator.Run(context.Background(), step)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConfig) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("remote must not be called for a disabled config, got %d calls", calls)
	}
}

func TestRunAbortsOnMissingProject(t *testing.T) {
	repo, orchestrator := chainFixtures(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("remote must not be called")
	})

	step := orchestrator.LoadServices(repo.config.ID, uuid.New())
	err := orchestrator.Run(context.Background(), step)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestSyncResourceAddonsCreatesAddon(t *testing.T) {
	var created map[string]any
	repo, orchestrator := chainFixtures(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/token/":
			_ = json.NewEncoder(w).Encode(map[string]string{"access": "tok", "refresh": "ref"})
		case r.URL.Path == "/api/resource-addons/" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"count": 0, "results": []map[string]any{}})
		case r.URL.Path == "/api/resource-addons/" && r.Method == http.MethodPost:
			if err := json.NewDecoder(r.Body).Decode(&created); err != nil {
				t.Fatalf("decode addon payload: %v", err)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 8})
		default:
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	recommendationID := int64(31)
	repo.project.RecommendationID = &recommendationID
	repo.project.Services = json.RawMessage(`[{"id":1,"name":"Service 1"}]`)

	step := orchestrator.SyncResourceAddons(repo.config.ID, repo.project.ID)
	if err := orchestrator.Run(context.Background(), step); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if created["recommendation"] != float64(31) {
		t.Fatalf("recommendation = %v", created["recommendation"])
	}
	if created["nature"] != "lescommuns" {
		t.Fatalf("nature = %v", created["nature"])
	}
	if created["enabled"] != true {
		t.Fatalf("enabled = %v", created["enabled"])
	}
	data, ok := created["data"].([]any)
	if !ok || len(data) != 1 {
		t.Fatalf("data = %v", created["data"])
	}
}

func TestSyncResourceAddonsUpdatesExistingAddon(t *testing.T) {
	var patchedPath string
	repo, orchestrator := chainFixtures(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/token/":
			_ = json.NewEncoder(w).Encode(map[string]string{"access": "tok", "refresh": "ref"})
		case r.URL.Path == "/api/resource-addons/" && r.Method == http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{
				"count":   1,
				"results": []map[string]any{{"id": 8}},
			})
		case r.Method == http.MethodPatch:
			patchedPath = r.URL.Path
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 8})
		default:
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	recommendationID := int64(31)
	repo.project.RecommendationID = &recommendationID
	repo.project.Services = json.RawMessage(`[{"id":1}]`)

	step := orchestrator.SyncResourceAddons(repo.config.ID, repo.project.ID)
	if err := orchestrator.Run(context.Background(), step); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if patchedPath != "/api/resource-addons/8/" {
		t.Fatalf("patched path = %q", patchedPath)
	}
}

func TestSyncResourceAddonsReportsNoWorkWithoutRecommendation(t *testing.T) {
	repo, orchestrator := chainFixtures(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("remote must not be called")
	})
	repo.project.Services = json.RawMessage(`[{"id":1}]`)

	step := orchestrator.SyncResourceAddons(repo.config.ID, repo.project.ID)
	done, err := step(context.Background())
	if err != nil {
		t.Fatalf("step: %v", err)
	}
	if done {
		t.Fatal("expected no work without a recommendation")
	}
}
