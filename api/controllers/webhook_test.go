package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/recoco/recoco-relay/internal/events"
	"github.com/recoco/recoco-relay/pkg/db/models"
	"github.com/recoco/recoco-relay/pkg/enums"
	"github.com/recoco/recoco-relay/pkg/idempotency"
	"github.com/recoco/recoco-relay/pkg/logger"
	"github.com/recoco/recoco-relay/pkg/security"
	"github.com/recoco/recoco-relay/pkg/types"
)

const testSecret = "s3cret"

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

type gatewayRepo struct {
	events.Repository

	configs map[string]*models.WebhookConfig
	created []*models.WebhookEvent
}

func (r *gatewayRepo) FindConfigByCode(_ context.Context, code string) (*models.WebhookConfig, error) {
	cfg, ok := r.configs[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return cfg, nil
}

func (r *gatewayRepo) Create(_ context.Context, event *models.WebhookEvent) error {
	event.ID = uuid.New()
	r.created = append(r.created, event)
	return nil
}

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]string{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	s.keys[key] = fmt.Sprint(value)
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "relay:idempotency:" + scope + ":" + id
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func newGatewayHandler(t *testing.T, repo *gatewayRepo) http.Handler {
	t.Helper()

	guard, err := idempotency.NewGuard(newMemoryStore(), time.Hour)
	if err != nil {
		t.Fatalf("failed to build guard: %v", err)
	}

	r := chi.NewRouter()
	r.Post("/api/webhook/{code}", Webhook(WebhookParams{
		Repo:   repo,
		Guard:  guard,
		Logger: testLogger(),
		Secret: testSecret,
	}))
	return r
}

func signedRequest(t *testing.T, code string, body []byte) *http.Request {
	t.Helper()

	ts := "1700000000"
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/"+code, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(timestampHeader, ts)
	req.Header.Set(signatureHeader, security.Sign(testSecret, ts, body))
	return req
}

func webhookBody(t *testing.T, webhookUUID uuid.UUID) []byte {
	t.Helper()

	raw, err := json.Marshal(map[string]any{
		"topic":        "projects.Project.update",
		"object":       map[string]any{"id": 42, "name": "Pôle Santé"},
		"object_type":  "projects.Project",
		"webhook_uuid": webhookUUID.String(),
	})
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return raw
}

func decodeAck(t *testing.T, body io.Reader) webhookAck {
	t.Helper()

	var envelope struct {
		Data webhookAck `json:"data"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode ack: %v", err)
	}
	return envelope.Data
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	repo := &gatewayRepo{configs: map[string]*models.WebhookConfig{}}
	handler := newGatewayHandler(t, repo)

	body := webhookBody(t, uuid.New())
	req := signedRequest(t, "main", body)
	req.Header.Set(signatureHeader, "deadbeef")

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 but got %d", w.Code)
	}
	var envelope types.ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no event to be created")
	}
}

func TestWebhookAcksUnknownCodeAsInvalid(t *testing.T) {
	repo := &gatewayRepo{configs: map[string]*models.WebhookConfig{}}
	handler := newGatewayHandler(t, repo)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, signedRequest(t, "nope", webhookBody(t, uuid.New())))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", w.Code)
	}
	ack := decodeAck(t, w.Body)
	if ack.ID != nil {
		t.Fatalf("expected a nil event id, got %v", ack.ID)
	}
	if ack.Status != enums.EventStatusInvalid {
		t.Fatalf("unexpected status %s", ack.Status)
	}
	if ack.Message != "Invalid webhook code" {
		t.Fatalf("unexpected message %q", ack.Message)
	}
}

func TestWebhookAcksDisabledConfigAsInvalid(t *testing.T) {
	repo := &gatewayRepo{configs: map[string]*models.WebhookConfig{
		"main": {ID: uuid.New(), Code: "main", Enabled: false},
	}}
	handler := newGatewayHandler(t, repo)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, signedRequest(t, "main", webhookBody(t, uuid.New())))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", w.Code)
	}
	ack := decodeAck(t, w.Body)
	if ack.Status != enums.EventStatusInvalid || ack.Message != "Webhook is disabled" {
		t.Fatalf("unexpected ack %+v", ack)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no event for a disabled config")
	}
}

func TestWebhookCreatesPendingEvent(t *testing.T) {
	configID := uuid.New()
	repo := &gatewayRepo{configs: map[string]*models.WebhookConfig{
		"main": {ID: configID, Code: "main", Enabled: true},
	}}
	handler := newGatewayHandler(t, repo)

	webhookUUID := uuid.New()
	body := webhookBody(t, webhookUUID)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, signedRequest(t, "main", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", w.Code)
	}
	ack := decodeAck(t, w.Body)
	if ack.ID == nil {
		t.Fatalf("expected an event id in the ack")
	}
	if ack.Status != enums.EventStatusPending {
		t.Fatalf("unexpected status %s", ack.Status)
	}
	if ack.Message != "Webhook event created" {
		t.Fatalf("unexpected message %q", ack.Message)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 event, got %d", len(repo.created))
	}
	event := repo.created[0]
	if event.WebhookConfigID != configID {
		t.Fatalf("unexpected config id %s", event.WebhookConfigID)
	}
	if event.WebhookUUID != webhookUUID {
		t.Fatalf("unexpected webhook uuid %s", event.WebhookUUID)
	}
	if event.ObjectID != "42" {
		t.Fatalf("unexpected object id %q", event.ObjectID)
	}
	if event.ObjectType != enums.ObjectTypeProject {
		t.Fatalf("unexpected object type %s", event.ObjectType)
	}
	if !bytes.Equal(event.Payload, body) {
		t.Fatalf("expected the raw payload to be stored verbatim")
	}
	if event.RemoteIP == "" {
		t.Fatalf("expected the remote ip to be recorded")
	}
	var headers map[string]string
	if err := json.Unmarshal(event.Headers, &headers); err != nil {
		t.Fatalf("headers are not valid json: %v", err)
	}
	if headers[signatureHeader] == "" {
		t.Fatalf("expected request headers to be captured")
	}
}

func TestWebhookSkipsDuplicateDeliveries(t *testing.T) {
	repo := &gatewayRepo{configs: map[string]*models.WebhookConfig{
		"main": {ID: uuid.New(), Code: "main", Enabled: true},
	}}
	handler := newGatewayHandler(t, repo)

	body := webhookBody(t, uuid.New())

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, signedRequest(t, "main", body))
	if first.Code != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, signedRequest(t, "main", body))
	if second.Code != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", second.Code)
	}

	ack := decodeAck(t, second.Body)
	if ack.Message != "Webhook event already ingested" {
		t.Fatalf("unexpected message %q", ack.Message)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected a single event, got %d", len(repo.created))
	}
}

func TestWebhookRejectsObjectWithoutID(t *testing.T) {
	repo := &gatewayRepo{configs: map[string]*models.WebhookConfig{
		"main": {ID: uuid.New(), Code: "main", Enabled: true},
	}}
	handler := newGatewayHandler(t, repo)

	raw, err := json.Marshal(map[string]any{
		"topic":        "projects.Project.update",
		"object":       map[string]any{"name": "no id"},
		"object_type":  "projects.Project",
		"webhook_uuid": uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, signedRequest(t, "main", raw))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", w.Code)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no event to be created")
	}
}
