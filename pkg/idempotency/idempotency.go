package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/recoco/recoco-relay/pkg/redis"
)

// Guard tracks already-ingested webhook deliveries per endpoint using Redis
// SETNX with a TTL. Keys follow the
// `relay:idempotency:webhook:seen:<endpoint>:<webhook_uuid>` pattern.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewGuard builds a delivery guard that marks webhooks as seen for the given TTL.
func NewGuard(store redis.IdempotencyStore, ttl time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Guard{
		store: store,
		ttl:   ttl,
	}, nil
}

// CheckAndMarkSeen returns true if the delivery was already ingested and
// otherwise marks it as seen with the configured TTL.
func (g *Guard) CheckAndMarkSeen(ctx context.Context, endpoint string, webhookUUID uuid.UUID) (bool, error) {
	key, err := g.seenKey(endpoint, webhookUUID)
	if err != nil {
		return false, err
	}
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Forget clears the seen marker so a delivery can be replayed.
func (g *Guard) Forget(ctx context.Context, endpoint string, webhookUUID uuid.UUID) error {
	key, err := g.seenKey(endpoint, webhookUUID)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

func (g *Guard) seenKey(endpoint string, webhookUUID uuid.UUID) (string, error) {
	if endpoint == "" {
		return "", errors.New("endpoint code is required")
	}
	if webhookUUID == uuid.Nil {
		return "", errors.New("webhook uuid is required")
	}
	return g.store.IdempotencyKey("webhook:seen", fmt.Sprintf("%s:%s", endpoint, webhookUUID)), nil
}
