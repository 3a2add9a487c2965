package connectors

import (
	"context"

	"github.com/recoco/recoco-relay/pkg/db/models"
	"github.com/recoco/recoco-relay/pkg/enums"
)

// Context carries the per-event inputs a connector needs. It replaces any
// ad-hoc argument passing so a connector signature never changes when a new
// input is added.
type Context struct {
	Event *models.WebhookEvent
}

// Connector is the contract every downstream integration implements. OnEvent
// receives the resolved canonical project id; connectors that do not care
// about the object type return nil without side effects.
type Connector interface {
	Name() string
	OnEvent(ctx context.Context, projectID int64, objectType enums.ObjectType, cctx Context) error
}
