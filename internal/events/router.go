package events

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/multierr"

	"github.com/recoco/recoco-relay/internal/connectors"
	"github.com/recoco/recoco-relay/pkg/db/models"
	"github.com/recoco/recoco-relay/pkg/enums"
	"github.com/recoco/recoco-relay/pkg/logger"
)

// Router resolves an event to its canonical project and fans it out to
// every registered connector. Every routed event ends Processed: connector
// failures are logged per connector, never reflected in the event status.
type Router struct {
	registry *connectors.Registry
	repo     Repository
	logg     *logger.Logger
}

// NewRouter builds a router over the given connector registry.
func NewRouter(registry *connectors.Registry, repo Repository, logg *logger.Logger) (*Router, error) {
	if registry == nil {
		return nil, fmt.Errorf("connector registry required")
	}
	if repo == nil {
		return nil, fmt.Errorf("event repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Router{registry: registry, repo: repo, logg: logg}, nil
}

// Route dispatches one pending event. A nil return means the event reached
// a terminal status; the returned error reports infrastructure failures
// (the terminal write itself failing), not connector failures.
func (r *Router) Route(ctx context.Context, event *models.WebhookEvent) error {
	ctx = r.logg.WithEventID(ctx, event.ID.String())

	if !event.ObjectType.Valid() {
		// unsupported kind: a no-op route, not a failure
		r.logg.Warn(ctx, "unsupported object type "+string(event.ObjectType)+", dropping")
		return r.repo.MarkProcessed(ctx, event)
	}

	projectID, ok := r.resolveProjectID(ctx, event)
	if !ok {
		// no canonical entity: nothing to do, not an error
		r.logg.Info(ctx, "event resolves to no project, dropping")
		return r.repo.MarkProcessed(ctx, event)
	}
	ctx = r.logg.WithProjectID(ctx, projectID)

	// child objects sync their parent project downstream; recommendations
	// keep their own type so connectors can apply the resource-tag gate
	forwarded := event.ObjectType
	if forwarded == enums.ObjectTypeSurveyAnswer || forwarded == enums.ObjectTypeTaggedItem {
		forwarded = enums.ObjectTypeProject
	}

	var combined error
	for _, connector := range r.registry.All() {
		if err := connector.OnEvent(ctx, projectID, forwarded, connectors.Context{Event: event}); err != nil {
			r.logg.Error(
				r.logg.WithConnector(ctx, connector.Name()),
				"connector failed to process event",
				err,
			)
			combined = multierr.Append(combined, fmt.Errorf("%s: %w", connector.Name(), err))
		}
	}

	if combined != nil {
		r.logg.Error(ctx, "event processed with connector failures", combined)
	}
	return r.repo.MarkProcessed(ctx, event)
}

// resolveProjectID extracts the canonical project id. Project events carry
// it as their own object id; child object types reference their parent
// project inside the payload, and a missing reference resolves to nothing.
func (r *Router) resolveProjectID(ctx context.Context, event *models.WebhookEvent) (int64, bool) {
	if event.ObjectType.IsProject() {
		id, err := strconv.ParseInt(event.ObjectID, 10, 64)
		if err != nil {
			r.logg.Warn(ctx, "non-numeric project object id "+event.ObjectID)
			return 0, false
		}
		return id, true
	}

	data := event.ObjectData()
	switch value := data["project"].(type) {
	case float64:
		return int64(value), true
	case string:
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	case map[string]any:
		if id, ok := value["id"].(float64); ok {
			return int64(id), true
		}
		return 0, false
	default:
		return 0, false
	}
}
