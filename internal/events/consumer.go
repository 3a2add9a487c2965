package events

import (
	"context"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/recoco/recoco-relay/pkg/logger"
)

// eventIDAttribute carries the durable event id on queue messages.
const eventIDAttribute = "event_id"

// Consumer processes relayed webhook events from the events subscription.
type Consumer struct {
	repo         Repository
	router       *Router
	subscription *pubsub.Subscriber
	logg         *logger.Logger
}

// NewConsumer constructs a consumer that watches the provided subscription.
func NewConsumer(repo Repository, router *Router, subscription *pubsub.Subscriber, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, errors.New("event repository is required")
	}
	if router == nil {
		return nil, errors.New("event router is required")
	}
	if subscription == nil {
		return nil, errors.New("events subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		repo:         repo,
		router:       router,
		subscription: subscription,
		logg:         logg,
	}, nil
}

// Run processes messages until the context is canceled or the subscription
// errors.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	raw := msg.Attributes[eventIDAttribute]
	logCtx := c.logg.WithField(ctx, "message_id", msg.ID)

	eventID, err := uuid.Parse(raw)
	if err != nil {
		c.logg.Error(logCtx, "message carries no valid event id", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithEventID(logCtx, eventID.String())

	event, err := c.repo.FindByID(logCtx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.logg.Warn(logCtx, "event row not found")
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "loading event", err)
		return processResult{nack: true}
	}

	// redelivered message for an already-terminated event
	if event.Status.Terminal() {
		c.logg.Info(logCtx, "event already terminal, skipping")
		return processResult{ack: true}
	}

	if err := c.router.Route(logCtx, event); err != nil {
		c.logg.Error(logCtx, "routing event", err)
		return processResult{nack: true}
	}
	return processResult{ack: true}
}
