package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/recoco/recoco-relay/api/responses"
	"github.com/recoco/recoco-relay/api/validators"
	"github.com/recoco/recoco-relay/internal/events"
	"github.com/recoco/recoco-relay/pkg/db/models"
	"github.com/recoco/recoco-relay/pkg/enums"
	pkgerrors "github.com/recoco/recoco-relay/pkg/errors"
	"github.com/recoco/recoco-relay/pkg/idempotency"
	"github.com/recoco/recoco-relay/pkg/logger"
	"github.com/recoco/recoco-relay/pkg/security"
)

const (
	signatureHeader = "Webhook-Signature"
	timestampHeader = "Webhook-Request-Timestamp"

	maxWebhookBody = 1 << 20
)

// WebhookPayload mirrors the envelope the portal posts on every change.
type WebhookPayload struct {
	Topic       string         `json:"topic" validate:"required"`
	Object      map[string]any `json:"object" validate:"required"`
	ObjectType  string         `json:"object_type" validate:"required"`
	WebhookUUID uuid.UUID      `json:"webhook_uuid" validate:"required"`
}

type webhookAck struct {
	ID      *uuid.UUID               `json:"id"`
	Status  enums.WebhookEventStatus `json:"status"`
	Message string                   `json:"message"`
}

type WebhookParams struct {
	Repo   events.Repository
	Guard  *idempotency.Guard
	Logger *logger.Logger
	Secret string
}

// Webhook ingests one signed delivery on POST /webhook/{code}. Unknown or
// disabled codes are acknowledged with an INVALID status rather than an
// error so the portal does not retry them forever.
func Webhook(params WebhookParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logg := params.Logger
		code := chi.URLParam(r, "code")

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
			return
		}

		timestamp := r.Header.Get(timestampHeader)
		if !security.VerifySignature(params.Secret, timestamp, body, r.Header.Get(signatureHeader)) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
			return
		}

		var payload WebhookPayload
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithField(ctx, "webhook_code", code)
		}

		config, err := params.Repo.FindConfigByCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteSuccess(w, webhookAck{Status: enums.EventStatusInvalid, Message: "Invalid webhook code"})
				return
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !config.Enabled {
			responses.WriteSuccess(w, webhookAck{Status: enums.EventStatusInvalid, Message: "Webhook is disabled"})
			return
		}

		if params.Guard != nil {
			seen, err := params.Guard.CheckAndMarkSeen(ctx, code, payload.WebhookUUID)
			if err != nil && logg != nil {
				// Ingestion stays available when Redis is down; the worker
				// terminal-status guard still prevents double processing.
				logg.Error(ctx, "idempotency check failed, continuing", err)
			}
			if seen {
				if logg != nil {
					logg.Info(ctx, "duplicate webhook delivery, skipping")
				}
				responses.WriteSuccess(w, webhookAck{Status: enums.EventStatusPending, Message: "Webhook event already ingested"})
				return
			}
		}

		objectID, ok := objectIDString(payload.Object)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "object id is required"))
			return
		}

		event := &models.WebhookEvent{
			WebhookUUID:     payload.WebhookUUID,
			WebhookConfigID: config.ID,
			Topic:           payload.Topic,
			ObjectID:        objectID,
			ObjectType:      enums.ObjectType(payload.ObjectType),
			RemoteIP:        remoteIP(r),
			Headers:         headersJSON(r),
			Payload:         body,
			Status:          enums.EventStatusPending,
		}
		if err := params.Repo.Create(ctx, event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			ctx = logg.WithEventID(ctx, event.ID.String())
			logg.Info(ctx, "webhook event ingested")
		}

		responses.WriteSuccess(w, webhookAck{
			ID:      &event.ID,
			Status:  event.Status,
			Message: "Webhook event created",
		})
	}
}

func objectIDString(object map[string]any) (string, bool) {
	switch id := object["id"].(type) {
	case float64:
		return fmt.Sprintf("%.0f", id), true
	case string:
		if id != "" {
			return id, true
		}
	}
	return "", false
}

func remoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func headersJSON(r *http.Request) json.RawMessage {
	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}
	raw, err := json.Marshal(headers)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}
