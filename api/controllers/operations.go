package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/recoco/recoco-relay/api/responses"
	"github.com/recoco/recoco-relay/internal/grist"
	pkgerrors "github.com/recoco/recoco-relay/pkg/errors"
	"github.com/recoco/recoco-relay/pkg/logger"
)

// GristOperations exposes the table maintenance operations of one sync
// config: setup, full populate, column reconciliation and reference
// mirroring. Each handler runs the operation synchronously.
type GristOperations struct {
	service *grist.Service
	logg    *logger.Logger
}

func NewGristOperations(service *grist.Service, logg *logger.Logger) *GristOperations {
	return &GristOperations{service: service, logg: logg}
}

func (g *GristOperations) SetupTable(w http.ResponseWriter, r *http.Request) {
	g.run(w, r, "setup-table", g.service.SetupTable)
}

func (g *GristOperations) Populate(w http.ResponseWriter, r *http.Request) {
	g.run(w, r, "populate", g.service.Populate)
}

func (g *GristOperations) ResetColumns(w http.ResponseWriter, r *http.Request) {
	g.run(w, r, "reset-columns", g.service.ResetColumns)
}

func (g *GristOperations) SyncReferences(w http.ResponseWriter, r *http.Request) {
	g.run(w, r, "sync-references", g.service.SyncReferences)
}

// SyncColumns reconciles the remote table schema and reports the diff it
// applied.
func (g *GristOperations) SyncColumns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	configID, err := configIDParam(r)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, err)
		return
	}
	if g.logg != nil {
		ctx = g.logg.WithConfigID(ctx, configID.String())
	}

	diff, err := g.service.SyncColumns(ctx, configID)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]any{
		"operation": "sync-columns",
		"diff":      diff,
	})
}

func (g *GristOperations) run(w http.ResponseWriter, r *http.Request, name string, op func(context.Context, uuid.UUID) error) {
	ctx := r.Context()
	configID, err := configIDParam(r)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, err)
		return
	}
	if g.logg != nil {
		ctx = g.logg.WithConfigID(ctx, configID.String())
	}

	if err := op(ctx, configID); err != nil {
		responses.WriteError(ctx, g.logg, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]string{"operation": name, "status": "done"})
}

func configIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	configID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "config id must be a uuid")
	}
	return configID, nil
}
