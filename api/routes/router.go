package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/recoco/recoco-relay/api/controllers"
	"github.com/recoco/recoco-relay/api/middleware"
	"github.com/recoco/recoco-relay/internal/events"
	"github.com/recoco/recoco-relay/internal/grist"
	"github.com/recoco/recoco-relay/pkg/config"
	"github.com/recoco/recoco-relay/pkg/db"
	"github.com/recoco/recoco-relay/pkg/idempotency"
	"github.com/recoco/recoco-relay/pkg/logger"
	"github.com/recoco/recoco-relay/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	eventsRepo events.Repository,
	guard *idempotency.Guard,
	gristService *grist.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/webhook/{code}", controllers.Webhook(controllers.WebhookParams{
		Repo:   eventsRepo,
		Guard:  guard,
		Logger: logg,
		Secret: cfg.Webhook.Secret,
	}))

	if gristService != nil {
		ops := controllers.NewGristOperations(gristService, logg)
		r.Route("/api/configs/{id}/grist", func(r chi.Router) {
			r.Post("/setup-table", ops.SetupTable)
			r.Post("/populate", ops.Populate)
			r.Post("/sync-columns", ops.SyncColumns)
			r.Post("/reset-columns", ops.ResetColumns)
			r.Post("/sync-references", ops.SyncReferences)
		})
	}

	return r
}
