package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/packfinderz-receiving/api/controllers"
	"github.com/angelmondragon/packfinderz-receiving/api/middleware"
	"github.com/angelmondragon/packfinderz-receiving/internal/receipts"
	"github.com/angelmondragon/packfinderz-receiving/pkg/config"
	"github.com/angelmondragon/packfinderz-receiving/pkg/db"
	"github.com/angelmondragon/packfinderz-receiving/pkg/logger"
	"github.com/angelmondragon/packfinderz-receiving/pkg/redis"
)

// NewRouter wires the receiving API. redisClient may be nil, in which case idempotency is
// disabled and readiness skips redis.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	receiptsService receipts.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	deps := map[string]controllers.Pinger{"db": dbP}
	var idempotencyStore redis.IdempotencyStore
	if redisClient != nil {
		deps["redis"] = redisClient
		idempotencyStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	idempotent := middleware.Idempotency(idempotencyStore, logg, middleware.IdempotencyOptions{
		TTL:        cfg.Receiving.IdempotencyTTL,
		RequireKey: cfg.FeatureFlags.RequireIdempotency,
	})

	r.Route("/api/v1/purchase-orders/{purchaseOrderId}/{workflow}/sessions", func(r chi.Router) {
		r.Get("/", controllers.ReceivingWorkspace(receiptsService, logg))
		r.With(idempotent).Post("/", controllers.ReceivingSave(receiptsService, logg))
		r.Post("/today/preview", controllers.ReceivingPreview(receiptsService, logg))
		r.With(idempotent).Delete("/{sessionId}", controllers.ReceivingDelete(receiptsService, logg))
	})

	return r
}
