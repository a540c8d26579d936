package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yDkay/payment-system/api/controllers"
	"github.com/yDkay/payment-system/api/middleware"
	"github.com/yDkay/payment-system/internal/idempotency"
	"github.com/yDkay/payment-system/internal/intents"
	"github.com/yDkay/payment-system/internal/refunds"
	"github.com/yDkay/payment-system/pkg/config"
	"github.com/yDkay/payment-system/pkg/logger"
)

// Deps bundles everything the router needs.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DBPinger      controllers.Pinger
	RedisPinger   controllers.Pinger
	Idempotency   *idempotency.Manager
	IntentService intents.Service
	RefundService refunds.Service
	Metrics       prometheus.Gatherer
}

// NewRouter assembles the HTTP surface.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID(deps.Logger),
		middleware.Logging(deps.Logger),
		middleware.CORS(deps.Config.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(deps.Config))
		r.Get("/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.DBPinger, deps.RedisPinger))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(deps.Idempotency, deps.Logger))

		r.Route("/payment_intents", func(r chi.Router) {
			r.Post("/", controllers.CreateIntent(deps.IntentService, deps.Logger))
			r.Route("/{intentId}", func(r chi.Router) {
				r.Get("/", controllers.GetIntent(deps.IntentService, deps.Logger))
				r.Post("/confirm", controllers.ConfirmIntent(deps.IntentService, deps.Logger))
				r.Get("/payment", controllers.GetPaymentResult(deps.IntentService, deps.Logger))
				r.Get("/jobs", controllers.ListIntentJobs(deps.IntentService, deps.Logger))
			})
		})

		r.Post("/refunds", controllers.CreateRefund(deps.RefundService, deps.Logger))
	})

	return r
}
