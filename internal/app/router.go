package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dealerdesk/dealerdesk/internal/billing"
	"github.com/dealerdesk/dealerdesk/internal/distribution"
	"github.com/dealerdesk/dealerdesk/internal/inventory"
	"github.com/dealerdesk/dealerdesk/internal/orders"
	"github.com/dealerdesk/dealerdesk/internal/promotions"
	"github.com/dealerdesk/dealerdesk/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger              *slog.Logger
	Config              *Config
	InventoryHandler    *inventory.Handler
	DistributionHandler *distribution.Handler
	OrdersHandler       *orders.Handler
	PromotionsHandler   *promotions.Handler
	BillingHandler      *billing.Handler
	JobsHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with DealerDesk defaults. Everything
// except the health probe sits behind bearer authentication.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(params.Config))

		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/distribution-requests", params.DistributionHandler.MountRoutes)
		r.Route("/orders", params.OrdersHandler.MountRoutes)
		r.Route("/promotions", params.PromotionsHandler.MountRoutes)
		r.Route("/billing", params.BillingHandler.MountRoutes)
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
