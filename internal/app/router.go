package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/munderdifflin/paperledger/internal/finance"
	"github.com/munderdifflin/paperledger/internal/inventory"
	"github.com/munderdifflin/paperledger/internal/orders"
	"github.com/munderdifflin/paperledger/internal/pricing"
	"github.com/munderdifflin/paperledger/internal/workflow"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	InventoryHandler *inventory.Handler
	PricingHandler   *pricing.Handler
	OrdersHandler    *orders.Handler
	FinanceHandler   *finance.Handler
	WorkflowHandler  *workflow.Handler
}

// NewRouter constructs the chi.Router with Paperledger defaults.
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

	r.Route("/api", func(r chi.Router) {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/quotes", params.PricingHandler.MountRoutes)
		r.Route("/orders", params.OrdersHandler.MountRoutes)
		r.Route("/finance", params.FinanceHandler.MountRoutes)
		r.Route("/workflow", params.WorkflowHandler.MountRoutes)
	})

	return r
}
