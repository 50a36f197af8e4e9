package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wholesale-hub/settlement/internal/credit"
	"github.com/wholesale-hub/settlement/internal/inventory"
	"github.com/wholesale-hub/settlement/internal/observability"
	"github.com/wholesale-hub/settlement/internal/segments"
	"github.com/wholesale-hub/settlement/internal/settlement"
	"github.com/wholesale-hub/settlement/internal/supplier"
	"github.com/wholesale-hub/settlement/internal/wallet"
	"github.com/wholesale-hub/settlement/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	InventoryHandler  *inventory.Handler
	SupplierHandler   *supplier.Handler
	WalletHandler     *wallet.Handler
	CreditHandler     *credit.Handler
	SegmentsHandler   *segments.Handler
	SettlementHandler *settlement.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults. Nil handlers
// are not mounted.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if params.Config != nil && !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.SupplierHandler != nil {
		r.Route("/suppliers", params.SupplierHandler.MountRoutes)
	}
	if params.WalletHandler != nil {
		r.Route("/wallet", params.WalletHandler.MountRoutes)
	}
	if params.CreditHandler != nil {
		r.Route("/credit", params.CreditHandler.MountRoutes)
	}
	if params.SegmentsHandler != nil {
		r.Route("/segments", params.SegmentsHandler.MountRoutes)
	}
	if params.SettlementHandler != nil {
		r.Route("/orders", params.SettlementHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
