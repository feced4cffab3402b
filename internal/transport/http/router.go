package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Orders      OrderTransitioner
	Reservation Reserver
	Stock       StockConfirmer
	Catalog     Cataloger
	DefaultTTL  time.Duration
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter assembles the full HTTP surface.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", HealthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/reservations", HandleCreateReservation(cfg.Reservation, cfg.DefaultTTL))
	r.Post("/reservations/{id}/release", HandleReleaseReservation(cfg.Reservation))
	r.Post("/reservations/cleanup", HandleCleanupExpired(cfg.Reservation))

	r.Post("/orders", HandleCreateOrder(cfg.Orders))
	r.Get("/orders/{id}", HandleGetOrder(cfg.Orders))
	r.Post("/orders/{id}/confirm", HandleConfirmOrder(cfg.Orders, cfg.Stock))
	r.Post("/orders/{id}/transition", HandleTransitionOrder(cfg.Orders))

	r.Post("/admin/variants", HandleCreateVariant(cfg.Catalog))
	r.Get("/admin/variants", HandleListVariants(cfg.Catalog))
	r.Post("/admin/variants/{id}/restock", HandleRestockVariant(cfg.Catalog))

	return RequestLogger(CORS(cfg.CORSOrigins, r), cfg.Logger)
}
