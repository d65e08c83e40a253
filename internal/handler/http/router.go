package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Noobiez16/SubliGraphic/internal/service"
	"github.com/Noobiez16/SubliGraphic/pkg/health"
	"github.com/Noobiez16/SubliGraphic/pkg/middleware"
)

const serviceName = "storefront"

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	CORS           middleware.CORSConfig
	RequestTimeout time.Duration
	// MaxDesignBytes is the largest decoded custom design accepted.
	MaxDesignBytes int
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	svc *service.StorefrontService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	if cfg.RequestTimeout > 0 {
		r.Use(chimw.Timeout(cfg.RequestTimeout))
	}
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	h := NewStorefrontHandler(svc, logger, cfg.MaxDesignBytes)
	r.NotFound(h.NotFound)

	// Inline designs are base64 text plus the JSON around them.
	maxBody := int64(cfg.MaxDesignBytes)*4/3 + 64<<10

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(chimw.RequestSize(maxBody))

		r.Get("/catalog", h.ListProducts)
		r.Get("/payment-methods", h.ListPaymentMethods)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Shopper)
			r.Use(middleware.RequestLogger(logger))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)

				r.Post("/items", h.AddItem)
				r.Post("/items/custom", h.AddCustomItem)
				r.Put("/items/{identity}", h.UpdateItemQuantity)
				r.Delete("/items/{identity}", h.RemoveItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", h.BeginCheckout)
				r.Get("/", h.GetCheckout)
				r.Delete("/", h.ExitCheckout)

				r.Post("/payment", h.Pay)
				r.Post("/payment/confirm", h.ConfirmPayment)
				r.Post("/retry", h.RetryCheckout)
			})
		})
	})

	return r
}
