package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/session"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// NewRouter creates a chi router with all storefront routes registered. Mutating routes
// are charged to limiter so a double-submitting client is throttled per user.
func NewRouter(
	sessions *session.Manager,
	healthHandler *health.Handler,
	limiter *middleware.RateLimiter,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("storefront"))
	r.Use(middleware.Tracing("storefront"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	h := NewStorefrontHandler(sessions, logger)

	r.Route("/api/v1/storefront", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.RequireUser)

		r.Get("/cart", h.GetCart)
		r.Get("/checkout/quote", h.GetQuote)
		r.Get("/wishlist", h.GetWishlist)
		r.Get("/recommendations/{type}", h.GetRecommendations)

		r.Group(func(r chi.Router) {
			r.Use(limiter.Handler)

			r.Delete("/cart", h.ClearCart)
			r.Post("/cart/lines", h.AddLine)
			r.Put("/cart/lines/{lineId}", h.SetQuantity)
			r.Delete("/cart/lines/{lineId}", h.RemoveLine)

			r.Post("/cart/selection/{lineId}/toggle", h.ToggleSelection)
			r.Post("/cart/selection/all", h.SelectAll)
			r.Delete("/cart/selection", h.DeselectAll)

			r.Post("/checkout/voucher", h.ApplyVoucher)
			r.Delete("/checkout/voucher", h.RemoveVoucher)

			r.Post("/wishlist/{productId}/toggle", h.ToggleWishlist)
		})

		r.Post("/session/logout", h.Logout)
	})

	return r
}
