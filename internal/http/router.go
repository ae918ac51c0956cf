package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/checkout-flow/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Checkout     *CheckoutHandler
	Cart         *CartHandler
	Orders       *OrdersHandler
	Health       HealthChecker
	Metrics      *metrics.ServerMetrics
	JWTSecret    []byte
	MaxBodyBytes int64
	Log          *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}
	if cfg.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if cfg.Health != nil {
			if err := cfg.Health.Ping(ctx); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware)
		r.Use(AuthMiddleware(cfg.JWTSecret, cfg.Log))

		r.Route("/checkout", func(r chi.Router) {
			r.Get("/confirmation", cfg.Checkout.EnterConfirmation)
			r.Post("/confirmation", cfg.Checkout.AcceptConfirmation)
			r.Get("/order", cfg.Checkout.EnterOrderComplete)
			r.Post("/place-order", cfg.Checkout.PlaceOrder)
			r.Post("/shipping", cfg.Checkout.SubmitShipping)
			r.Post("/billing", cfg.Checkout.SubmitBilling)
			r.Post("/address/get", cfg.Checkout.GetAddress)
			r.Post("/address/delete", cfg.Checkout.DeleteAddress)
			r.Get("/csrf/{form}", cfg.Checkout.IssueCSRF)
			r.Get("/{step}", cfg.Checkout.EnterAddressStep)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/view", cfg.Cart.GetCart)
			r.Post("/items", cfg.Cart.AddItem)
			r.Put("/items/{product_id}", cfg.Cart.UpdateQuantity)
			r.Delete("/items/{product_id}", cfg.Cart.RemoveItem)
			r.Post("/coupon", cfg.Cart.ApplyCoupon)
			r.Post("/clear", cfg.Checkout.ClearCart)
		})

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/orders", cfg.Orders.ListOrders)
			r.Get("/orders/{id}", cfg.Orders.GetOrder)
		})
	})

	return otelhttp.NewHandler(r, "checkout-http")
}
