package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/lucasfarre/ordercore-backend/api/controllers"
	"github.com/lucasfarre/ordercore-backend/api/middleware"
	"github.com/lucasfarre/ordercore-backend/internal/checkout"
	"github.com/lucasfarre/ordercore-backend/internal/erpsync"
	"github.com/lucasfarre/ordercore-backend/internal/orders"
	"github.com/lucasfarre/ordercore-backend/internal/payments"
	"github.com/lucasfarre/ordercore-backend/pkg/config"
	"github.com/lucasfarre/ordercore-backend/pkg/logger"
)

// Deps is everything the HTTP surface needs wired in.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Checkout checkout.Service
	Orders   orders.Service
	Payments payments.Service
	ErpSync  erpsync.Service

	// ReadyChecks are pinged by /health/ready; nil values are skipped.
	ReadyChecks map[string]controllers.Pinger
}

func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(deps.Logger),
		middleware.RequestID(deps.Logger),
		middleware.Logging(deps.Logger),
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
			ExposedHeaders:   []string{"X-Request-Id"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(deps.Config))
		r.Get("/ready", controllers.HealthReady(deps.Config, deps.Logger, deps.ReadyChecks))
	})

	// Gateway callbacks authenticate via webhook signature, not JWT.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", controllers.SquareWebhook(deps.Payments, deps.Logger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(deps.Config.JWT, deps.Logger))

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/preview", controllers.CheckoutPreview(deps.Checkout, deps.Logger))
			r.Post("/orders", controllers.CheckoutCreateOrder(deps.Checkout, deps.Logger))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Orders, deps.Logger))
			r.Get("/{orderID}", controllers.GetOrder(deps.Orders, deps.Logger))
			r.Patch("/{orderID}/status", controllers.UpdateOrderStatus(deps.Orders, deps.Logger))
			r.Post("/{orderID}/erp-sync/retry", controllers.RetryOrderErpSync(deps.ErpSync, deps.Logger))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/initiate", controllers.InitiatePayment(deps.Payments, deps.Logger))
		})
	})

	return r
}
