package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/shop-orders/internal/app/handlers"
	"github.com/linemk/shop-orders/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/shop-orders/internal/lib/logger/handlers/urllog"
	"github.com/linemk/shop-orders/internal/lib/metrics"
)

// Router собирает HTTP-маршруты приложения
func (a *App) Router() http.Handler {
	log := a.Logger

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(a.Metrics.Middleware)

	router.Get("/health", handlers.HealthHandler(log, a.DB))
	router.Method(http.MethodGet, "/metrics", metrics.Handler(a.Registry))

	router.Route("/api", func(r chi.Router) {
		r.Post("/checkout", handlers.CheckoutHandler(log, a.Checkout))
		r.Get("/orders/{id}", handlers.OrderHandler(log, a.Orders))
		r.Post("/orders/{id}/payments", handlers.StartPaymentHandler(log, a.Payments))

		r.Get("/subscriptions/{id}", handlers.SubscriptionHandler(log, a.Renewals))
		r.Post("/subscriptions/{id}/renew", handlers.RenewHandler(log, a.Renewals))

		// вебхук авторизуется общим секретом, а не JWT
		r.Post("/webhooks/payments", handlers.WebhookHandler(log, a.Payments, a.Config.Webhook.SecretHash))

		r.Group(func(r chi.Router) {
			r.Use(jwtmiddleware.NewJWTMiddleware(a.Config.JWT.Secret))
			r.Post("/admin/orders/{id}/payments/{paymentId}/confirm", handlers.ConfirmPaymentHandler(log, a.Payments))
			r.Post("/admin/orders/{id}/payments/{paymentId}/cancel", handlers.CancelPaymentHandler(log, a.Payments))
		})
	})

	return router
}
