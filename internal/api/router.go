package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/biyshop/payments-backend/internal/api/handlers"
	"github.com/biyshop/payments-backend/internal/auth"
	"github.com/biyshop/payments-backend/internal/config"
	"github.com/biyshop/payments-backend/internal/metrics"
	"github.com/biyshop/payments-backend/internal/middleware"
	"github.com/biyshop/payments-backend/internal/services"
)

func NewRouter(cfg config.Config, tm *auth.TokenManager, ordSvc *services.OrderService, paySvc *services.PaymentService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	authH := handlers.NewAuthHandler(tm, cfg.AdminKeyHash)
	orderH := handlers.NewOrderHandler(ordSvc)
	paymentH := handlers.NewPaymentHandler(paySvc)
	authMW := middleware.NewAuthMiddleware(tm)

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	// The gateway posts here; the path is pre-registered as the CallBackURL.
	r.Post("/payment-callback", paymentH.Callback)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)

		r.Post("/payment-request", paymentH.Initiate)

		r.Post("/orders", orderH.Create)
		r.Get("/orders/{id}", orderH.Get)

		// admin
		r.Group(func(r chi.Router) {
			r.Use(authMW.Auth)
			r.Get("/orders", orderH.List)
		})
	})

	return r
}
