// Package gatekeeper предоставляет маршруты для основного приложения.
package gatekeeper

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telegate/subscription-gatekeeper/internal/config"
	accesscheck "github.com/telegate/subscription-gatekeeper/internal/http/handlers/access/check"
	"github.com/telegate/subscription-gatekeeper/internal/http/handlers/health"
	plancreate "github.com/telegate/subscription-gatekeeper/internal/http/handlers/plan/create"
	planlist "github.com/telegate/subscription-gatekeeper/internal/http/handlers/plan/list"
	"github.com/telegate/subscription-gatekeeper/internal/http/handlers/redeem"
	"github.com/telegate/subscription-gatekeeper/internal/http/handlers/subscription/expiring"
	"github.com/telegate/subscription-gatekeeper/internal/http/handlers/subscription/status"
	"github.com/telegate/subscription-gatekeeper/internal/http/handlers/sweep"
	tokenissue "github.com/telegate/subscription-gatekeeper/internal/http/handlers/token/issue"
	"github.com/telegate/subscription-gatekeeper/internal/http/middlewarectx"
	redeemservice "github.com/telegate/subscription-gatekeeper/internal/services/redeem"
	subservice "github.com/telegate/subscription-gatekeeper/internal/services/subscription"
	sweeperservice "github.com/telegate/subscription-gatekeeper/internal/services/sweeper"
	tokenservice "github.com/telegate/subscription-gatekeeper/internal/services/token"
	"github.com/telegate/subscription-gatekeeper/internal/storage/repository"
)

// Services собирает сервисы, нужные обработчикам маршрутов.
type Services struct {
	Tokens        *tokenservice.TokenService
	Subscriptions *subservice.SubscriptionService
	Redeem        *redeemservice.RedeemService
	Sweeper       *sweeperservice.SweeperService
	Storage       *repository.Storage
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, svc *Services) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/plans", planlist.New(logger, svc.Subscriptions).ServeHTTP)
			r.Post("/redeem", redeem.New(logger, svc.Redeem).ServeHTTP)
			r.Post("/access/check", accesscheck.New(logger, svc.Redeem).ServeHTTP)
			r.Get("/subscriptions/status/{telegram_id}", status.New(logger, svc.Subscriptions).ServeHTTP)
		})

		// Административная группа: доступ по ключу
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.AdminKeyMiddleware(logger, cfg.AdminAPIKey))
			r.Post("/admin/plans", plancreate.New(logger, svc.Subscriptions).ServeHTTP)
			r.Post("/admin/tokens", tokenissue.New(logger, svc.Tokens).ServeHTTP)
			r.Get("/admin/subscriptions/expiring", expiring.New(logger, svc.Subscriptions).ServeHTTP)
			r.Post("/admin/sweep", sweep.New(logger, svc.Sweeper).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, svc.Storage).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
}
