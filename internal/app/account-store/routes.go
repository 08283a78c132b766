// Package accountstore предоставляет маршруты служебного HTTP-сервера.
package accountstore

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/wolfstream/account-store/internal/http/handlers/addownloads"
	"github.com/wolfstream/account-store/internal/http/handlers/adminmember"
	"github.com/wolfstream/account-store/internal/http/handlers/ban"
	"github.com/wolfstream/account-store/internal/http/handlers/grantpremium"
	"github.com/wolfstream/account-store/internal/http/handlers/health"
	"github.com/wolfstream/account-store/internal/http/handlers/premiumusers"
	"github.com/wolfstream/account-store/internal/http/handlers/stats"
	"github.com/wolfstream/account-store/internal/http/middlewarectx"
	accountservice "github.com/wolfstream/account-store/internal/services/account"
	adminservice "github.com/wolfstream/account-store/internal/services/admin"
	quotaservice "github.com/wolfstream/account-store/internal/services/quota"
	statsservice "github.com/wolfstream/account-store/internal/services/stats"
)

// RegisterRoutes регистрирует все маршруты служебного API.
func RegisterRoutes(r chi.Router, logger *slog.Logger,
	accountService *accountservice.AccountService,
	adminService *adminservice.AdminService,
	quotaService *quotaservice.QuotaService,
	statsService *statsservice.StatsService) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", health.New(logger).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/stats", stats.New(logger, statsService).ServeHTTP)
			r.Get("/premium-users", premiumusers.New(logger, accountService).ServeHTTP)
			r.Post("/users/{id}/ban", ban.NewBan(logger, accountService).ServeHTTP)
			r.Delete("/users/{id}/ban", ban.NewUnban(logger, accountService).ServeHTTP)
			r.Post("/users/{id}/premium", grantpremium.New(logger, accountService).ServeHTTP)
			r.Post("/users/{id}/ad-downloads", addownloads.New(logger, quotaService).ServeHTTP)
			r.Post("/admins/{id}", adminmember.NewAdd(logger, adminService).ServeHTTP)
			r.Delete("/admins/{id}", adminmember.NewRemove(logger, adminService).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
