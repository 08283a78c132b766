// Package stats реализует HTTP-обработчик агрегатной статистики.
package stats

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/wolfstream/account-store/internal/http/response"
	"github.com/wolfstream/account-store/internal/models"
)

// Handler обрабатывает запросы агрегатного среза.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики статистики.
type Service interface {
	Snapshot(ctx context.Context) *models.Stats
	AdSessionCount(ctx context.Context) int
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.stats"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	stats := h.service.Snapshot(r.Context())
	adSessions := h.service.AdSessionCount(r.Context())

	log.Info("stats snapshot served")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"stats":       stats,
		"ad_sessions": adSessions,
	}))
}
