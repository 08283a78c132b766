// Package premiumusers реализует HTTP-обработчик списка пользователей
// с действующей премиум-подпиской.
package premiumusers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/wolfstream/account-store/internal/http/response"
	"github.com/wolfstream/account-store/internal/models"
)

// Handler обрабатывает запросы списка премиум-пользователей.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики учетных записей.
type Service interface {
	ListPremiumUsers(ctx context.Context) []*models.PremiumUser
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.premiumusers"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	users := h.service.ListPremiumUsers(r.Context())

	log.Info("premium users listed", slog.Int("count", len(users)))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"users": users,
	}))
}
