// Package ban реализует HTTP-обработчики блокировки и разблокировки
// пользователя.
package ban

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/wolfstream/account-store/internal/http/response"
	"github.com/wolfstream/account-store/internal/lib/sl"
)

// Handler обрабатывает запросы блокировки.
type Handler struct {
	log     *slog.Logger
	service Service
	banned  bool
}

// Service описывает интерфейс бизнес-логики учетных записей.
type Service interface {
	Ban(ctx context.Context, userID int64) bool
	Unban(ctx context.Context, userID int64) bool
}

// NewBan создает обработчик блокировки.
func NewBan(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, banned: true}
}

// NewUnban создает обработчик разблокировки.
func NewUnban(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service, banned: false}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.ban"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Error("failed to decode user id from url", sl.Err(err))
		render.JSON(w, r, response.Error("failed to decode user id from url"))
		return
	}

	var ok bool
	if h.banned {
		ok = h.service.Ban(r.Context(), userID)
	} else {
		ok = h.service.Unban(r.Context(), userID)
	}
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not update ban flag"))
		return
	}

	log.Info("ban flag updated", slog.Int64("user_id", userID), slog.Bool("banned", h.banned))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user_id": userID,
		"banned":  h.banned,
	}))
}
