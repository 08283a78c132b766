// Package grantpremium реализует HTTP-обработчик выдачи премиума.
//
// Запрос с source="ads" при действующем премиуме из другого источника
// отклоняется с кодом 409, чтобы вызывающая сторона могла сообщить
// пользователю, что его подписка не тронута.
package grantpremium

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/wolfstream/account-store/internal/http/response"
	"github.com/wolfstream/account-store/internal/lib/sl"
)

// Handler обрабатывает запросы выдачи премиума.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики учетных записей.
type Service interface {
	GrantPremium(ctx context.Context, userID int64, expiry time.Time, source string) bool
}

// Request — тело запроса выдачи премиума.
type Request struct {
	Days   int    `json:"days" validate:"required,min=1"`
	Source string `json:"source" validate:"required"`
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.grantpremium"

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

	var req Request
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.JSON(w, r, response.Error("failed to decode request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		var validateErrs validator.ValidationErrors
		if errors.As(err, &validateErrs) {
			render.JSON(w, r, response.ValidationError(validateErrs))
			return
		}
		render.JSON(w, r, response.Error("invalid request"))
		return
	}

	expiry := time.Now().AddDate(0, 0, req.Days)
	if !h.service.GrantPremium(r.Context(), userID, expiry, req.Source) {
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("premium not granted: user keeps existing subscription"))
		return
	}

	log.Info("premium granted",
		slog.Int64("user_id", userID), slog.String("source", req.Source), slog.Time("expiry", expiry))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user_id": userID,
		"expiry":  expiry,
	}))
}
