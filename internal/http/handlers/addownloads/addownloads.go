// Package addownloads реализует HTTP-обработчик начисления рекламных
// загрузок.
package addownloads

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/wolfstream/account-store/internal/http/response"
	"github.com/wolfstream/account-store/internal/lib/sl"
)

// Handler обрабатывает начисление рекламных загрузок.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс движка квот.
type Service interface {
	AddAdDownloads(ctx context.Context, userID int64, count int) bool
	GetAdDownloads(ctx context.Context, userID int64) int
}

// Request — тело запроса начисления.
type Request struct {
	Count int `json:"count" validate:"required,min=1"`
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
	const op = "handlers.addownloads"

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

	if !h.service.AddAdDownloads(r.Context(), userID, req.Count) {
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not add ad downloads"))
		return
	}

	remaining := h.service.GetAdDownloads(r.Context(), userID)
	log.Info("ad downloads added",
		slog.Int64("user_id", userID), slog.Int("count", req.Count), slog.Int("remaining", remaining))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user_id":      userID,
		"ad_downloads": remaining,
	}))
}
