// Package adminmember реализует HTTP-обработчики добавления и удаления
// администратора.
package adminmember

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

// Service описывает интерфейс реестра администраторов.
type Service interface {
	AddAdmin(ctx context.Context, userID, addedBy int64) bool
	RemoveAdmin(ctx context.Context, userID int64) bool
}

// AddRequest — тело запроса на добавление администратора.
type AddRequest struct {
	AddedBy int64 `json:"added_by" validate:"required"`
}

// AddHandler обрабатывает добавление администратора.
type AddHandler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// NewAdd создает новый AddHandler.
func NewAdd(log *slog.Logger, service Service) *AddHandler {
	return &AddHandler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *AddHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.adminmember.add"

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

	var req AddRequest
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

	if !h.service.AddAdmin(r.Context(), userID, req.AddedBy) {
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not add admin"))
		return
	}

	log.Info("admin added", slog.Int64("user_id", userID), slog.Int64("added_by", req.AddedBy))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user_id": userID,
	}))
}

// RemoveHandler обрабатывает удаление администратора.
type RemoveHandler struct {
	log     *slog.Logger
	service Service
}

// NewRemove создает новый RemoveHandler.
func NewRemove(log *slog.Logger, service Service) *RemoveHandler {
	return &RemoveHandler{
		log:     log,
		service: service,
	}
}

func (h *RemoveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.adminmember.remove"

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

	removed := h.service.RemoveAdmin(r.Context(), userID)
	if !removed {
		w.WriteHeader(http.StatusNotFound)
		render.JSON(w, r, response.Error("admin not found"))
		return
	}

	log.Info("admin removed", slog.Int64("user_id", userID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"user_id": userID,
	}))
}
