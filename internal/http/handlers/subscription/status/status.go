// Package status реализует HTTP-обработчик просмотра активной подписки
// пользователя платформы по его telegram-идентификатору.
package status

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/telegate/subscription-gatekeeper/internal/http/response"
	"github.com/telegate/subscription-gatekeeper/internal/lib/sl"
	"github.com/telegate/subscription-gatekeeper/internal/models"
	"github.com/telegate/subscription-gatekeeper/internal/storage/repository"
)

// Handler управляет HTTP-запросами на просмотр статуса подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики просмотра статуса.
type Service interface {
	Status(ctx context.Context, telegramID int64) (*models.SubscriptionStatus, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.status"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	telegramID, err := strconv.ParseInt(chi.URLParam(r, "telegram_id"), 10, 64)
	if err != nil {
		log.Error("failed to decode telegram_id from url", sl.Err(err))
		render.JSON(w, r, response.Error("failed to decode telegram_id from url"))
		return
	}

	status, err := h.service.Status(r.Context(), telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Error("user not found", slog.Int64("telegram_id", telegramID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to get subscription status", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not get subscription status"))
		return
	}

	if status == nil {
		render.JSON(w, r, response.OKWithData(map[string]any{
			"active": false,
		}))
		return
	}

	log.Info("subscription status read", slog.Int64("telegram_id", telegramID))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"active":       true,
		"subscription": status,
	}))
}
