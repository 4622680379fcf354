// Package redeem реализует HTTP-обработчик погашения токена активации.
//
// Handler принимает токен и данные пользователя платформы, проводит полный
// сценарий погашения и возвращает активированную подписку со ссылкой
// на вступление в платный канал.
package redeem

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/telegate/subscription-gatekeeper/internal/http/response"
	"github.com/telegate/subscription-gatekeeper/internal/lib/sl"
	"github.com/telegate/subscription-gatekeeper/internal/models"
	services "github.com/telegate/subscription-gatekeeper/internal/services/redeem"
	"github.com/telegate/subscription-gatekeeper/internal/storage/repository"
)

// Handler управляет HTTP-запросами на погашение токенов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики погашения токена.
type Service interface {
	Redeem(ctx context.Context, req models.DummyRedeem) (*services.RedeemResult, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.redeem"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyRedeem
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	result, err := h.service.Redeem(r.Context(), req)
	if err != nil {
		// Ранее погашенный и никогда не существовавший токен неразличимы
		// в ответе.
		if errors.Is(err, repository.ErrNotFound) {
			log.Error("token not found or already used",
				slog.Int64("telegram_id", req.TelegramID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("token not found or already used"))
			return
		}
		log.Error("failed to redeem token", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not redeem token"))
		return
	}

	log.Info("token redeemed",
		slog.Int64("telegram_id", req.TelegramID),
		slog.Int64("subscription_id", result.Subscription.ID))
	render.JSON(w, r, response.OKWithData(result))
}
