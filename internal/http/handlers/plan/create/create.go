// Package create реализует HTTP-обработчик для создания тарифов.
//
// Handler принимает JSON-запрос с данными тарифа, валидирует их, вызывает
// бизнес-логику создания тарифа и возвращает созданный тариф в JSON-формате.
//
// В случае ошибок формируются соответствующие HTTP-ответы с описанием проблемы.
package create

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
	services "github.com/telegate/subscription-gatekeeper/internal/services/subscription"
)

// Handler управляет HTTP-запросами на создание тарифов.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики создания тарифа.
type Service interface {
	CreatePlan(ctx context.Context, req models.DummyPlan) (*models.Plan, error)
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
	const op = "handlers.plan.create"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyPlan
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}
	log.Info("request body decoded", slog.Any("request", req))

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	plan, err := h.service.CreatePlan(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrInvalidDuration) || errors.Is(err, services.ErrInvalidPrice) {
			log.Error("invalid plan parameters", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error(err.Error()))
			return
		}
		log.Error("failed to create plan", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not create plan"))
		return
	}

	log.Info("plan created", slog.Int64("id", plan.ID))
	render.JSON(w, r, response.OKWithData(plan))
}
