// Package check реализует HTTP-обработчик проверки доступа к бесплатному
// каналу. Пользователю без членства в ответе возвращается новая
// ссылка-приглашение.
package check

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/telegate/subscription-gatekeeper/internal/http/response"
	"github.com/telegate/subscription-gatekeeper/internal/lib/sl"
	"github.com/telegate/subscription-gatekeeper/internal/models"
	services "github.com/telegate/subscription-gatekeeper/internal/services/redeem"
)

// Handler управляет HTTP-запросами на проверку доступа.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики проверки доступа.
type Service interface {
	CheckAccess(ctx context.Context, req models.DummyAccessCheck) (*services.AccessResult, error)
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
	const op = "handlers.access.check"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyAccessCheck
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

	result, err := h.service.CheckAccess(r.Context(), req)
	if err != nil {
		log.Error("failed to check access", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not check access"))
		return
	}

	log.Info("access checked",
		slog.Int64("telegram_id", req.TelegramID),
		slog.Bool("has_access", result.HasAccess))
	render.JSON(w, r, response.OKWithData(result))
}
