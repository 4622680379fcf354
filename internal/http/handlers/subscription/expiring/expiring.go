// Package expiring реализует HTTP-обработчик для получения списка подписок,
// истекающих в заданном окне. Окно передается query-параметром window
// в формате time.ParseDuration, по умолчанию 24 часа.
package expiring

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/telegate/subscription-gatekeeper/internal/http/response"
	"github.com/telegate/subscription-gatekeeper/internal/lib/sl"
	"github.com/telegate/subscription-gatekeeper/internal/models"
)

const defaultWindow = 24 * time.Hour

// Handler управляет HTTP-запросами на просмотр истекающих подписок.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики просмотра истекающих подписок.
type Service interface {
	ListExpiringWithin(ctx context.Context, window time.Duration) ([]*models.ExpiringInfo, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.expiring"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	window := defaultWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			log.Error("invalid window parameter", slog.String("window", raw))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid window parameter"))
			return
		}
		window = parsed
	}

	expiring, err := h.service.ListExpiringWithin(r.Context(), window)
	if err != nil {
		log.Error("failed to list expiring subscriptions", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list expiring subscriptions"))
		return
	}

	log.Info("expiring subscriptions listed",
		slog.Duration("window", window),
		slog.Int("count", len(expiring)))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"expiring": expiring,
		"count":    len(expiring),
	}))
}
