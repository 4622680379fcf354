// Package sweep реализует HTTP-обработчик ручного запуска цикла деактивации
// истекших подписок. Обработчик повторяет работу фонового свипера и так же
// идемпотентен: повторный вызов без новых истечений ничего не меняет.
package sweep

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/telegate/subscription-gatekeeper/internal/http/response"
	"github.com/telegate/subscription-gatekeeper/internal/lib/sl"
)

// Handler управляет HTTP-запросами на ручной запуск свипа.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс цикла деактивации.
type Service interface {
	SweepCycle(ctx context.Context) (int, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.sweep"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	swept, err := h.service.SweepCycle(r.Context())
	if err != nil {
		log.Error("manual sweep failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("sweep failed"))
		return
	}

	log.Info("manual sweep completed", slog.Int("swept", swept))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"swept": swept,
	}))
}
