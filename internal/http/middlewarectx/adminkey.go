package middlewarectx

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/telegate/subscription-gatekeeper/internal/http/response"
)

// AdminKeyMiddleware пропускает только запросы с правильным административным
// ключом в заголовке X-Api-Key. Административные операции вроде создания
// тарифов и выпуска токенов недоступны без него.
func AdminKeyMiddleware(log *slog.Logger, adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Api-Key")
			if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(adminKey)) != 1 {
				log.Error("admin key missing or invalid",
					slog.String("remote_addr", r.RemoteAddr))
				w.WriteHeader(http.StatusUnauthorized)
				render.JSON(w, r, response.Error("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
