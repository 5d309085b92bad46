package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	resp "link-insights/internal/lib/api/response"
)

// New guards admin routes with a shared secret passed in the Authorization
// header, either bare or as a Bearer token. An empty token rejects every request.
func New(log *slog.Logger, token string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		const op = "middleware.admin.New"

		log := log.With(
			slog.String("component", "middleware/admin"),
		)

		if token == "" {
			log.Warn("admin token is not configured, admin routes are disabled")
		} else {
			log.Info("admin middleware enabled")
		}

		fn := func(w http.ResponseWriter, r *http.Request) {
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			header := strings.TrimSpace(r.Header.Get("Authorization"))
			header = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

			if token == "" || subtle.ConstantTimeCompare([]byte(header), []byte(token)) != 1 {
				log.Warn("admin access denied")
				err := resp.RenderJSON(w, http.StatusForbidden, resp.Error("unauthorized"))
				if err != nil {
					log.Error("failed to render JSON response", slog.String("error", err.Error()))
				}
				return
			}

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}
