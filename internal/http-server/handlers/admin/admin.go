package admin

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"link-insights/internal/domain/monitor"
	resp "link-insights/internal/lib/api/response"
)

type Response struct {
	resp.Response
	monitor.Summary
}

//go:generate go run github.com/vektra/mockery/v3
type SummaryProvider interface {
	Summary(ctx context.Context) (monitor.Summary, error)
}

// New serves the monitoring summary. Mount it behind the admin middleware.
func New(log *slog.Logger, provider SummaryProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "http-server.handlers.admin.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		summary, err := provider.Summary(r.Context())
		if err != nil {
			log.Error("failed to build monitoring summary", slog.String("error", err.Error()))
			if err := resp.RenderJSON(w, http.StatusServiceUnavailable, resp.Error("service unavailable")); err != nil {
				log.Error("failed to render JSON response", slog.String("error", err.Error()))
			}
			return
		}

		if err := resp.RenderJSON(w, http.StatusOK, Response{Response: resp.OK(), Summary: summary}); err != nil {
			log.Error("failed to render JSON response", slog.String("error", err.Error()))
		}
	}
}
