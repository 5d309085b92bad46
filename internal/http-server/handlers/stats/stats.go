package stats

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	domain "link-insights/internal/domain/link"
	domainstats "link-insights/internal/domain/stats"
	resp "link-insights/internal/lib/api/response"
	statssvc "link-insights/internal/service/stats"
)

type Response struct {
	resp.Response
	domainstats.Report
	Alias              string     `json:"alias,omitempty"`
	Title              string     `json:"title,omitempty"`
	OriginalURL        string     `json:"originalUrl"`
	CreatedAt          time.Time  `json:"createdAt"`
	Insight            string     `json:"aiInsight"`
	InsightStatus      string     `json:"insightStatus"`
	InsightGeneratedAt *time.Time `json:"insightGeneratedAt,omitempty"`
}

//go:generate go run github.com/vektra/mockery/v3
type StatsGetter interface {
	Get(ctx context.Context, identifier string) (statssvc.Result, error)
}

func New(log *slog.Logger, getter StatsGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "http-server.handlers.stats.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		identifier := chi.URLParam(r, "identifier")
		if identifier == "" {
			log.Error("identifier parameter is missing")
			render(log, w, http.StatusBadRequest, resp.Error("identifier parameter is required"))
			return
		}

		res, err := getter.Get(r.Context(), identifier)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			log.Info("link not found", slog.String("identifier", identifier))
			render(log, w, http.StatusNotFound, resp.Error("link not found"))
			return
		case errors.Is(err, domain.ErrDependencyUnavailable):
			log.Error("failed to build stats", slog.String("error", err.Error()))
			render(log, w, http.StatusServiceUnavailable, resp.Error("service unavailable"))
			return
		case err != nil:
			log.Error("failed to build stats", slog.String("error", err.Error()))
			render(log, w, http.StatusInternalServerError, resp.Error("internal error"))
			return
		}

		out := Response{
			Response:      resp.OK(),
			Report:        res.Report,
			Alias:         res.Link.Alias,
			Title:         res.Link.Title,
			OriginalURL:   res.Link.DestinationURL,
			CreatedAt:     res.Link.CreatedAt,
			Insight:       res.Insight.Text,
			InsightStatus: string(res.Insight.Kind),
		}
		if !res.Insight.GeneratedAt.IsZero() {
			at := res.Insight.GeneratedAt
			out.InsightGeneratedAt = &at
		}

		render(log, w, http.StatusOK, out)
	}
}

func render(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	if err := resp.RenderJSON(w, status, v); err != nil {
		log.Error("failed to render JSON response", slog.String("error", err.Error()))
	}
}
