package public

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	domain "link-insights/internal/domain/link"
	resp "link-insights/internal/lib/api/response"
)

type Link struct {
	Code       string    `json:"code"`
	Alias      string    `json:"alias,omitempty"`
	Title      string    `json:"title,omitempty"`
	ShortURL   string    `json:"shortUrl"`
	ClickCount int64     `json:"clickCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Response struct {
	resp.Response
	Links []Link `json:"links"`
}

//go:generate go run github.com/vektra/mockery/v3
type PublicLister interface {
	ListPublic(ctx context.Context, limit, offset int) ([]domain.Record, error)
}

// New serves GET /public?limit=&offset=. Missing or malformed values fall back
// to zero and the service applies its defaults.
func New(log *slog.Logger, lister PublicLister, baseURL string) http.HandlerFunc {
	baseURL = strings.TrimRight(baseURL, "/")

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "http-server.handlers.link.public.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		limit, err := queryInt(r, "limit")
		if err != nil {
			render(log, w, http.StatusBadRequest, resp.Error("limit must be an integer"))
			return
		}

		offset, err := queryInt(r, "offset")
		if err != nil {
			render(log, w, http.StatusBadRequest, resp.Error("offset must be an integer"))
			return
		}

		recs, err := lister.ListPublic(r.Context(), limit, offset)
		if err != nil {
			log.Error("failed to list public links", slog.String("error", err.Error()))
			render(log, w, http.StatusServiceUnavailable, resp.Error("service unavailable"))
			return
		}

		links := make([]Link, 0, len(recs))
		for _, rec := range recs {
			links = append(links, Link{
				Code:       rec.Code,
				Alias:      rec.Alias,
				Title:      rec.Title,
				ShortURL:   baseURL + "/" + rec.Code,
				ClickCount: rec.ClickCount,
				CreatedAt:  rec.CreatedAt,
			})
		}

		render(log, w, http.StatusOK, Response{Response: resp.OK(), Links: links})
	}
}

func queryInt(r *http.Request, key string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func render(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	if err := resp.RenderJSON(w, status, v); err != nil {
		log.Error("failed to render JSON response", slog.String("error", err.Error()))
	}
}
