package redirect

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"link-insights/internal/domain/click"
	domain "link-insights/internal/domain/link"
	resp "link-insights/internal/lib/api/response"
	"link-insights/internal/lib/metrics"
)

// Country headers set by CDNs in front of the service, checked in order.
var countryHeaders = []string{"CloudFront-Viewer-Country", "CF-IPCountry"}

//go:generate go run github.com/vektra/mockery/v3
type LinkResolver interface {
	Resolve(ctx context.Context, identifier string) (domain.Record, error)
}

//go:generate go run github.com/vektra/mockery/v3
type ClickTracker interface {
	Track(raw click.Raw)
}

func New(log *slog.Logger, resolver LinkResolver, tracker ClickTracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "http-server.handlers.redirect.New"

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

		rec, err := resolver.Resolve(r.Context(), identifier)
		if errors.Is(err, domain.ErrNotFound) {
			log.Info("link not found", slog.String("identifier", identifier))
			render(log, w, http.StatusNotFound, resp.Error("link not found"))
			return
		}
		if errors.Is(err, domain.ErrDependencyUnavailable) {
			log.Error("failed to resolve link", slog.String("error", err.Error()))
			render(log, w, http.StatusServiceUnavailable, resp.Error("service unavailable"))
			return
		}
		if err != nil {
			log.Error("failed to resolve link", slog.String("error", err.Error()))
			render(log, w, http.StatusInternalServerError, resp.Error("internal error"))
			return
		}

		// Validate URL before redirect to prevent open redirect vulnerability
		if err = domain.ValidateURL(rec.DestinationURL); err != nil {
			log.Warn("blocked redirect to invalid url",
				slog.String("code", rec.Code),
				slog.String("url", rec.DestinationURL),
				slog.String("error", err.Error()),
			)
			render(log, w, http.StatusNotFound, resp.Error("unable to redirect"))
			return
		}

		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		http.Redirect(w, r, rec.DestinationURL, http.StatusMovedPermanently)

		tracker.Track(click.Raw{
			Code:      rec.Code,
			Timestamp: time.Now().UTC(),
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
			Referrer:  r.Referer(),
			Country:   country(r),
		})

		log.Info("redirected", slog.String("code", rec.Code), slog.String("url", rec.DestinationURL))

		metrics.RedirectsTotal.Inc()
	}
}

func country(r *http.Request) string {
	for _, h := range countryHeaders {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	return click.Unknown
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func render(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	if err := resp.RenderJSON(w, status, v); err != nil {
		log.Error("failed to render JSON response", slog.String("error", err.Error()))
	}
}
