package save

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	domain "link-insights/internal/domain/link"
	resp "link-insights/internal/lib/api/response"
	"link-insights/internal/lib/metrics"
	linksvc "link-insights/internal/service/link"
)

type Request struct {
	URL        string `json:"url" validate:"required"`
	Alias      string `json:"alias,omitempty" validate:"omitempty,max=20"`
	Visibility string `json:"visibility,omitempty" validate:"omitempty,oneof=PUBLIC PRIVATE public private"`
	Title      string `json:"title,omitempty" validate:"omitempty,max=256"`
}

type Response struct {
	resp.Response
	Code     string `json:"code,omitempty"`
	Alias    string `json:"alias,omitempty"`
	ShortURL string `json:"shortUrl,omitempty"`
}

//go:generate go run github.com/vektra/mockery/v3
type LinkAllocator interface {
	Allocate(ctx context.Context, req linksvc.AllocateRequest) (domain.Record, error)
}

func New(log *slog.Logger, allocator LinkAllocator, baseURL string) http.HandlerFunc {
	validate := validator.New()
	baseURL = strings.TrimRight(baseURL, "/")

	return func(w http.ResponseWriter, r *http.Request) {
		const op = "http-server.handlers.link.save.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			log.Error("failed to decode request body", slog.String("error", err.Error()))
			render(log, w, http.StatusBadRequest, resp.Error("invalid request body"))
			return
		}

		log.Info("request decoded", slog.Any("req", req))

		if err := validate.Struct(req); err != nil {
			if validateErrs, ok := resp.AsValidationErrors(err); ok {
				log.Warn("invalid request", slog.String("error", err.Error()))
				render(log, w, http.StatusBadRequest, resp.ValidationError(validateErrs))
				return
			}
			log.Error("failed to validate request", slog.String("error", err.Error()))
			render(log, w, http.StatusBadRequest, resp.Error("invalid request"))
			return
		}

		rec, err := allocator.Allocate(r.Context(), linksvc.AllocateRequest{
			DestinationURL: req.URL,
			Alias:          req.Alias,
			Visibility:     req.Visibility,
			Title:          req.Title,
		})
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrAliasExists):
				render(log, w, http.StatusConflict, resp.Error("alias already exists"))
			case errors.Is(err, domain.ErrUnsafeURL):
				log.Warn("blocked unsafe url", slog.String("url", req.URL))
				render(log, w, http.StatusBadRequest, resp.Error("malicious URL detected"))
			case errors.Is(err, domain.ErrValidation):
				render(log, w, http.StatusBadRequest, resp.Error(validationMessage(err)))
			case errors.Is(err, domain.ErrAllocationExhausted), errors.Is(err, domain.ErrDependencyUnavailable):
				log.Error("failed to allocate link", slog.String("error", err.Error()))
				render(log, w, http.StatusServiceUnavailable, resp.Error("service unavailable"))
			default:
				log.Error("failed to allocate link", slog.String("error", err.Error()))
				render(log, w, http.StatusInternalServerError, resp.Error("internal error"))
			}
			return
		}

		log.Info("link created", slog.String("code", rec.Code), slog.String("url", rec.DestinationURL))

		metrics.LinksCreatedTotal.Inc()

		render(log, w, http.StatusCreated, Response{
			Response: resp.OK(),
			Code:     rec.Code,
			Alias:    rec.Alias,
			ShortURL: baseURL + "/" + rec.Code,
		})
	}
}

// validationMessage drops the "validation failed: " prefix of domain errors.
func validationMessage(err error) string {
	for _, target := range []error{
		domain.ErrEmptyURL,
		domain.ErrInvalidURL,
		domain.ErrInvalidScheme,
		domain.ErrInvalidAlias,
		domain.ErrInvalidVisibility,
		domain.ErrInvalidTitle,
	} {
		if errors.Is(err, target) {
			return strings.TrimPrefix(target.Error(), domain.ErrValidation.Error()+": ")
		}
	}
	return "invalid request"
}

func render(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	if err := resp.RenderJSON(w, status, v); err != nil {
		log.Error("failed to render JSON response", slog.String("error", err.Error()))
	}
}
