package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	domain "link-insights/internal/domain/link"
	"link-insights/internal/domain/monitor"
	"link-insights/internal/domain/threat"
	"link-insights/internal/lib/metrics"
	"link-insights/internal/storage"
)

type AllocateRequest struct {
	DestinationURL string
	Alias          string
	Visibility     string
	Title          string
}

// Allocate validates the request, screens the destination and persists a new
// record under a freshly generated code. The alias, when given, is written in
// the same insert as the code.
func (s *Service) Allocate(ctx context.Context, req AllocateRequest) (domain.Record, error) {
	const op = "service.link.Service.Allocate"

	log := s.log.With(slog.String("op", op))

	destination, err := domain.NormalizeURL(req.DestinationURL)
	if err != nil {
		return domain.Record{}, fmt.Errorf("%s: %w", op, err)
	}

	visibility, err := domain.ParseVisibility(req.Visibility)
	if err != nil {
		return domain.Record{}, fmt.Errorf("%s: %w", op, err)
	}

	title := strings.TrimSpace(req.Title)
	if err := domain.ValidateTitle(title); err != nil {
		return domain.Record{}, fmt.Errorf("%s: %w", op, err)
	}

	alias := strings.TrimSpace(req.Alias)
	if alias != "" {
		if err := domain.ValidateAlias(alias); err != nil {
			return domain.Record{}, fmt.Errorf("%s: %w", op, err)
		}

		taken, err := s.IsTaken(ctx, alias)
		if err != nil {
			return domain.Record{}, fmt.Errorf("%s: %w", op, err)
		}
		if taken {
			return domain.Record{}, fmt.Errorf("%s: %w", op, domain.ErrAliasExists)
		}
	}

	if err := s.screen(ctx, destination); err != nil {
		return domain.Record{}, fmt.Errorf("%s: %w", op, err)
	}

	rec := domain.Record{
		DestinationURL: destination,
		Alias:          alias,
		Visibility:     visibility,
		Title:          title,
		CreatedAt:      s.now().UTC(),
	}

	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		code, err := s.generator.Generate()
		if err != nil {
			return domain.Record{}, fmt.Errorf("%s: failed to generate code: %w", op, err)
		}

		taken, err := s.IsTaken(ctx, code)
		if err != nil {
			return domain.Record{}, fmt.Errorf("%s: %w", op, err)
		}
		if taken {
			metrics.AllocationCollisionsTotal.Inc()
			log.Debug("generated code already taken", slog.String("code", code), slog.Int("attempt", attempt))
			continue
		}

		rec.Code = code

		err = s.insert(ctx, rec)
		switch {
		case err == nil:
			log.Info("link allocated", slog.String("code", code), slog.String("alias", alias), slog.Int("attempts", attempt))
			return rec, nil
		case errors.Is(err, storage.ErrCodeExists):
			metrics.AllocationCollisionsTotal.Inc()
			log.Debug("lost insert race for code", slog.String("code", code), slog.Int("attempt", attempt))
			continue
		case errors.Is(err, storage.ErrAliasExists):
			return domain.Record{}, fmt.Errorf("%s: %w", op, domain.ErrAliasExists)
		default:
			return domain.Record{}, fmt.Errorf("%s: %w: %w", op, domain.ErrDependencyUnavailable, err)
		}
	}

	log.Warn("allocation retry budget exhausted", slog.Int("attempts", s.opts.MaxAttempts))

	return domain.Record{}, fmt.Errorf("%s: %w", op, domain.ErrAllocationExhausted)
}

func (s *Service) insert(ctx context.Context, rec domain.Record) error {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	return s.store.InsertLink(ctx, rec)
}

// IsTaken reports whether value is already claimed as a code or an alias.
// Reserved route names are always taken.
func (s *Service) IsTaken(ctx context.Context, value string) (bool, error) {
	const op = "service.link.Service.IsTaken"

	if domain.IsReserved(value) {
		return true, nil
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	_, err := s.store.LinkByCode(ctx, value)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("%s: %w: %w", op, domain.ErrDependencyUnavailable, err)
	}

	_, err = s.store.LinkByAlias(ctx, value)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("%s: %w: %w", op, domain.ErrDependencyUnavailable, err)
	}

	return false, nil
}

// screen runs every classifier. Errors and UNKNOWN verdicts let the URL through.
func (s *Service) screen(ctx context.Context, rawURL string) error {
	const op = "service.link.Service.screen"

	log := s.log.With(slog.String("op", op))

	for _, c := range s.classifiers {
		verdict, err := s.classify(ctx, c, rawURL)
		if err != nil {
			metrics.ThreatVerdictsTotal.WithLabelValues(c.Name(), "error").Inc()
			log.Warn("threat classifier failed, continuing",
				slog.String("classifier", c.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		metrics.ThreatVerdictsTotal.WithLabelValues(c.Name(), string(verdict)).Inc()

		if verdict.Blocks() {
			log.Warn("malicious url rejected",
				slog.String("classifier", c.Name()),
				slog.String("verdict", string(verdict)),
				slog.String("url", rawURL),
			)

			if s.recorder != nil {
				s.recorder.Record(ctx, monitor.Metric{
					Kind:   monitor.KindMaliciousURL,
					URL:    rawURL,
					Detail: c.Name() + ":" + string(verdict),
				})
			}

			return fmt.Errorf("%w (%s)", domain.ErrUnsafeURL, verdict)
		}
	}

	return nil
}

func (s *Service) classify(ctx context.Context, c ThreatClassifier, rawURL string) (threat.Verdict, error) {
	if s.opts.ClassifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ClassifyTimeout)
		defer cancel()
	}

	return c.Classify(ctx, rawURL)
}
