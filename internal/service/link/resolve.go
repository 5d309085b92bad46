package link

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "link-insights/internal/domain/link"
	"link-insights/internal/storage"
)

// Resolve looks the identifier up as a code first and as an alias second.
func (s *Service) Resolve(ctx context.Context, identifier string) (domain.Record, error) {
	const op = "service.link.Service.Resolve"

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return domain.Record{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	rec, err := s.store.LinkByCode(ctx, identifier)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.Record{}, fmt.Errorf("%s: %w: %w", op, domain.ErrDependencyUnavailable, err)
	}

	rec, err = s.store.LinkByAlias(ctx, identifier)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Record{}, fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Record{}, fmt.Errorf("%s: %w: %w", op, domain.ErrDependencyUnavailable, err)
	}

	return rec, nil
}

// ResolveURL returns the destination of the identifier after re-validating it.
func (s *Service) ResolveURL(ctx context.Context, identifier string) (string, error) {
	const op = "service.link.Service.ResolveURL"

	rec, err := s.Resolve(ctx, identifier)
	if err != nil {
		return "", err
	}

	if err := domain.ValidateURL(rec.DestinationURL); err != nil {
		return "", fmt.Errorf("%s: stored url is invalid: %w", op, err)
	}

	return rec.DestinationURL, nil
}

// ListPublic returns public links newest first. A non-positive limit selects
// the default page size; larger limits are capped.
func (s *Service) ListPublic(ctx context.Context, limit, offset int) ([]domain.Record, error) {
	const op = "service.link.Service.ListPublic"

	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	if limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	recs, err := s.store.PublicLinks(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, domain.ErrDependencyUnavailable, err)
	}

	return recs, nil
}
