package stats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"link-insights/internal/domain/link"
	"link-insights/internal/domain/monitor"
	domain "link-insights/internal/domain/stats"
	"link-insights/internal/service/insight"
)

type Resolver interface {
	Resolve(ctx context.Context, identifier string) (link.Record, error)
}

type Projector interface {
	Project(ctx context.Context, rec link.Record, window time.Duration, now time.Time) (domain.Report, error)
}

type InsightProvider interface {
	Get(ctx context.Context, rec link.Record, report domain.Report) insight.Outcome
}

type MetricRecorder interface {
	Record(ctx context.Context, m monitor.Metric)
}

// Result is the report for one link plus its narrative and how the narrative was obtained.
type Result struct {
	Link    link.Record
	Report  domain.Report
	Insight insight.Outcome
}

type Service struct {
	log       *slog.Logger
	resolver  Resolver
	projector Projector
	insights  InsightProvider
	recorder  MetricRecorder
	window    time.Duration
	now       func() time.Time
}

func New(log *slog.Logger, resolver Resolver, projector Projector, insights InsightProvider, recorder MetricRecorder, window time.Duration) *Service {
	return &Service{
		log:       log,
		resolver:  resolver,
		projector: projector,
		insights:  insights,
		recorder:  recorder,
		window:    window,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get resolves the identifier as a code or alias and builds its report.
func (s *Service) Get(ctx context.Context, identifier string) (Result, error) {
	const op = "service.stats.Service.Get"

	rec, err := s.resolver.Resolve(ctx, identifier)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	report, err := s.projector.Project(ctx, rec, s.window, s.now())
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w: %w", op, link.ErrDependencyUnavailable, err)
	}

	outcome := s.insights.Get(ctx, rec, report)

	s.log.Info("stats served",
		slog.String("op", op),
		slog.String("code", rec.Code),
		slog.String("insight", string(outcome.Kind)),
	)

	if s.recorder != nil {
		s.recorder.Record(ctx, monitor.Metric{
			Kind:      monitor.KindStatsView,
			Code:      rec.Code,
			Operation: "getStats",
		})
	}

	return Result{
		Link:    rec,
		Report:  report,
		Insight: outcome,
	}, nil
}
