package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"link-insights/internal/domain/monitor"
)

const (
	SummaryWindow  = 24 * time.Hour
	MaliciousLimit = 10
)

type Store interface {
	AppendMetric(ctx context.Context, m monitor.Metric) error
	MetricsSince(ctx context.Context, kind monitor.Kind, since time.Time) ([]monitor.Metric, error)
}

// Service records operational metrics and builds the admin summary.
type Service struct {
	log          *slog.Logger
	store        Store
	storeTimeout time.Duration
	now          func() time.Time
	newID        func() string
}

func New(log *slog.Logger, store Store, storeTimeout time.Duration) *Service {
	return &Service{
		log:          log,
		store:        store,
		storeTimeout: storeTimeout,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Record is best effort: failures are logged and never returned.
func (s *Service) Record(ctx context.Context, m monitor.Metric) {
	const op = "service.monitor.Service.Record"

	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = s.now()
	}
	m.Timestamp = m.Timestamp.UTC()

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.store.AppendMetric(ctx, m); err != nil {
		s.log.Error("failed to record metric",
			slog.String("op", op),
			slog.String("kind", string(m.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

// Summary reports the last 24 hours: every malicious URL event with the newest
// ten listed, the slowest fifth of requests (at least one) and the stats view count.
func (s *Service) Summary(ctx context.Context) (monitor.Summary, error) {
	const op = "service.monitor.Service.Summary"

	to := s.now().UTC()
	from := to.Add(-SummaryWindow)

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	malicious, err := s.store.MetricsSince(ctx, monitor.KindMaliciousURL, from)
	if err != nil {
		return monitor.Summary{}, fmt.Errorf("%s: malicious: %w", op, err)
	}

	perf, err := s.store.MetricsSince(ctx, monitor.KindPerformance, from)
	if err != nil {
		return monitor.Summary{}, fmt.Errorf("%s: performance: %w", op, err)
	}

	views, err := s.store.MetricsSince(ctx, monitor.KindStatsView, from)
	if err != nil {
		return monitor.Summary{}, fmt.Errorf("%s: stats views: %w", op, err)
	}

	sort.SliceStable(malicious, func(i, j int) bool {
		return malicious[i].Timestamp.After(malicious[j].Timestamp)
	})

	sort.SliceStable(perf, func(i, j int) bool {
		return perf[i].Duration > perf[j].Duration
	})

	slow := perf
	if len(perf) > 0 {
		slow = perf[:max(1, len(perf)/5)]
	}

	return monitor.Summary{
		From:           from,
		To:             to,
		MaliciousCount: len(malicious),
		MaliciousList:  nonNil(malicious[:min(MaliciousLimit, len(malicious))]),
		SlowRequests:   nonNil(slow),
		StatsViewCount: len(views),
	}, nil
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

func nonNil(m []monitor.Metric) []monitor.Metric {
	if m == nil {
		return []monitor.Metric{}
	}
	return m
}
