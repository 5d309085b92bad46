package instrumented

import (
	"context"
	"time"

	"link-insights/internal/domain/click"
	"link-insights/internal/domain/insight"
	"link-insights/internal/domain/link"
	"link-insights/internal/domain/monitor"
	"link-insights/internal/lib/metrics"
	"link-insights/internal/storage"
)

// Storage records Prometheus counters and latencies around any storage.Store.
type Storage struct {
	next storage.Store
}

func New(next storage.Store) *Storage {
	return &Storage{next: next}
}

func (s *Storage) InsertLink(ctx context.Context, rec link.Record) error {
	const op = "InsertLink"
	start := time.Now()
	err := s.next.InsertLink(ctx, rec)
	s.recordMetrics(op, err, start)
	return err
}

func (s *Storage) LinkByCode(ctx context.Context, code string) (link.Record, error) {
	const op = "LinkByCode"
	start := time.Now()
	rec, err := s.next.LinkByCode(ctx, code)
	s.recordMetrics(op, err, start)
	return rec, err
}

func (s *Storage) LinkByAlias(ctx context.Context, alias string) (link.Record, error) {
	const op = "LinkByAlias"
	start := time.Now()
	rec, err := s.next.LinkByAlias(ctx, alias)
	s.recordMetrics(op, err, start)
	return rec, err
}

func (s *Storage) IncrementClicks(ctx context.Context, code string, delta int64) error {
	const op = "IncrementClicks"
	start := time.Now()
	err := s.next.IncrementClicks(ctx, code, delta)
	s.recordMetrics(op, err, start)
	return err
}

func (s *Storage) SaveInsight(ctx context.Context, code, text string, generatedAt time.Time) error {
	const op = "SaveInsight"
	start := time.Now()
	err := s.next.SaveInsight(ctx, code, text, generatedAt)
	s.recordMetrics(op, err, start)
	return err
}

func (s *Storage) PublicLinks(ctx context.Context, limit, offset int) ([]link.Record, error) {
	const op = "PublicLinks"
	start := time.Now()
	recs, err := s.next.PublicLinks(ctx, limit, offset)
	s.recordMetrics(op, err, start)
	return recs, err
}

func (s *Storage) AppendClick(ctx context.Context, e click.Event) error {
	const op = "AppendClick"
	start := time.Now()
	err := s.next.AppendClick(ctx, e)
	s.recordMetrics(op, err, start)
	return err
}

func (s *Storage) ClicksSince(ctx context.Context, code string, since time.Time) ([]click.Event, error) {
	const op = "ClicksSince"
	start := time.Now()
	events, err := s.next.ClicksSince(ctx, code, since)
	s.recordMetrics(op, err, start)
	return events, err
}

func (s *Storage) IncrementCategory(ctx context.Context, code string, category click.Category, value string, delta int64, at time.Time) error {
	const op = "IncrementCategory"
	start := time.Now()
	err := s.next.IncrementCategory(ctx, code, category, value, delta, at)
	s.recordMetrics(op, err, start)
	return err
}

func (s *Storage) Categories(ctx context.Context, code string) ([]click.Counter, error) {
	const op = "Categories"
	start := time.Now()
	counters, err := s.next.Categories(ctx, code)
	s.recordMetrics(op, err, start)
	return counters, err
}

func (s *Storage) AppendInsightHistory(ctx context.Context, e insight.HistoryEntry) error {
	const op = "AppendInsightHistory"
	start := time.Now()
	err := s.next.AppendInsightHistory(ctx, e)
	s.recordMetrics(op, err, start)
	return err
}

func (s *Storage) AppendMetric(ctx context.Context, m monitor.Metric) error {
	const op = "AppendMetric"
	start := time.Now()
	err := s.next.AppendMetric(ctx, m)
	s.recordMetrics(op, err, start)
	return err
}

func (s *Storage) MetricsSince(ctx context.Context, kind monitor.Kind, since time.Time) ([]monitor.Metric, error) {
	const op = "MetricsSince"
	start := time.Now()
	ms, err := s.next.MetricsSince(ctx, kind, since)
	s.recordMetrics(op, err, start)
	return ms, err
}

func (s *Storage) Close() error {
	return s.next.Close()
}

func (s *Storage) recordMetrics(operation string, err error, start time.Time) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	metrics.StorageOperationDuration.WithLabelValues(operation).Observe(duration)
}
