package storage

import (
	"context"
	"errors"
	"time"

	"link-insights/internal/domain/click"
	"link-insights/internal/domain/insight"
	"link-insights/internal/domain/link"
	"link-insights/internal/domain/monitor"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrCodeExists  = errors.New("code already exists")
	ErrAliasExists = errors.New("alias already exists")
)

// Store is the persistence contract shared by every backend.
//
// InsertLink is insert-if-absent: it commits the code and the optional alias
// in one write and fails with ErrCodeExists or ErrAliasExists when either is
// already claimed in the code or alias namespace. Increments are additive.
type Store interface {
	InsertLink(ctx context.Context, rec link.Record) error
	LinkByCode(ctx context.Context, code string) (link.Record, error)
	LinkByAlias(ctx context.Context, alias string) (link.Record, error)
	IncrementClicks(ctx context.Context, code string, delta int64) error
	SaveInsight(ctx context.Context, code, text string, generatedAt time.Time) error
	// PublicLinks returns PUBLIC links ordered by creation time, newest first.
	PublicLinks(ctx context.Context, limit, offset int) ([]link.Record, error)

	AppendClick(ctx context.Context, e click.Event) error
	// ClicksSince returns the events of code with Timestamp >= since in ascending order.
	ClicksSince(ctx context.Context, code string, since time.Time) ([]click.Event, error)
	IncrementCategory(ctx context.Context, code string, category click.Category, value string, delta int64, at time.Time) error
	Categories(ctx context.Context, code string) ([]click.Counter, error)

	AppendInsightHistory(ctx context.Context, e insight.HistoryEntry) error

	AppendMetric(ctx context.Context, m monitor.Metric) error
	MetricsSince(ctx context.Context, kind monitor.Kind, since time.Time) ([]monitor.Metric, error)

	Close() error
}
