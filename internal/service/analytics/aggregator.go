package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"link-insights/internal/domain/click"
	"link-insights/internal/lib/metrics"
)

type ClickStore interface {
	IncrementClicks(ctx context.Context, code string, delta int64) error
	AppendClick(ctx context.Context, e click.Event) error
	IncrementCategory(ctx context.Context, code string, category click.Category, value string, delta int64, at time.Time) error
}

// Aggregator turns one raw click into the link counter, an event row and the
// country and device counters. Every step is independent and best effort.
type Aggregator struct {
	log         *slog.Logger
	store       ClickStore
	stepTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

func NewAggregator(log *slog.Logger, store ClickStore, stepTimeout time.Duration) *Aggregator {
	return &Aggregator{
		log:         log,
		store:       store,
		stepTimeout: stepTimeout,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// WithClock replaces the time source used for events without a timestamp.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// RecordClick never fails. Step errors and panics are logged and counted.
func (a *Aggregator) RecordClick(ctx context.Context, raw click.Raw) {
	const op = "service.analytics.Aggregator.RecordClick"

	log := a.log.With(
		slog.String("op", op),
		slog.String("code", raw.Code),
	)

	ts := raw.Timestamp
	if ts.IsZero() {
		ts = a.now()
	}
	ts = ts.UTC()

	a.step(ctx, log, "increment_clicks", func(ctx context.Context) error {
		return a.store.IncrementClicks(ctx, raw.Code, 1)
	})

	device := click.ClassifyDevice(raw.UserAgent)

	event := click.Event{
		ID:        a.newID(),
		Code:      raw.Code,
		Timestamp: ts,
		IPHash:    click.HashIP(raw.IP),
		UserAgent: click.NormalizeUserAgent(raw.UserAgent),
		Referrer:  click.NormalizeReferrer(raw.Referrer),
		Country:   click.NormalizeCountry(raw.Country),
		Device:    device,
	}

	a.step(ctx, log, "append_event", func(ctx context.Context) error {
		return a.store.AppendClick(ctx, event)
	})

	a.step(ctx, log, "country_counter", func(ctx context.Context) error {
		return a.store.IncrementCategory(ctx, raw.Code, click.CategoryCountry, event.Country, 1, ts)
	})

	a.step(ctx, log, "device_counter", func(ctx context.Context) error {
		return a.store.IncrementCategory(ctx, raw.Code, click.CategoryDevice, string(device), 1, ts)
	})

	metrics.ClicksRecordedTotal.Inc()
}

func (a *Aggregator) step(ctx context.Context, log *slog.Logger, name string, fn func(ctx context.Context) error) {
	if a.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.stepTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.ClickStepFailuresTotal.WithLabelValues(name).Inc()
			log.Error("click aggregation step panicked",
				slog.String("step", name),
				slog.Any("panic", r),
			)
		}
	}()

	if err := fn(ctx); err != nil {
		metrics.ClickStepFailuresTotal.WithLabelValues(name).Inc()
		log.Error("click aggregation step failed",
			slog.String("step", name),
			slog.String("error", err.Error()),
		)
	}
}
