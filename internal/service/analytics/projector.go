package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"link-insights/internal/domain/click"
	"link-insights/internal/domain/link"
	"link-insights/internal/domain/stats"
)

const DefaultWindow = 7 * 24 * time.Hour

type ProjectionStore interface {
	ClicksSince(ctx context.Context, code string, since time.Time) ([]click.Event, error)
	Categories(ctx context.Context, code string) ([]click.Counter, error)
}

// Projector builds a stats.Report on read from the event window and the category counters.
type Projector struct {
	log          *slog.Logger
	store        ProjectionStore
	storeTimeout time.Duration
}

func NewProjector(log *slog.Logger, store ProjectionStore, storeTimeout time.Duration) *Projector {
	return &Projector{
		log:          log,
		store:        store,
		storeTimeout: storeTimeout,
	}
}

// Project reads events with timestamp >= now-window. A non-positive window selects DefaultWindow.
func (p *Projector) Project(ctx context.Context, rec link.Record, window time.Duration, now time.Time) (stats.Report, error) {
	const op = "service.analytics.Projector.Project"

	if window <= 0 {
		window = DefaultWindow
	}

	if p.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.storeTimeout)
		defer cancel()
	}

	events, err := p.store.ClicksSince(ctx, rec.Code, now.Add(-window))
	if err != nil {
		return stats.Report{}, fmt.Errorf("%s: load events: %w", op, err)
	}

	counters, err := p.store.Categories(ctx, rec.Code)
	if err != nil {
		return stats.Report{}, fmt.Errorf("%s: load counters: %w", op, err)
	}

	report := Aggregate(rec.Code, events, counters)
	report.Clicks = rec.ClickCount
	report.Period = period(window)

	p.log.Debug("stats projected",
		slog.String("op", op),
		slog.String("code", rec.Code),
		slog.Int("events", len(events)),
		slog.Int("counters", len(counters)),
	)

	return report, nil
}

// Aggregate buckets events by UTC hour, UTC day and referrer host and splits
// counters by category. Events without a timestamp are skipped. Peak hour ties
// go to the lowest hour and top referrer ties to the lexicographically smallest host.
func Aggregate(code string, events []click.Event, counters []click.Counter) stats.Report {
	report := stats.Report{
		Code:             code,
		ClicksByHour:     make(map[int]int),
		ClicksByDay:      make(map[string]int),
		ClicksByReferrer: make(map[string]int),
		CountryStats:     make(map[string]int64),
		DeviceStats:      make(map[string]int64),
	}

	for _, e := range events {
		if e.Timestamp.IsZero() {
			continue
		}

		ts := e.Timestamp.UTC()
		report.ClicksByHour[ts.Hour()]++
		report.ClicksByDay[ts.Format(time.DateOnly)]++
		report.ClicksByReferrer[stats.ReferrerHost(e.Referrer)]++
		report.WindowClicks++
	}

	for _, c := range counters {
		switch c.Category {
		case click.CategoryCountry:
			report.CountryStats[c.Value] += c.Count
		case click.CategoryDevice:
			report.DeviceStats[c.Value] += c.Count
		}
	}

	if len(report.ClicksByHour) > 0 {
		peak := -1
		for hour := 0; hour < 24; hour++ {
			n, ok := report.ClicksByHour[hour]
			if !ok {
				continue
			}
			if peak < 0 || n > report.ClicksByHour[peak] {
				peak = hour
			}
		}
		report.PeakHour = &peak
	}

	for host, n := range report.ClicksByReferrer {
		best := report.ClicksByReferrer[report.TopReferrer]
		if report.TopReferrer == "" || n > best || (n == best && host < report.TopReferrer) {
			report.TopReferrer = host
		}
	}

	return report
}

func period(window time.Duration) string {
	if window%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", window/(24*time.Hour))
	}
	return window.String()
}
