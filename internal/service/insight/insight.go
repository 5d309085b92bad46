package insight

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"link-insights/internal/domain/insight"
	"link-insights/internal/domain/link"
	"link-insights/internal/domain/stats"
	"link-insights/internal/lib/metrics"
)

const (
	FallbackNoData      = "insufficient data"
	FallbackUnavailable = "analysis unavailable"

	DefaultTTL = 24 * time.Hour
)

type Kind string

const (
	KindFresh        Kind = "FRESH"
	KindRefreshed    Kind = "REFRESHED"
	KindFallbackUsed Kind = "FALLBACK"
)

// Outcome tells the caller which path produced Text. GeneratedAt is zero for fallbacks.
type Outcome struct {
	Kind        Kind
	Text        string
	GeneratedAt time.Time
}

//go:generate go run github.com/vektra/mockery/v3 --name=Generator
type Generator interface {
	Summarize(ctx context.Context, report stats.Report) (string, error)
}

type Store interface {
	SaveInsight(ctx context.Context, code, text string, generatedAt time.Time) error
	AppendInsightHistory(ctx context.Context, e insight.HistoryEntry) error
}

type Options struct {
	TTL          time.Duration
	Timeout      time.Duration
	StoreTimeout time.Duration
	Model        string
}

// Cache serves the cached narrative while it is younger than TTL and refreshes it otherwise.
// Concurrent refreshes are not coordinated; the last write wins.
type Cache struct {
	log       *slog.Logger
	store     Store
	generator Generator
	opts      Options
	now       func() time.Time
}

func New(log *slog.Logger, store Store, generator Generator, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	return &Cache{
		log:       log,
		store:     store,
		generator: generator,
		opts:      opts,
		now:       time.Now,
	}
}

// WithClock replaces the time source.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

// Get never fails. A failed refresh returns a fallback and leaves the stored insight untouched.
func (c *Cache) Get(ctx context.Context, rec link.Record, report stats.Report) Outcome {
	const op = "service.insight.Cache.Get"

	log := c.log.With(
		slog.String("op", op),
		slog.String("code", rec.Code),
	)

	now := c.now()

	if rec.HasInsight() && now.Sub(rec.InsightGeneratedAt) < c.opts.TTL {
		metrics.InsightOutcomesTotal.WithLabelValues(string(KindFresh)).Inc()
		return Outcome{Kind: KindFresh, Text: rec.CachedInsight, GeneratedAt: rec.InsightGeneratedAt}
	}

	text, err := c.summarize(ctx, report)
	if err != nil {
		log.Warn("insight generation failed, using fallback", slog.String("error", err.Error()))
		metrics.InsightOutcomesTotal.WithLabelValues(string(KindFallbackUsed)).Inc()
		return Outcome{Kind: KindFallbackUsed, Text: fallback(report)}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		log.Warn("insight generator returned empty text, using fallback")
		metrics.InsightOutcomesTotal.WithLabelValues(string(KindFallbackUsed)).Inc()
		return Outcome{Kind: KindFallbackUsed, Text: fallback(report)}
	}

	c.persist(ctx, log, rec.Code, text, now)

	metrics.InsightOutcomesTotal.WithLabelValues(string(KindRefreshed)).Inc()
	return Outcome{Kind: KindRefreshed, Text: text, GeneratedAt: now}
}

func (c *Cache) summarize(ctx context.Context, report stats.Report) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	return c.generator.Summarize(ctx, report)
}

// persist writes the cache fields and the history row. Failures are logged only;
// the freshly generated text is still served.
func (c *Cache) persist(ctx context.Context, log *slog.Logger, code, text string, at time.Time) {
	if c.opts.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.StoreTimeout)
		defer cancel()
	}

	if err := c.store.SaveInsight(ctx, code, text, at); err != nil {
		log.Error("failed to cache insight", slog.String("error", err.Error()))
		return
	}

	err := c.store.AppendInsightHistory(ctx, insight.HistoryEntry{
		Code:         code,
		GeneratedAt:  at,
		Text:         text,
		AnalysisType: insight.AnalysisDaily,
		Model:        c.opts.Model,
	})
	if err != nil {
		log.Error("failed to append insight history", slog.String("error", err.Error()))
	}
}

func fallback(report stats.Report) string {
	if report.Clicks == 0 && report.WindowClicks == 0 {
		return FallbackNoData
	}
	return FallbackUnavailable
}
