package insight_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domain "link-insights/internal/domain/insight"
	"link-insights/internal/domain/link"
	"link-insights/internal/domain/stats"
	"link-insights/internal/service/insight"
	"link-insights/internal/service/insight/mocks"
	"link-insights/internal/storage/memory"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var now = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

type brokenStore struct {
	*memory.Storage
}

func (brokenStore) SaveInsight(context.Context, string, string, time.Time) error {
	return errors.New("write failed")
}

func seeded(t *testing.T, generatedAgo time.Duration) (*memory.Storage, link.Record) {
	t.Helper()

	store := memory.New()
	rec := link.Record{
		Code:           "abc1234",
		DestinationURL: "https://example.com",
		Visibility:     link.VisibilityPrivate,
		CreatedAt:      now.Add(-72 * time.Hour),
	}
	require.NoError(t, store.InsertLink(context.Background(), rec))

	if generatedAgo > 0 {
		require.NoError(t, store.SaveInsight(context.Background(), rec.Code, "old narrative", now.Add(-generatedAgo)))
	}

	rec, err := store.LinkByCode(context.Background(), rec.Code)
	require.NoError(t, err)
	return store, rec
}

func newCache(store insight.Store, gen insight.Generator) *insight.Cache {
	return insight.New(discard, store, gen, insight.Options{
		TTL:          24 * time.Hour,
		Timeout:      time.Second,
		StoreTimeout: time.Second,
		Model:        "gemini-test",
	}).WithClock(func() time.Time { return now })
}

func TestCache_FreshInsightSkipsGenerator(t *testing.T) {
	t.Parallel()

	store, rec := seeded(t, time.Hour)
	gen := mocks.NewMockGenerator(t)

	out := newCache(store, gen).Get(context.Background(), rec, stats.Report{Clicks: 3})

	require.Equal(t, insight.KindFresh, out.Kind)
	require.Equal(t, "old narrative", out.Text)
	require.True(t, now.Add(-time.Hour).Equal(out.GeneratedAt))
	gen.AssertNotCalled(t, "Summarize", mock.Anything, mock.Anything)
}

func TestCache_StaleInsightRefreshes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ago  time.Duration
	}{
		{name: "older than ttl", ago: 25 * time.Hour},
		{name: "exactly ttl", ago: 24 * time.Hour},
		{name: "never generated", ago: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, rec := seeded(t, tt.ago)
			report := stats.Report{Code: rec.Code, Clicks: 5}

			gen := mocks.NewMockGenerator(t)
			gen.On("Summarize", mock.Anything, report).
				Return("  traffic peaks at 10 UTC  ", nil).
				Once()

			out := newCache(store, gen).Get(context.Background(), rec, report)

			require.Equal(t, insight.KindRefreshed, out.Kind)
			require.Equal(t, "traffic peaks at 10 UTC", out.Text)
			require.True(t, now.Equal(out.GeneratedAt))

			stored, err := store.LinkByCode(context.Background(), rec.Code)
			require.NoError(t, err)
			require.Equal(t, "traffic peaks at 10 UTC", stored.CachedInsight)
			require.True(t, now.Equal(stored.InsightGeneratedAt))

			history := store.InsightHistory(rec.Code)
			require.Len(t, history, 1)
			require.Equal(t, domain.AnalysisDaily, history[0].AnalysisType)
			require.Equal(t, "gemini-test", history[0].Model)
			require.Equal(t, "traffic peaks at 10 UTC", history[0].Text)
		})
	}
}

func TestCache_FailedRefreshDoesNotPoisonCache(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		err      error
		report   stats.Report
		wantText string
	}{
		{
			name:     "generator error",
			err:      errors.New("provider timeout"),
			report:   stats.Report{Clicks: 4, WindowClicks: 4},
			wantText: insight.FallbackUnavailable,
		},
		{
			name:     "empty text",
			text:     "   ",
			report:   stats.Report{Clicks: 4, WindowClicks: 4},
			wantText: insight.FallbackUnavailable,
		},
		{
			name:     "no clicks",
			err:      errors.New("provider timeout"),
			report:   stats.Report{},
			wantText: insight.FallbackNoData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store, rec := seeded(t, 30*time.Hour)

			gen := mocks.NewMockGenerator(t)
			gen.On("Summarize", mock.Anything, tt.report).
				Return(tt.text, tt.err).
				Once()

			out := newCache(store, gen).Get(context.Background(), rec, tt.report)

			require.Equal(t, insight.KindFallbackUsed, out.Kind)
			require.Equal(t, tt.wantText, out.Text)
			require.True(t, out.GeneratedAt.IsZero())

			stored, err := store.LinkByCode(context.Background(), rec.Code)
			require.NoError(t, err)
			require.Equal(t, "old narrative", stored.CachedInsight)
			require.True(t, now.Add(-30*time.Hour).Equal(stored.InsightGeneratedAt))
			require.Empty(t, store.InsightHistory(rec.Code))
		})
	}
}

func TestCache_GeneratorIsBoundedByTimeout(t *testing.T) {
	t.Parallel()

	store, rec := seeded(t, 0)

	gen := mocks.NewMockGenerator(t)
	gen.On("Summarize", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, _ stats.Report) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}).
		Once()

	cache := insight.New(discard, store, gen, insight.Options{Timeout: 20 * time.Millisecond})

	out := cache.Get(context.Background(), rec, stats.Report{Clicks: 1})
	require.Equal(t, insight.KindFallbackUsed, out.Kind)
}

func TestCache_PersistFailureStillServesText(t *testing.T) {
	t.Parallel()

	store, rec := seeded(t, 0)

	gen := mocks.NewMockGenerator(t)
	gen.On("Summarize", mock.Anything, mock.Anything).Return("fresh text", nil).Once()

	out := newCache(brokenStore{store}, gen).Get(context.Background(), rec, stats.Report{Clicks: 1})

	require.Equal(t, insight.KindRefreshed, out.Kind)
	require.Equal(t, "fresh text", out.Text)
	require.Empty(t, store.InsightHistory(rec.Code))
}
