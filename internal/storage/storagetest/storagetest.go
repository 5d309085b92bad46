// Package storagetest holds the behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"link-insights/internal/domain/click"
	"link-insights/internal/domain/insight"
	"link-insights/internal/domain/link"
	"link-insights/internal/domain/monitor"
	"link-insights/internal/storage"
)

// Factory returns an empty store. Each call must be isolated from the others.
type Factory func(t *testing.T) storage.Store

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func Run(t *testing.T, newStore Factory) {
	t.Run("InsertAndLookup", func(t *testing.T) { testInsertAndLookup(t, newStore(t)) })
	t.Run("InsertIfAbsent", func(t *testing.T) { testInsertIfAbsent(t, newStore(t)) })
	t.Run("IncrementClicks", func(t *testing.T) { testIncrementClicks(t, newStore(t)) })
	t.Run("SaveInsight", func(t *testing.T) { testSaveInsight(t, newStore(t)) })
	t.Run("PublicLinks", func(t *testing.T) { testPublicLinks(t, newStore(t)) })
	t.Run("Clicks", func(t *testing.T) { testClicks(t, newStore(t)) })
	t.Run("Categories", func(t *testing.T) { testCategories(t, newStore(t)) })
	t.Run("InsightHistory", func(t *testing.T) { testInsightHistory(t, newStore(t)) })
	t.Run("Metrics", func(t *testing.T) { testMetrics(t, newStore(t)) })
}

func record(code, alias string, vis link.Visibility, createdAt time.Time) link.Record {
	return link.Record{
		Code:           code,
		DestinationURL: "https://example.com/" + code,
		Alias:          alias,
		Visibility:     vis,
		Title:          "title " + code,
		CreatedAt:      createdAt,
	}
}

func requireSameLink(t *testing.T, want, got link.Record) {
	t.Helper()

	require.Equal(t, want.Code, got.Code)
	require.Equal(t, want.DestinationURL, got.DestinationURL)
	require.Equal(t, want.Alias, got.Alias)
	require.Equal(t, want.Visibility, got.Visibility)
	require.Equal(t, want.Title, got.Title)
	require.Equal(t, want.ClickCount, got.ClickCount)
	require.WithinDuration(t, want.CreatedAt, got.CreatedAt, time.Millisecond)
	require.Equal(t, want.CachedInsight, got.CachedInsight)
	require.WithinDuration(t, want.InsightGeneratedAt, got.InsightGeneratedAt, time.Millisecond)
}

func testInsertAndLookup(t *testing.T, s storage.Store) {
	ctx := context.Background()
	rec := record("abc1234", "my-alias", link.VisibilityPrivate, base)

	require.NoError(t, s.InsertLink(ctx, rec))

	got, err := s.LinkByCode(ctx, "abc1234")
	require.NoError(t, err)
	requireSameLink(t, rec, got)

	got, err = s.LinkByAlias(ctx, "my-alias")
	require.NoError(t, err)
	requireSameLink(t, rec, got)

	_, err = s.LinkByCode(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.LinkByAlias(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	// Codes and aliases are separate lookups.
	_, err = s.LinkByAlias(ctx, "abc1234")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func testInsertIfAbsent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	first := record("code001", "taken", link.VisibilityPrivate, base)
	require.NoError(t, s.InsertLink(ctx, first))

	dupCode := record("code001", "", link.VisibilityPublic, base.Add(time.Minute))
	dupCode.DestinationURL = "https://other.example.com"
	require.ErrorIs(t, s.InsertLink(ctx, dupCode), storage.ErrCodeExists)

	dupAlias := record("code002", "taken", link.VisibilityPrivate, base)
	require.ErrorIs(t, s.InsertLink(ctx, dupAlias), storage.ErrAliasExists)

	_, err := s.LinkByCode(ctx, "code002")
	require.ErrorIs(t, err, storage.ErrNotFound, "failed alias claim must not leave the code behind")

	aliasIsCode := record("code003", "code001", link.VisibilityPrivate, base)
	require.ErrorIs(t, s.InsertLink(ctx, aliasIsCode), storage.ErrAliasExists)

	codeIsAlias := record("taken", "", link.VisibilityPrivate, base)
	require.ErrorIs(t, s.InsertLink(ctx, codeIsAlias), storage.ErrCodeExists)

	got, err := s.LinkByCode(ctx, "code001")
	require.NoError(t, err)
	requireSameLink(t, first, got)

	// Concurrent writers racing for one code: exactly one wins.
	const writers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := record("race001", "", link.VisibilityPrivate, base)
			rec.Title = fmt.Sprintf("writer %d", i)
			if err := s.InsertLink(ctx, rec); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, storage.ErrCodeExists)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func testIncrementClicks(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.InsertLink(ctx, record("clicks1", "", link.VisibilityPrivate, base)))

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementClicks(ctx, "clicks1", 1))
		}()
	}
	wg.Wait()

	got, err := s.LinkByCode(ctx, "clicks1")
	require.NoError(t, err)
	require.EqualValues(t, n, got.ClickCount)

	require.ErrorIs(t, s.IncrementClicks(ctx, "missing", 1), storage.ErrNotFound)
}

func testSaveInsight(t *testing.T, s storage.Store) {
	ctx := context.Background()
	rec := record("insight", "", link.VisibilityPrivate, base)
	require.NoError(t, s.InsertLink(ctx, rec))

	at := base.Add(time.Hour)
	require.NoError(t, s.SaveInsight(ctx, "insight", "mostly mobile visitors", at))

	got, err := s.LinkByCode(ctx, "insight")
	require.NoError(t, err)
	require.Equal(t, "mostly mobile visitors", got.CachedInsight)
	require.WithinDuration(t, at, got.InsightGeneratedAt, time.Millisecond)
	require.True(t, got.HasInsight())
}

func testPublicLinks(t *testing.T, s storage.Store) {
	ctx := context.Background()

	require.NoError(t, s.InsertLink(ctx, record("pub0001", "", link.VisibilityPublic, base)))
	require.NoError(t, s.InsertLink(ctx, record("priv001", "", link.VisibilityPrivate, base.Add(time.Minute))))
	require.NoError(t, s.InsertLink(ctx, record("pub0002", "", link.VisibilityPublic, base.Add(2*time.Minute))))
	require.NoError(t, s.InsertLink(ctx, record("pub0003", "alias-3", link.VisibilityPublic, base.Add(3*time.Minute))))

	got, err := s.PublicLinks(ctx, 10, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"pub0003", "pub0002", "pub0001"}, codes(got))
	require.Equal(t, "alias-3", got[0].Alias)

	got, err = s.PublicLinks(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, []string{"pub0002"}, codes(got))

	got, err = s.PublicLinks(ctx, 10, 5)
	require.NoError(t, err)
	require.Empty(t, got)
}

func codes(recs []link.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Code)
	}
	return out
}

func event(code string, ts time.Time, country string) click.Event {
	return click.Event{
		ID:        uuid.NewString(),
		Code:      code,
		Timestamp: ts,
		IPHash:    click.HashIP("198.51.100.1"),
		UserAgent: "Mozilla/5.0 (iPhone)",
		Referrer:  "https://www.google.com/search?q=x",
		Country:   country,
		Device:    click.DeviceMobile,
	}
}

func testClicks(t *testing.T, s storage.Store) {
	ctx := context.Background()

	old := event("evt0001", base.Add(-8*24*time.Hour), "US")
	e1 := event("evt0001", base.Add(2*time.Hour), "KR")
	e2 := event("evt0001", base.Add(time.Hour), "KR")
	other := event("evt0002", base.Add(time.Hour), "JP")

	for _, e := range []click.Event{old, e1, e2, other} {
		require.NoError(t, s.AppendClick(ctx, e))
	}

	got, err := s.ClicksSince(ctx, "evt0001", base.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, e2.ID, got[0].ID)
	require.Equal(t, e1.ID, got[1].ID)
	require.Equal(t, e1.Referrer, got[1].Referrer)
	require.Equal(t, e1.IPHash, got[1].IPHash)
	require.Equal(t, click.DeviceMobile, got[1].Device)
	require.WithinDuration(t, e1.Timestamp, got[1].Timestamp, time.Millisecond)

	got, err = s.ClicksSince(ctx, "none", base.Add(-time.Hour))
	require.NoError(t, err)
	require.Empty(t, got)
}

func testCategories(t *testing.T, s storage.Store) {
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementCategory(ctx, "cat0001", click.CategoryCountry, "KR", 1, base))
		}()
	}
	wg.Wait()

	require.NoError(t, s.IncrementCategory(ctx, "cat0001", click.CategoryCountry, "US", 1, base))
	require.NoError(t, s.IncrementCategory(ctx, "cat0001", click.CategoryDevice, "Mobile", 2, base.Add(time.Minute)))
	require.NoError(t, s.IncrementCategory(ctx, "cat0002", click.CategoryDevice, "PC", 1, base))

	got, err := s.Categories(ctx, "cat0001")
	require.NoError(t, err)

	counts := make(map[string]int64)
	for _, c := range got {
		require.Equal(t, "cat0001", c.Code)
		counts[string(c.Category)+"/"+c.Value] = c.Count
	}
	require.Equal(t, map[string]int64{
		"COUNTRY/KR":    n,
		"COUNTRY/US":    1,
		"DEVICE/Mobile": 2,
	}, counts)
}

func testInsightHistory(t *testing.T, s storage.Store) {
	ctx := context.Background()

	require.NoError(t, s.AppendInsightHistory(ctx, insight.HistoryEntry{
		Code:         "hist001",
		GeneratedAt:  base,
		Text:         "first",
		AnalysisType: insight.AnalysisDaily,
		Model:        "gemini-2.5-flash",
	}))
	require.NoError(t, s.AppendInsightHistory(ctx, insight.HistoryEntry{
		Code:         "hist001",
		GeneratedAt:  base.Add(25 * time.Hour),
		Text:         "second",
		AnalysisType: insight.AnalysisDaily,
		Model:        "gemini-2.5-flash",
	}))
}

func testMetrics(t *testing.T, s storage.Store) {
	ctx := context.Background()

	metrics := []monitor.Metric{
		{ID: uuid.NewString(), Kind: monitor.KindMaliciousURL, Timestamp: base.Add(-48 * time.Hour), URL: "https://old.example"},
		{ID: uuid.NewString(), Kind: monitor.KindMaliciousURL, Timestamp: base, URL: "https://bad.example", Detail: "MALWARE"},
		{ID: uuid.NewString(), Kind: monitor.KindPerformance, Timestamp: base, Operation: "redirect", Duration: 40 * time.Millisecond},
		{ID: uuid.NewString(), Kind: monitor.KindStatsView, Timestamp: base, Code: "abc1234"},
	}
	for _, m := range metrics {
		require.NoError(t, s.AppendMetric(ctx, m))
	}

	got, err := s.MetricsSince(ctx, monitor.KindMaliciousURL, base.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "https://bad.example", got[0].URL)
	require.Equal(t, "MALWARE", got[0].Detail)

	got, err = s.MetricsSince(ctx, monitor.KindPerformance, base.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "redirect", got[0].Operation)
	require.Equal(t, 40*time.Millisecond, got[0].Duration)
}
