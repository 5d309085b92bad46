package analytics_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"link-insights/internal/domain/click"
	"link-insights/internal/domain/link"
	"link-insights/internal/service/analytics"
	"link-insights/internal/storage/memory"
)

type failingProjection struct {
	*memory.Storage
}

func (failingProjection) ClicksSince(context.Context, string, time.Time) ([]click.Event, error) {
	return nil, errBoom
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		events       []click.Event
		wantHours    map[int]int
		wantDays     map[string]int
		wantRefs     map[string]int
		wantPeak     *int
		wantTop      string
		wantInWindow int
	}{
		{
			name:      "empty window",
			wantHours: map[int]int{},
			wantDays:  map[string]int{},
			wantRefs:  map[string]int{},
		},
		{
			name: "referrer hosts",
			events: []click.Event{
				{Timestamp: day.Add(9 * time.Hour), Referrer: "https://www.google.com/search?q=x"},
				{Timestamp: day.Add(9 * time.Hour), Referrer: "https://WWW.Google.com/"},
				{Timestamp: day.Add(10 * time.Hour), Referrer: click.DirectReferrer},
				{Timestamp: day.Add(10 * time.Hour), Referrer: ""},
				{Timestamp: day.Add(11 * time.Hour), Referrer: "not a url"},
				{Timestamp: day.Add(11 * time.Hour), Referrer: "%zz"},
			},
			wantHours:    map[int]int{9: 2, 10: 2, 11: 2},
			wantDays:     map[string]int{"2025-03-14": 6},
			wantRefs:     map[string]int{"www.google.com": 2, "direct": 2, "unknown": 2},
			wantPeak:     intPtr(9),
			wantTop:      "direct",
			wantInWindow: 6,
		},
		{
			name: "hours and days use UTC",
			events: []click.Event{
				{Timestamp: time.Date(2025, 3, 14, 23, 30, 0, 0, time.FixedZone("KST", 9*3600))},
				{Timestamp: day.Add(25 * time.Hour)},
				{Timestamp: day.Add(14*time.Hour + 59*time.Minute)},
			},
			wantHours:    map[int]int{14: 2, 1: 1},
			wantDays:     map[string]int{"2025-03-14": 2, "2025-03-15": 1},
			wantRefs:     map[string]int{"direct": 3},
			wantPeak:     intPtr(14),
			wantTop:      "direct",
			wantInWindow: 3,
		},
		{
			name: "zero timestamps are skipped",
			events: []click.Event{
				{},
				{Timestamp: day.Add(3 * time.Hour), Referrer: "https://news.ycombinator.com/item"},
			},
			wantHours:    map[int]int{3: 1},
			wantDays:     map[string]int{"2025-03-14": 1},
			wantRefs:     map[string]int{"news.ycombinator.com": 1},
			wantPeak:     intPtr(3),
			wantTop:      "news.ycombinator.com",
			wantInWindow: 1,
		},
		{
			name: "ties pick lowest hour and smallest host",
			events: []click.Event{
				{Timestamp: day.Add(22 * time.Hour), Referrer: "https://b.example"},
				{Timestamp: day.Add(4 * time.Hour), Referrer: "https://a.example"},
			},
			wantHours:    map[int]int{4: 1, 22: 1},
			wantDays:     map[string]int{"2025-03-14": 2},
			wantRefs:     map[string]int{"a.example": 1, "b.example": 1},
			wantPeak:     intPtr(4),
			wantTop:      "a.example",
			wantInWindow: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			report := analytics.Aggregate("abc1234", tt.events, nil)

			require.Equal(t, "abc1234", report.Code)
			require.Equal(t, tt.wantHours, report.ClicksByHour)
			require.Equal(t, tt.wantDays, report.ClicksByDay)
			require.Equal(t, tt.wantRefs, report.ClicksByReferrer)
			require.Equal(t, tt.wantPeak, report.PeakHour)
			require.Equal(t, tt.wantTop, report.TopReferrer)
			require.Equal(t, tt.wantInWindow, report.WindowClicks)
		})
	}
}

func TestAggregate_SplitsCounters(t *testing.T) {
	t.Parallel()

	report := analytics.Aggregate("abc1234", nil, []click.Counter{
		{Category: click.CategoryCountry, Value: "KR", Count: 2},
		{Category: click.CategoryCountry, Value: "US", Count: 1},
		{Category: click.CategoryDevice, Value: "Mobile", Count: 3},
		{Category: "BROWSER", Value: "Firefox", Count: 9},
	})

	require.Equal(t, map[string]int64{"KR": 2, "US": 1}, report.CountryStats)
	require.Equal(t, map[string]int64{"Mobile": 3}, report.DeviceStats)
}

func TestProjector_EndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	seed(t, store, "abc1234")

	at := time.Date(2025, 3, 14, 10, 5, 0, 0, time.UTC)
	analytics.NewAggregator(discard, store, time.Second).RecordClick(ctx, click.Raw{
		Code:      "abc1234",
		Timestamp: at,
		Country:   "KR",
		UserAgent: "Mozilla/5.0 (Linux; Android 14) Mobile",
	})

	rec, err := store.LinkByCode(ctx, "abc1234")
	require.NoError(t, err)

	report, err := analytics.NewProjector(discard, store, time.Second).Project(ctx, rec, 0, at.Add(time.Hour))
	require.NoError(t, err)

	require.EqualValues(t, 1, report.Clicks)
	require.Equal(t, "7d", report.Period)
	require.Equal(t, map[int]int{10: 1}, report.ClicksByHour)
	require.Equal(t, map[string]int64{"KR": 1}, report.CountryStats)
	require.Equal(t, map[string]int64{"Mobile": 1}, report.DeviceStats)
	require.Equal(t, intPtr(10), report.PeakHour)
}

func TestProjector_WindowExcludesOldEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	seed(t, store, "abc1234")

	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendClick(ctx, click.Event{ID: "old", Code: "abc1234", Timestamp: now.Add(-49 * time.Hour)}))
	require.NoError(t, store.AppendClick(ctx, click.Event{ID: "new", Code: "abc1234", Timestamp: now.Add(-time.Hour)}))

	rec, err := store.LinkByCode(ctx, "abc1234")
	require.NoError(t, err)

	report, err := analytics.NewProjector(discard, store, time.Second).Project(ctx, rec, 48*time.Hour, now)
	require.NoError(t, err)
	require.Equal(t, 1, report.WindowClicks)
	require.Equal(t, "2d", report.Period)
}

func TestProjector_StoreErrorSurfaces(t *testing.T) {
	t.Parallel()

	_, err := analytics.NewProjector(discard, failingProjection{memory.New()}, time.Second).
		Project(context.Background(), link.Record{Code: "abc1234"}, 0, time.Now())
	require.ErrorIs(t, err, errBoom)
}

func intPtr(v int) *int { return &v }
