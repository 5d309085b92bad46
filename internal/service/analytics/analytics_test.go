package analytics_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"link-insights/internal/domain/click"
	"link-insights/internal/domain/link"
	"link-insights/internal/service/analytics"
	"link-insights/internal/storage/memory"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var errBoom = errors.New("boom")

func seed(t *testing.T, store *memory.Storage, code string) {
	t.Helper()

	require.NoError(t, store.InsertLink(context.Background(), link.Record{
		Code:           code,
		DestinationURL: "https://example.com",
		Visibility:     link.VisibilityPrivate,
		CreatedAt:      time.Now(),
	}))
}

// flaky fails selected steps and delegates the rest.
type flaky struct {
	*memory.Storage
	failIncrement bool
	failAppend    bool
	panicCategory bool
}

func (f *flaky) IncrementClicks(ctx context.Context, code string, delta int64) error {
	if f.failIncrement {
		return errBoom
	}
	return f.Storage.IncrementClicks(ctx, code, delta)
}

func (f *flaky) AppendClick(ctx context.Context, e click.Event) error {
	if f.failAppend {
		return errBoom
	}
	return f.Storage.AppendClick(ctx, e)
}

func (f *flaky) IncrementCategory(ctx context.Context, code string, category click.Category, value string, delta int64, at time.Time) error {
	if f.panicCategory {
		panic("counter backend exploded")
	}
	return f.Storage.IncrementCategory(ctx, code, category, value, delta, at)
}

func TestAggregator_RecordClick(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	seed(t, store, "abc1234")

	at := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	agg := analytics.NewAggregator(discard, store, time.Second)

	agg.RecordClick(ctx, click.Raw{
		Code:      "abc1234",
		Timestamp: at,
		IP:        "203.0.113.7",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0)",
		Country:   "kr",
	})

	rec, err := store.LinkByCode(ctx, "abc1234")
	require.NoError(t, err)
	require.EqualValues(t, 1, rec.ClickCount)

	events, err := store.ClicksSince(ctx, "abc1234", at.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	require.NotEmpty(t, e.ID)
	require.Equal(t, click.HashIP("203.0.113.7"), e.IPHash)
	require.NotContains(t, e.IPHash, "203.0.113.7")
	require.Equal(t, click.DirectReferrer, e.Referrer)
	require.Equal(t, "KR", e.Country)
	require.Equal(t, click.DeviceMobile, e.Device)
	require.True(t, at.Equal(e.Timestamp))

	report := analytics.Aggregate("abc1234", nil, mustCategories(t, store, "abc1234"))
	require.Equal(t, map[string]int64{"KR": 1}, report.CountryStats)
	require.Equal(t, map[string]int64{"Mobile": 1}, report.DeviceStats)
}

func TestAggregator_MissingFieldsUseSentinels(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	seed(t, store, "abc1234")

	now := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)
	agg := analytics.NewAggregator(discard, store, time.Second).WithClock(func() time.Time { return now })

	agg.RecordClick(ctx, click.Raw{Code: "abc1234"})

	events, err := store.ClicksSince(ctx, "abc1234", now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	require.True(t, now.Equal(e.Timestamp))
	require.Equal(t, click.Unknown, e.IPHash)
	require.Equal(t, click.Unknown, e.Country)
	require.Equal(t, click.Unknown, e.UserAgent)
	require.Equal(t, click.DirectReferrer, e.Referrer)
	require.Equal(t, click.DevicePC, e.Device)
}

func TestAggregator_CountriesAreAdditive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	seed(t, store, "abc1234")

	agg := analytics.NewAggregator(discard, store, time.Second)
	for _, country := range []string{"KR", "KR", "US"} {
		agg.RecordClick(ctx, click.Raw{Code: "abc1234", Country: country})
	}

	report := analytics.Aggregate("abc1234", nil, mustCategories(t, store, "abc1234"))
	require.Equal(t, map[string]int64{"KR": 2, "US": 1}, report.CountryStats)
	require.Equal(t, map[string]int64{"PC": 3}, report.DeviceStats)
}

func TestAggregator_ConcurrentClicks(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	seed(t, store, "abc1234")

	agg := analytics.NewAggregator(discard, store, time.Second)

	const clicks = 64

	var wg sync.WaitGroup
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			agg.RecordClick(ctx, click.Raw{Code: "abc1234", Country: "US", UserAgent: "Android"})
		}()
	}
	wg.Wait()

	rec, err := store.LinkByCode(ctx, "abc1234")
	require.NoError(t, err)
	require.EqualValues(t, clicks, rec.ClickCount)

	report := analytics.Aggregate("abc1234", nil, mustCategories(t, store, "abc1234"))
	require.Equal(t, map[string]int64{"US": clicks}, report.CountryStats)
	require.Equal(t, map[string]int64{"Mobile": clicks}, report.DeviceStats)
}

func TestAggregator_StepsAreIndependent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		store       func(*memory.Storage) *flaky
		wantClicks  int64
		wantEvents  int
		wantCounter bool
	}{
		{
			name:        "increment fails",
			store:       func(m *memory.Storage) *flaky { return &flaky{Storage: m, failIncrement: true} },
			wantClicks:  0,
			wantEvents:  1,
			wantCounter: true,
		},
		{
			name:        "append fails",
			store:       func(m *memory.Storage) *flaky { return &flaky{Storage: m, failAppend: true} },
			wantClicks:  1,
			wantEvents:  0,
			wantCounter: true,
		},
		{
			name:        "counter panics",
			store:       func(m *memory.Storage) *flaky { return &flaky{Storage: m, panicCategory: true} },
			wantClicks:  1,
			wantEvents:  1,
			wantCounter: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			mem := memory.New()
			seed(t, mem, "abc1234")

			agg := analytics.NewAggregator(discard, tt.store(mem), time.Second)
			require.NotPanics(t, func() {
				agg.RecordClick(ctx, click.Raw{Code: "abc1234", Country: "KR"})
			})

			rec, err := mem.LinkByCode(ctx, "abc1234")
			require.NoError(t, err)
			require.Equal(t, tt.wantClicks, rec.ClickCount)

			events, err := mem.ClicksSince(ctx, "abc1234", time.Time{})
			require.NoError(t, err)
			require.Len(t, events, tt.wantEvents)

			counters := mustCategories(t, mem, "abc1234")
			require.Equal(t, tt.wantCounter, len(counters) > 0)
		})
	}
}

func TestAsyncTracker_CloseWaitsForInFlight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	seed(t, store, "abc1234")

	tracker := analytics.NewAsyncTracker(discard, analytics.NewAggregator(discard, store, time.Second), time.Second)

	const clicks = 25
	for i := 0; i < clicks; i++ {
		tracker.Track(click.Raw{Code: "abc1234"})
	}
	tracker.Close()

	rec, err := store.LinkByCode(ctx, "abc1234")
	require.NoError(t, err)
	require.EqualValues(t, clicks, rec.ClickCount)

	// dropped after close
	tracker.Track(click.Raw{Code: "abc1234"})

	rec, err = store.LinkByCode(ctx, "abc1234")
	require.NoError(t, err)
	require.EqualValues(t, clicks, rec.ClickCount)
}

type blockingRecorder struct {
	release chan struct{}
	done    chan struct{}
}

func (b *blockingRecorder) RecordClick(ctx context.Context, _ click.Raw) {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	close(b.done)
}

func TestAsyncTracker_TrackDoesNotBlock(t *testing.T) {
	t.Parallel()

	rec := &blockingRecorder{release: make(chan struct{}), done: make(chan struct{})}
	tracker := analytics.NewAsyncTracker(discard, rec, time.Minute)

	returned := make(chan struct{})
	go func() {
		tracker.Track(click.Raw{Code: "abc1234"})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Track blocked on the recorder")
	}

	close(rec.release)
	tracker.Close()

	select {
	case <-rec.done:
	default:
		t.Fatal("Close returned before the recorder finished")
	}
}

func TestAsyncTracker_RecordTimeout(t *testing.T) {
	t.Parallel()

	rec := &blockingRecorder{release: make(chan struct{}), done: make(chan struct{})}
	tracker := analytics.NewAsyncTracker(discard, rec, 20*time.Millisecond)

	tracker.Track(click.Raw{Code: "abc1234"})
	tracker.Close()

	select {
	case <-rec.done:
	default:
		t.Fatal("recorder was not bounded by the timeout")
	}
}

func mustCategories(t *testing.T, store *memory.Storage, code string) []click.Counter {
	t.Helper()

	counters, err := store.Categories(context.Background(), code)
	require.NoError(t, err)
	return counters
}
