package metrics_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"link-insights/internal/domain/monitor"
	mwMetrics "link-insights/internal/http-server/middleware/metrics"
)

type recorder struct {
	mu      sync.Mutex
	metrics []monitor.Metric
}

func (r *recorder) Record(_ context.Context, m monitor.Metric) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = append(r.metrics, m)
}

// blockingRecorder holds every Record call until release is closed or the context ends.
type blockingRecorder struct {
	release chan struct{}
	done    chan error
}

func (r *blockingRecorder) Record(ctx context.Context, _ monitor.Metric) {
	select {
	case <-r.release:
		r.done <- nil
	case <-ctx.Done():
		r.done <- ctx.Err()
	}
}

func TestMetrics_RecordsTrackedRoutes(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	perf := mwMetrics.NewPerformance(rec, time.Second, "/{identifier}")

	router := chi.NewRouter()
	router.Use(mwMetrics.New(perf))
	router.Get("/{identifier}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMovedPermanently)
	})
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, path := range []string{"/abc1234", "/health"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}

	perf.Close()

	require.Len(t, rec.metrics, 1)

	m := rec.metrics[0]
	require.Equal(t, monitor.KindPerformance, m.Kind)
	require.Equal(t, "abc1234", m.Code)
	require.Equal(t, "GET /{identifier}", m.Operation)
	require.Equal(t, "301", m.Detail)
	require.False(t, m.Timestamp.IsZero())
}

func TestMetrics_SlowRecorderDoesNotDelayResponse(t *testing.T) {
	t.Parallel()

	rec := &blockingRecorder{release: make(chan struct{}), done: make(chan error, 1)}
	perf := mwMetrics.NewPerformance(rec, 5*time.Second, "/{identifier}")

	router := chi.NewRouter()
	router.Use(mwMetrics.New(perf))
	router.Get("/{identifier}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://example.com", http.StatusMovedPermanently)
	})

	srv := httptest.NewServer(router)
	defer srv.Close()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}

	start := time.Now()
	resp, err := client.Get(srv.URL + "/abc1234")
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	require.Less(t, time.Since(start), time.Second)

	close(rec.release)
	perf.Close()
	require.NoError(t, <-rec.done)
}

func TestMetrics_RecorderTimeout(t *testing.T) {
	t.Parallel()

	rec := &blockingRecorder{release: make(chan struct{}), done: make(chan error, 1)}
	perf := mwMetrics.NewPerformance(rec, 20*time.Millisecond, "/{identifier}")

	perf.Dispatch(monitor.Metric{Kind: monitor.KindPerformance})
	perf.Close()

	require.ErrorIs(t, <-rec.done, context.DeadlineExceeded)
}

func TestMetrics_DropsAfterClose(t *testing.T) {
	t.Parallel()

	rec := &recorder{}
	perf := mwMetrics.NewPerformance(rec, time.Second, "/{identifier}")
	perf.Close()

	perf.Dispatch(monitor.Metric{Kind: monitor.KindPerformance})
	perf.Close()

	require.Empty(t, rec.metrics)
}

func TestMetrics_NilRecorder(t *testing.T) {
	t.Parallel()

	router := chi.NewRouter()
	router.Use(mwMetrics.New(nil))
	router.Get("/{identifier}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rr := httptest.NewRecorder()
	require.NotPanics(t, func() {
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/abc1234", nil))
	})
	require.Equal(t, http.StatusOK, rr.Code)
}
