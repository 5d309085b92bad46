package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"link-insights/internal/domain/monitor"
	"link-insights/internal/lib/metrics"
)

// PerformanceRecorder receives one PERFORMANCE metric per tracked request.
type PerformanceRecorder interface {
	Record(ctx context.Context, m monitor.Metric)
}

// Performance records PERFORMANCE metrics for tracked route patterns off the
// request goroutine, so a slow recorder never holds back the response.
type Performance struct {
	recorder PerformanceRecorder
	timeout  time.Duration
	routes   map[string]struct{}

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewPerformance(recorder PerformanceRecorder, timeout time.Duration, tracked ...string) *Performance {
	routes := make(map[string]struct{}, len(tracked))
	for _, route := range tracked {
		routes[route] = struct{}{}
	}

	return &Performance{
		recorder: recorder,
		timeout:  timeout,
		routes:   routes,
	}
}

func (p *Performance) tracks(routePattern string) bool {
	_, ok := p.routes[routePattern]
	return ok
}

// Dispatch returns immediately. Metrics arriving after Close are dropped.
func (p *Performance) Dispatch(m monitor.Metric) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		p.recorder.Record(ctx, m)
	}()
}

// Close stops accepting metrics and waits for in-flight ones.
func (p *Performance) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
}

// New exports Prometheus request metrics for every route. When perf is set,
// requests on its tracked route patterns are also recorded as PERFORMANCE metrics.
func New(perf *Performance) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				elapsed := time.Since(start)

				routePattern := "unknown"
				var code string
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if p := rctx.RoutePattern(); p != "" {
						routePattern = p
					}
					code = rctx.URLParam("identifier")
				}

				statusCode := strconv.Itoa(ww.Status())

				metrics.HTTPRequestsTotal.WithLabelValues(
					r.Method,
					routePattern,
					statusCode,
				).Inc()

				metrics.HTTPRequestDuration.WithLabelValues(
					r.Method,
					routePattern,
				).Observe(elapsed.Seconds())

				if perf == nil || !perf.tracks(routePattern) {
					return
				}

				perf.Dispatch(monitor.Metric{
					Kind:      monitor.KindPerformance,
					Timestamp: start.UTC(),
					Code:      code,
					Operation: r.Method + " " + routePattern,
					Duration:  elapsed,
					Detail:    statusCode,
				})
			}()

			next.ServeHTTP(ww, r)
		}

		return http.HandlerFunc(fn)
	}
}
