package ratelimit

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	resp "link-insights/internal/lib/api/response"
	"link-insights/internal/lib/metrics"
)

const (
	cleanupInterval = time.Minute
	idleTTL         = 3 * time.Minute
)

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu    sync.Mutex
	ips   map[string]*entry
	r     rate.Limit
	burst int
	now   func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:   make(map[string]*entry),
		r:     r,
		burst: burst,
		now:   time.Now,
	}
}

// Run evicts idle limiters until ctx is done.
func (rl *IPRateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Cleanup drops limiters not used for idleTTL.
func (rl *IPRateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, e := range rl.ips {
		if now.Sub(e.lastSeen) > idleTTL {
			delete(rl.ips, ip)
		}
	}
}

func (rl *IPRateLimiter) Limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.ips[ip]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rl.r, rl.burst)}
		rl.ips[ip] = e
	}
	e.lastSeen = rl.now()

	return e.limiter
}

// Len returns the number of tracked clients.
func (rl *IPRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.ips)
}

func New(log *slog.Logger, limiter *IPRateLimiter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		const op = "middleware.ratelimit.New"

		log := log.With(
			slog.String("component", "middleware/ratelimit"),
		)

		log.Info("rate limit middleware enabled")

		fn := func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)

			if !limiter.Limiter(ip).Allow() {
				metrics.RateLimitedTotal.Inc()
				log.Warn("rate limit exceeded",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)

				w.Header().Set("Retry-After", "1")
				err := resp.RenderJSON(w, http.StatusTooManyRequests, resp.Error("too many requests"))
				if err != nil {
					log.Error("failed to render JSON response", slog.String("error", err.Error()))
				}
				return
			}

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}

// ClientIP strips the port from RemoteAddr. Run middleware.RealIP first to honor proxy headers.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
