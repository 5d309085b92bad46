package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"link-insights/internal/domain/click"
)

type ClickRecorder interface {
	RecordClick(ctx context.Context, raw click.Raw)
}

// AsyncTracker detaches click recording from the request that produced it.
type AsyncTracker struct {
	log      *slog.Logger
	recorder ClickRecorder
	timeout  time.Duration

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewAsyncTracker(log *slog.Logger, recorder ClickRecorder, timeout time.Duration) *AsyncTracker {
	return &AsyncTracker{
		log:      log,
		recorder: recorder,
		timeout:  timeout,
	}
}

// Track returns immediately. Clicks arriving after Close are dropped.
func (t *AsyncTracker) Track(raw click.Raw) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		t.log.Warn("tracker closed, dropping click", slog.String("code", raw.Code))
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()

		t.recorder.RecordClick(ctx, raw)
	}()
}

// Close stops accepting clicks and waits for in-flight ones.
func (t *AsyncTracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	t.wg.Wait()
}
