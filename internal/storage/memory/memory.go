package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"link-insights/internal/domain/click"
	"link-insights/internal/domain/insight"
	"link-insights/internal/domain/link"
	"link-insights/internal/domain/monitor"
	"link-insights/internal/storage"
)

type counterKey struct {
	code     string
	category click.Category
	value    string
}

// Storage keeps everything in process memory. It is used for local runs and tests.
type Storage struct {
	mu       sync.RWMutex
	links    map[string]link.Record
	aliases  map[string]string
	clicks   map[string][]click.Event
	counters map[counterKey]click.Counter
	history  []insight.HistoryEntry
	metrics  []monitor.Metric
}

func New() *Storage {
	return &Storage{
		links:    make(map[string]link.Record),
		aliases:  make(map[string]string),
		clicks:   make(map[string][]click.Event),
		counters: make(map[counterKey]click.Counter),
	}
}

func (s *Storage) InsertLink(_ context.Context, rec link.Record) error {
	const op = "storage.memory.InsertLink"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimed(rec.Code) {
		return fmt.Errorf("%s: %w", op, storage.ErrCodeExists)
	}
	if rec.Alias != "" {
		if s.claimed(rec.Alias) {
			return fmt.Errorf("%s: %w", op, storage.ErrAliasExists)
		}
		s.aliases[rec.Alias] = rec.Code
	}

	s.links[rec.Code] = rec

	return nil
}

func (s *Storage) claimed(value string) bool {
	_, isCode := s.links[value]
	_, isAlias := s.aliases[value]
	return isCode || isAlias
}

func (s *Storage) LinkByCode(_ context.Context, code string) (link.Record, error) {
	const op = "storage.memory.LinkByCode"

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.links[code]
	if !ok {
		return link.Record{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return rec, nil
}

func (s *Storage) LinkByAlias(_ context.Context, alias string) (link.Record, error) {
	const op = "storage.memory.LinkByAlias"

	s.mu.RLock()
	defer s.mu.RUnlock()

	code, ok := s.aliases[alias]
	if !ok {
		return link.Record{}, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return s.links[code], nil
}

func (s *Storage) IncrementClicks(_ context.Context, code string, delta int64) error {
	const op = "storage.memory.IncrementClicks"

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.links[code]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	rec.ClickCount += delta
	s.links[code] = rec

	return nil
}

func (s *Storage) SaveInsight(_ context.Context, code, text string, generatedAt time.Time) error {
	const op = "storage.memory.SaveInsight"

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.links[code]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	rec.CachedInsight = text
	rec.InsightGeneratedAt = generatedAt
	s.links[code] = rec

	return nil
}

func (s *Storage) PublicLinks(_ context.Context, limit, offset int) ([]link.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var public []link.Record
	for _, rec := range s.links {
		if rec.Visibility == link.VisibilityPublic {
			public = append(public, rec)
		}
	}

	sort.Slice(public, func(i, j int) bool {
		if public[i].CreatedAt.Equal(public[j].CreatedAt) {
			return public[i].Code > public[j].Code
		}
		return public[i].CreatedAt.After(public[j].CreatedAt)
	})

	if offset >= len(public) {
		return []link.Record{}, nil
	}
	public = public[offset:]
	if limit > 0 && limit < len(public) {
		public = public[:limit]
	}

	return public, nil
}

func (s *Storage) AppendClick(_ context.Context, e click.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clicks[e.Code] = append(s.clicks[e.Code], e)

	return nil
}

func (s *Storage) ClicksSince(_ context.Context, code string, since time.Time) ([]click.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []click.Event
	for _, e := range s.clicks[code] {
		if !e.Timestamp.Before(since) {
			events = append(events, e)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return events, nil
}

func (s *Storage) IncrementCategory(_ context.Context, code string, category click.Category, value string, delta int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := counterKey{code: code, category: category, value: value}
	c := s.counters[key]
	c.Code, c.Category, c.Value = code, category, value
	c.Count += delta
	c.LastUpdated = at
	s.counters[key] = c

	return nil
}

func (s *Storage) Categories(_ context.Context, code string) ([]click.Counter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var counters []click.Counter
	for key, c := range s.counters {
		if key.code == code {
			counters = append(counters, c)
		}
	}

	return counters, nil
}

func (s *Storage) AppendInsightHistory(_ context.Context, e insight.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, e)

	return nil
}

// InsightHistory returns the entries recorded for code, oldest first.
func (s *Storage) InsightHistory(code string) []insight.HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []insight.HistoryEntry
	for _, e := range s.history {
		if e.Code == code {
			entries = append(entries, e)
		}
	}
	return entries
}

func (s *Storage) AppendMetric(_ context.Context, m monitor.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, m)

	return nil
}

func (s *Storage) MetricsSince(_ context.Context, kind monitor.Kind, since time.Time) ([]monitor.Metric, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var metrics []monitor.Metric
	for _, m := range s.metrics {
		if m.Kind == kind && !m.Timestamp.Before(since) {
			metrics = append(metrics, m)
		}
	}

	return metrics, nil
}

func (s *Storage) Close() error {
	return nil
}
