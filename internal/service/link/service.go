package link

import (
	"context"
	"log/slog"
	"time"

	domain "link-insights/internal/domain/link"
	"link-insights/internal/domain/monitor"
	"link-insights/internal/domain/threat"
)

// Store is the subset of storage.Store the link registry owns.
type Store interface {
	InsertLink(ctx context.Context, rec domain.Record) error
	LinkByCode(ctx context.Context, code string) (domain.Record, error)
	LinkByAlias(ctx context.Context, alias string) (domain.Record, error)
	PublicLinks(ctx context.Context, limit, offset int) ([]domain.Record, error)
}

type CodeGenerator interface {
	Generate() (string, error)
}

type ThreatClassifier interface {
	Name() string
	Classify(ctx context.Context, rawURL string) (threat.Verdict, error)
}

type MetricRecorder interface {
	Record(ctx context.Context, m monitor.Metric)
}

type Options struct {
	MaxAttempts     int
	StoreTimeout    time.Duration
	ClassifyTimeout time.Duration
	DefaultLimit    int
	MaxLimit        int
}

type Service struct {
	log         *slog.Logger
	store       Store
	generator   CodeGenerator
	classifiers []ThreatClassifier
	recorder    MetricRecorder
	opts        Options
	now         func() time.Time
}

// New creates the link registry. Classifiers are consulted in order on every allocation.
func New(log *slog.Logger, store Store, generator CodeGenerator, recorder MetricRecorder, opts Options, classifiers ...ThreatClassifier) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 10
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}

	return &Service{
		log:         log,
		store:       store,
		generator:   generator,
		classifiers: classifiers,
		recorder:    recorder,
		opts:        opts,
		now:         time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}
