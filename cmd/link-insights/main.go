package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"link-insights/internal/client/gemini"
	"link-insights/internal/client/safebrowsing"
	"link-insights/internal/config"
	"link-insights/internal/domain/click"
	adminHandler "link-insights/internal/http-server/handlers/admin"
	"link-insights/internal/http-server/handlers/link/public"
	"link-insights/internal/http-server/handlers/link/save"
	"link-insights/internal/http-server/handlers/redirect"
	statsHandler "link-insights/internal/http-server/handlers/stats"
	mwAdmin "link-insights/internal/http-server/middleware/admin"
	mwLogger "link-insights/internal/http-server/middleware/logger"
	mwMetrics "link-insights/internal/http-server/middleware/metrics"
	mwRateLimit "link-insights/internal/http-server/middleware/ratelimit"
	"link-insights/internal/lib/logger/slogcute"
	"link-insights/internal/lib/random"
	"link-insights/internal/queue"
	"link-insights/internal/service/analytics"
	"link-insights/internal/service/insight"
	linksvc "link-insights/internal/service/link"
	"link-insights/internal/service/monitor"
	statssvc "link-insights/internal/service/stats"
	"link-insights/internal/storage/backend"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"

	dispatcherInline = "inline"
	dispatcherNATS   = "nats"

	routeShorten  = "/shorten"
	routeRedirect = "/{identifier}"
	routeStats    = "/stats/{identifier}"
)

type clickTracker interface {
	Track(raw click.Raw)
	Close()
}

func main() {
	cfg := config.MustLoad()

	log := SetupLogger(cfg.Env)

	log.Info("starting link-insights", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, log, cfg)
	if err != nil {
		log.Error("failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	httpClient := &http.Client{Timeout: max(cfg.Insight.Timeout, cfg.Threat.Timeout) + time.Second}

	geminiClient := gemini.New(gemini.Config{
		APIKey:   cfg.Insight.GeminiAPIKey,
		Model:    cfg.Insight.GeminiModel,
		Endpoint: cfg.Insight.GeminiEndpoint,
	}, httpClient)

	var classifiers []linksvc.ThreatClassifier
	if cfg.Threat.GeminiEnabled && cfg.Insight.GeminiAPIKey != "" {
		classifiers = append(classifiers, geminiClient)
	}
	if cfg.Threat.SafeBrowsingAPIKey != "" {
		classifiers = append(classifiers, safebrowsing.New(safebrowsing.Config{
			APIKey:   cfg.Threat.SafeBrowsingAPIKey,
			Endpoint: cfg.Threat.SafeBrowsingEndpoint,
		}, httpClient))
	}
	if len(classifiers) == 0 {
		log.Warn("no threat classifiers configured, URL screening is disabled")
	}

	monitorService := monitor.New(log, store, cfg.Storage.Timeout)

	linkService := linksvc.New(log, store, random.Generator{Length: cfg.Allocation.CodeLength}, monitorService, linksvc.Options{
		MaxAttempts:     cfg.Allocation.MaxAttempts,
		StoreTimeout:    cfg.Storage.Timeout,
		ClassifyTimeout: cfg.Threat.Timeout,
		DefaultLimit:    cfg.PublicList.DefaultLimit,
		MaxLimit:        cfg.PublicList.MaxLimit,
	}, classifiers...)

	insightCache := insight.New(log, store, geminiClient, insight.Options{
		TTL:          cfg.Insight.TTL,
		Timeout:      cfg.Insight.Timeout,
		StoreTimeout: cfg.Storage.Timeout,
		Model:        geminiClient.Model(),
	})

	projector := analytics.NewProjector(log, store, cfg.Storage.Timeout)
	statsService := statssvc.New(log, linkService, projector, insightCache, monitorService, cfg.Analytics.Window)

	tracker, err := setupTracker(log, cfg, analytics.NewAggregator(log, store, cfg.Storage.Timeout))
	if err != nil {
		log.Error("failed to initialize click dispatcher", slog.String("error", err.Error()))
		os.Exit(1)
	}

	limiter := mwRateLimit.NewIPRateLimiter(rate.Limit(cfg.HTTPServer.RateLimit), cfg.HTTPServer.Burst)
	go limiter.Run(ctx)

	performance := mwMetrics.NewPerformance(monitorService, cfg.Storage.Timeout, routeShorten, routeRedirect, routeStats)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(mwLogger.New(log))
	router.Use(mwMetrics.New(performance))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	router.With(mwRateLimit.New(log, limiter)).Post(routeShorten, save.New(log, linkService, cfg.BaseURL))
	router.Get("/public", public.New(log, linkService, cfg.BaseURL))
	router.Get(routeStats, statsHandler.New(log, statsService))
	router.With(mwAdmin.New(log, cfg.Admin.Token)).Get("/admin/metrics", adminHandler.New(log, monitorService))
	router.Get(routeRedirect, redirect.New(log, linkService, tracker))

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout + cfg.Insight.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting HTTP server", slog.String("addr", cfg.HTTPServer.Address))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop server", slog.String("error", err.Error()))
	}

	tracker.Close()
	performance.Close()

	if err := store.Close(); err != nil {
		log.Error("failed to close storage", slog.String("error", err.Error()))
	}

	log.Info("server stopped")
}

// natsTracker closes the connection together with the publisher.
type natsTracker struct {
	*queue.Publisher
	close func()
}

func (t natsTracker) Close() {
	t.Publisher.Close()
	t.close()
}

func setupTracker(log *slog.Logger, cfg *config.Config, aggregator *analytics.Aggregator) (clickTracker, error) {
	switch cfg.Analytics.Dispatcher {
	case dispatcherNATS:
		conn, err := queue.Connect(cfg.Analytics.NATSURL, "link-insights")
		if err != nil {
			return nil, err
		}

		log.Info("publishing clicks to NATS", slog.String("subject", cfg.Analytics.NATSSubject))

		return natsTracker{
			Publisher: queue.NewPublisher(log, conn, cfg.Analytics.NATSSubject),
			close:     conn.Close,
		}, nil
	default:
		if cfg.Analytics.Dispatcher != dispatcherInline {
			log.Warn("unknown click dispatcher, using inline", slog.String("dispatcher", cfg.Analytics.Dispatcher))
		}
		return analytics.NewAsyncTracker(log, aggregator, cfg.Analytics.RecordTimeout), nil
	}
}

func SetupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = SetupCuteSlog()
	case envDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

func SetupCuteSlog() *slog.Logger {
	opts := slogcute.CuteHandlerOptions{
		SlogOptions: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewCuteHandler(os.Stdout)

	return slog.New(handler)
}
