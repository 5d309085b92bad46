package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"link-insights/internal/config"
	"link-insights/internal/lib/logger/slogcute"
	"link-insights/internal/queue"
	"link-insights/internal/service/analytics"
	"link-insights/internal/storage/backend"
)

// click-consumer aggregates clicks published by link-insights when the nats dispatcher is enabled.
func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, log, cfg)
	if err != nil {
		log.Error("failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	conn, err := queue.Connect(cfg.Analytics.NATSURL, "click-consumer")
	if err != nil {
		log.Error("failed to connect to NATS", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	aggregator := analytics.NewAggregator(log, store, cfg.Storage.Timeout)
	consumer := queue.NewConsumer(log, conn, aggregator, cfg.Analytics.RecordTimeout)

	if err := consumer.Start(cfg.Analytics.NATSSubject, cfg.Analytics.NATSQueue); err != nil {
		log.Error("failed to start consumer", slog.String("error", err.Error()))
		os.Exit(1)
	}

	<-ctx.Done()

	log.Info("stopping consumer")

	if err := consumer.Stop(); err != nil {
		log.Error("failed to drain subscription", slog.String("error", err.Error()))
	}

	log.Info("consumer stopped")
}

func setupLogger(env string) *slog.Logger {
	if env == "local" {
		opts := slogcute.CuteHandlerOptions{
			SlogOptions: &slog.HandlerOptions{
				Level: slog.LevelDebug,
			},
		}
		return slog.New(opts.NewCuteHandler(os.Stdout))
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
