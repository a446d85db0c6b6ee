package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ghbridge/internal"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// Consumes the audit jobs that ghbridge inserts when watermill.driver is
// riverqueue and logs one line per delivery.
func main() {
	configPath := flag.String("config", "config.yaml", "Path to ghbridge config file")
	maxWorkers := flag.Int("max-workers", 5, "Max workers for the queue")
	flag.Parse()

	logger := internal.NewLogger("riverqueue-worker")
	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := internal.ConfigureLogging(config.Log); err != nil {
		logger.Fatal().Err(err).Msg("configure logging")
	}
	logger = internal.NewLogger("riverqueue-worker")
	cfg := config.Watermill.RiverQueue
	if cfg.DSN == "" {
		logger.Fatal().Msg("watermill.riverqueue.dsn is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dbPool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db")
	}
	defer dbPool.Close()

	worker := internal.NewRiverEventWorker(func(_ context.Context, topic string, event internal.Event) error {
		logger.Info().
			Str("topic", topic).
			Str("event", event.Name).
			Str("action", event.Action).
			Str("repository", event.Repository).
			Str("sender", event.Sender).
			Str("delivery", event.Delivery).
			Msg("delivery received")
		return nil
	}, internal.NewLogger("riverqueue-worker"))

	workers := river.NewWorkers()
	if err := internal.RegisterRiverEventWorker(workers, cfg.Kind, worker); err != nil {
		logger.Fatal().Err(err).Msg("register worker")
	}

	client, err := river.NewClient(riverpgxv5.New(dbPool), &river.Config{
		Logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn})),
		Queues: map[string]river.QueueConfig{
			cfg.Queue: {MaxWorkers: *maxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("river client")
	}

	if err := client.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("river start")
	}
	logger.Info().Str("queue", cfg.Queue).Str("kind", cfg.Kind).Msg("worker started")

	<-ctx.Done()
	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	if err := client.Stop(stopCtx); err != nil {
		logger.Error().Err(err).Msg("river stop")
	}
}
