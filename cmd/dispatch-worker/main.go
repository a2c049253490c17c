package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"telegram-campaign-dispatch/internal/adapters/db/postgres"
	"telegram-campaign-dispatch/internal/adapters/gateway/telegram"
	redisprogress "telegram-campaign-dispatch/internal/adapters/progress/redis"
	"telegram-campaign-dispatch/internal/adapters/queue/rabbitmq"
	"telegram-campaign-dispatch/internal/app"
	"telegram-campaign-dispatch/internal/config"
	"telegram-campaign-dispatch/internal/domain"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	conf, err := config.Load()
	if err != nil {
		log.Error("load config", "err", err)
		os.Exit(1)
	}

	// ── Adapters ─────────────────────────────────────────────────────────────
	repo, err := postgres.New(conf.DatabaseURL)
	if err != nil {
		log.Error("connect postgres", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	consumer, err := rabbitmq.NewConsumer(conf.AMQPURL, log)
	if err != nil {
		log.Error("connect rabbitmq consumer", "err", err)
		os.Exit(1)
	}
	defer consumer.Close()

	progress, err := redisprogress.New(conf.RedisAddr, conf.ProgressTTL, log)
	if err != nil {
		log.Error("connect redis", "err", err)
		os.Exit(1)
	}
	defer progress.Close()

	gateway, err := telegram.New(conf.TelegramToken)
	if err != nil {
		log.Error("connect telegram", "err", err)
		os.Exit(1)
	}

	// ── Executor ─────────────────────────────────────────────────────────────
	executor := app.NewExecutor(repo, repo, gateway, progress, log, conf.BatchSize, conf.SendInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("dispatch-worker started", "batch_size", conf.BatchSize, "send_interval", conf.SendInterval)

	if err := consumer.Consume(ctx, func(ctx context.Context, job domain.DispatchJob) error {
		return executor.Handle(ctx, job)
	}); err != nil && ctx.Err() == nil {
		log.Error("consumer error", "err", err)
		os.Exit(1)
	}

	log.Info("shutting down dispatch-worker")
}
