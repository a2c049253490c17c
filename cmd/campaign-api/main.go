package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram-campaign-dispatch/internal/adapters/db/postgres"
	redisprogress "telegram-campaign-dispatch/internal/adapters/progress/redis"
	"telegram-campaign-dispatch/internal/adapters/queue/rabbitmq"
	"telegram-campaign-dispatch/internal/app"
	"telegram-campaign-dispatch/internal/config"
	"telegram-campaign-dispatch/internal/middleware"
	"telegram-campaign-dispatch/internal/transport"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := run(log); err != nil {
		log.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	conf, err := config.Load()
	if err != nil {
		return err
	}

	repo, err := postgres.New(conf.DatabaseURL)
	if err != nil {
		return errors.New("failed to connect to postgres: " + err.Error())
	}
	defer repo.Close()

	publisher, err := rabbitmq.NewPublisher(conf.AMQPURL)
	if err != nil {
		return errors.New("failed to connect to rabbitmq: " + err.Error())
	}
	defer publisher.Close()

	progress, err := redisprogress.New(conf.RedisAddr, conf.ProgressTTL, log)
	if err != nil {
		return errors.New("failed to connect to redis: " + err.Error())
	}
	defer progress.Close()

	svc := app.NewCampaignService(repo, publisher, progress, log)

	fiberApp := fiber.New(fiber.Config{
		AppName:               "campaign-api",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		IdleTimeout:           120 * time.Second,
		ServerHeader:          "",
		BodyLimit:             1 * 1024 * 1024, // selectors with explicit id lists can get large
	})

	fiberApp.Use(recover.New(recover.Config{EnableStackTrace: true}))
	fiberApp.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${method} ${path} ${latency}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	fiberApp.Use(middleware.RequestID())
	fiberApp.Use(middleware.SecurityHeaders())
	fiberApp.Use(middleware.CORS())
	fiberApp.Use(middleware.NewRateLimiter(100).Middleware())

	fiberApp.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	handler := transport.NewHandler(svc, log)
	api := fiberApp.Group("/api")
	handler.Register(api)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info("campaign-api started", "addr", conf.HTTPAddr)
		if err := fiberApp.Listen(conf.HTTPAddr); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errChan:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		return errors.New("failed to shutdown gracefully: " + err.Error())
	}

	log.Info("campaign-api stopped gracefully")
	return nil
}
