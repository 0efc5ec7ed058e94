package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/events/kafka"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/worker"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := newApp(ctx, bootstrapOptions{withRedis: true})
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	shutdownTracing := observability.SetupTracing(ctx, cfg.App.Name, cfg.App.Version, cfg.Telemetry, logger)

	producer := kafka.NewProducer(cfg.Kafka, logger)
	worker.StartEventSubscribers(a.dispatcher, a.notifications, producer)

	maintenance, err := worker.NewMaintenanceWorker(cfg.Maintenance, cfg.Chat, a.faq, a.chat,
		worker.WithLogger(logger),
		worker.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}
	maintenance.Start()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	server := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(server, logger, a.metrics, cfg.App.RequestTimeout())

	deps := map[string]handlers.Pinger{}
	if a.pg.PoolHandle() != nil {
		deps["postgres"] = a.pg
	}
	if a.redis != nil {
		deps["redis"] = a.redis
	}

	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Tickets:        handlers.NewTicketsHandler(a.tickets),
		Assistance:     handlers.NewAssistanceHandler(a.assistance),
		Chat:           handlers.NewChatHandler(a.chat),
		FAQ:            handlers.NewFAQHandler(a.faq),
		Profiles:       handlers.NewProfilesHandler(a.profiles),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, a.repos.Profiles),
		Metrics:        a.metrics,
	})

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- server.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		logger.Error("fiber listen", zap.Error(err))
	case sig := <-waitForSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	maintenance.Stop(shutdownCtx)
	if err := producer.Close(); err != nil {
		logger.Warn("kafka producer close", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
	return nil
}

func waitForSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
