package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/cache"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/faqbot"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
)

// operatorID acts for CLI commands that run outside any request.
const operatorID = "00000000-0000-0000-0000-000000000000"

// app holds every long-lived component shared by the commands.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	pg         *persistence.Postgres
	redis      *persistence.Redis
	repos      repository.Repositories
	tx         repository.TxManager
	dispatcher events.Dispatcher
	metrics    *observability.Metrics

	tickets       *service.TicketService
	assistance    *service.AssistanceService
	chat          *service.ChatService
	faq           *service.FAQService
	profiles      *service.ProfileService
	notifications *service.NotificationService
}

type bootstrapOptions struct {
	withRedis bool
}

func loadConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, logger, nil
}

// newApp connects storage and builds the services. Without a Postgres DSN the
// repositories fall back to the in-memory store.
func newApp(ctx context.Context, opts bootstrapOptions) (*app, error) {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return nil, err
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, pg: pg, metrics: observability.NewMetrics()}

	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				pg.Close()
				return nil, fmt.Errorf("migrations: %w", err)
			}
		}
		a.repos = repository.NewRepositories(pool)
		a.tx = repository.NewTxManager(pool)
	} else {
		logger.Warn("using in-memory repositories; data is lost on exit")
		store := memory.NewStore()
		a.repos = store.Repositories()
		a.tx = store
	}

	var corpusCache cache.CorpusCache
	if opts.withRedis && cfg.Redis.Addr != "" {
		a.redis = persistence.NewRedis(cfg.Redis, logger)
		corpusCache = cache.NewRedisCorpusCache(a.redis.Client, cfg.Bot.CorpusCacheTTL)
	}

	a.dispatcher = events.NewInMemoryDispatcher(events.WithErrorHandler(func(event events.Event, err error) {
		logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}))

	engine := faqbot.NewEngine(
		faqbot.WithMaxResults(cfg.Bot.MaxResults),
		faqbot.WithFallbackButtons(cfg.Bot.FallbackButtons),
	)

	a.faq = service.NewFAQService(service.FAQDependencies{
		Repos:  a.repos,
		Tx:     a.tx,
		Cache:  corpusCache,
		Engine: engine,
		Logger: logger,
	})
	a.chat = service.NewChatService(service.ChatDependencies{
		Repos:      a.repos,
		Tx:         a.tx,
		Dispatcher: a.dispatcher,
		Logger:     logger,
		Metrics:    a.metrics,
		Engine:     engine,
		Corpus:     a.faq,
		Config:     cfg.Chat,
	})
	a.tickets = service.NewTicketService(service.TicketDependencies{
		Repos:      a.repos,
		Tx:         a.tx,
		Dispatcher: a.dispatcher,
		Logger:     logger,
		Metrics:    a.metrics,
	})
	a.assistance = service.NewAssistanceService(service.AssistanceDependencies{
		Repos:      a.repos,
		Tx:         a.tx,
		Chat:       a.chat,
		Dispatcher: a.dispatcher,
		Logger:     logger,
		Metrics:    a.metrics,
	})
	a.profiles = service.NewProfileService(service.ProfileDependencies{
		Repos:      a.repos,
		Tx:         a.tx,
		Dispatcher: a.dispatcher,
		Logger:     logger,
	})
	a.notifications = service.NewNotificationService(a.dispatcher, logger, cfg.Notification)
	return a, nil
}

func (a *app) operator() domain.Identity {
	return domain.Identity{ActorID: operatorID, Role: domain.RoleAdmin}
}

func (a *app) Close() {
	a.redis.Close()
	a.pg.Close()
	_ = a.logger.Sync()
}
