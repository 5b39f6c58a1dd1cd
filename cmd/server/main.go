package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atharva0712/revision-app/internal/config"
	httpdelivery "github.com/atharva0712/revision-app/internal/delivery/http"
	"github.com/atharva0712/revision-app/internal/delivery/telegram"
	"github.com/atharva0712/revision-app/internal/domain/entities"
	"github.com/atharva0712/revision-app/internal/infra/postgres"
	"github.com/atharva0712/revision-app/internal/infra/postgres/repository"
	"github.com/atharva0712/revision-app/internal/infra/redis"
	"github.com/atharva0712/revision-app/internal/logger"
	"github.com/atharva0712/revision-app/internal/service"
	"github.com/atharva0712/revision-app/internal/srs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	lg, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("application stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage.
	dsn, err := cfg.DB.DSN()
	if err != nil {
		return err
	}
	pool, err := postgres.NewPool(ctx, dsn, postgres.PoolConfig{
		MaxConns:          int32(cfg.DB.MaxConnections),
		MinConns:          int32(cfg.DB.MinConnections),
		MaxConnLifetime:   cfg.DB.MaxConnLifetime,
		HealthCheckPeriod: cfg.DB.HealthCheckPeriod,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return err
	}

	stateRepo := repository.NewReviewStateRepository(pool)
	logRepo := repository.NewReviewLogRepository(pool)
	flashcardRepo := repository.NewFlashcardRepository(pool)
	topicRepo := repository.NewTopicRepository(pool)
	progressRepo := repository.NewTopicProgressRepository(pool)
	reminderRepo := repository.NewRemindersRepository(pool)
	transactor := postgres.NewTransactor(pool)
	reviewStore := repository.NewReviewStore(transactor)

	// Per-card locking is distributed when redis is configured.
	var locker service.Locker = service.NewKeyedMutex()
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()

		locker = redis.NewLocker(rdb, redis.LockerConfig{
			Prefix:       cfg.Redis.LockPrefix,
			TTL:          cfg.Redis.LockTTL,
			PollInterval: cfg.Redis.PollInterval,
		}, lg)
		lg.Info("using redis review locks", zap.String("addr", cfg.Redis.Addr))
	}

	engine, err := srs.NewEngine(srs.Config{
		DesiredRetention: cfg.Scheduler.DesiredRetention,
		MaximumInterval:  cfg.Scheduler.MaximumInterval,
		EnableFuzz:       cfg.Scheduler.EnableFuzz,
		EnableShortTerm:  cfg.Scheduler.EnableShortTerm,
		LearningSteps:    cfg.Scheduler.LearningSteps,
		RelearningSteps:  cfg.Scheduler.RelearningSteps,
	})
	if err != nil {
		return err
	}

	// Services.
	progressService := service.NewProgressService(stateRepo, flashcardRepo, topicRepo, progressRepo, lg)
	sessionService := service.NewStudySessionService(stateRepo, flashcardRepo, topicRepo)
	resetService := service.NewResetService(repository.NewResetRepository(transactor), topicRepo, lg)
	reviewService := service.NewReviewService(
		engine,
		stateRepo,
		reviewStore,
		logRepo,
		flashcardRepo,
		topicRepo,
		locker,
		progressService,
		service.ReviewConfig{
			MaxWriteAttempts: cfg.Review.MaxWriteAttempts,
			RetryBackoff:     cfg.Review.RetryBackoff,
		},
		lg,
	)
	reminderService := service.NewReminderService(reminderRepo, service.ReminderConfig{
		Schedule: cfg.Reminders.Cron,
		Window: entities.ReminderWindow{
			StartHour:   cfg.Reminders.StartHour,
			EndHour:     cfg.Reminders.EndHour,
			MinInterval: cfg.Reminders.MinInterval,
		},
	}, lg)

	// HTTP.
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var notificationHandler *httpdelivery.NotificationHandler
	g, ctx := errgroup.WithContext(ctx)

	if cfg.TelegramAPIToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramAPIToken)
		if err != nil {
			return err
		}
		if _, err := bot.Request(tgbotapi.NewSetMyCommands(telegram.Commands()...)); err != nil {
			lg.Warn("failed to set bot commands", zap.Error(err))
		}
		lg.Info("authorized on telegram", zap.String("account", bot.Self.UserName))

		tg := telegram.NewHandler(bot, lg)
		reminderService.SetNotifier(tg)
		notificationHandler = httpdelivery.NewNotificationHandler(reminderService, lg)

		g.Go(func() error { return ignoreCanceled(tg.Run(ctx, bot)) })
		g.Go(func() error { return reminderService.Start(ctx) })
	} else {
		lg.Info("TELEGRAM_API_TOKEN not set, reminders disabled")
	}

	router := httpdelivery.NewRouter(httpdelivery.RouterConfig{
		Logger:              lg,
		AuthMiddleware:      httpdelivery.NewAuthMiddleware(cfg.Auth.JWTSecret, lg),
		ReviewHandler:       httpdelivery.NewReviewHandler(reviewService, lg),
		TopicHandler:        httpdelivery.NewTopicHandler(sessionService, lg),
		ProgressHandler:     httpdelivery.NewProgressHandler(progressService, resetService, lg),
		NotificationHandler: notificationHandler,
		AllowOrigins:        cfg.CORS.AllowOrigins,
		RequestTimeout:      cfg.HTTP.RequestTimeout,
	})
	server := httpdelivery.NewServer(cfg.HTTP.Addr, router, cfg.HTTP.ShutdownTimeout, lg)
	g.Go(func() error { return server.Run(ctx) })

	err = g.Wait()
	lg.Info("shutdown complete")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
