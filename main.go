package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"coachline/internal/config"
	"coachline/internal/crypto"
	"coachline/internal/handler"
	"coachline/internal/modelscorer"
	"coachline/internal/notifier"
	"coachline/internal/ratelimit"
	"coachline/internal/repository"
	"coachline/internal/scoring"
	"coachline/internal/server"
	"coachline/internal/service"
	"coachline/internal/telephony"
	"coachline/internal/worker"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logrus.New()

	cfgPath := "configs/config.yml"
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	db, err := repository.NewPostgresDB(cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repository.MigrateDB(db, logger)

	keyManager, err := crypto.NewKeyManager()
	if err != nil {
		logger.Fatal("failed to initialize key manager", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	notif, err := repository.NewNotifier(cfg.Database.URL, db.DB, logger)
	if err != nil {
		logger.Fatal("failed to start notifier", zap.Error(err))
	}
	go notif.Run(ctx)
	defer notif.Close()

	liveStore := repository.NewLiveStore(db, keyManager, notif, logger)
	caseRepo := repository.NewCaseRepository(db)
	operatorRepo := repository.NewOperatorRepository(db, log)

	modelClient := modelscorer.NewClient(cfg.Model.BaseURL, cfg.Model.APIKey, cfg.Model.Name, logger)
	if !modelClient.Configured() {
		logger.Warn("model scorer disabled: no MODEL_API_KEY configured, falling back to heuristic-only advice")
	}

	telephonyClient := telephony.NewClient(cfg.Provider.BaseURL, cfg.Provider.AccountID, cfg.Provider.AuthToken)

	notifierBot, err := notifier.NewBot(cfg.Telegram.BotToken, caseRepo, logger)
	if err != nil {
		logger.Warn("failed to initialize telegram notifier, continuing without it", zap.Error(err))
		notifierBot = nil
	}
	if notifierBot != nil {
		go func() {
			if err := notifierBot.Start(ctx); err != nil {
				logger.Error("telegram notifier stopped", zap.Error(err))
			}
		}()
	}

	minInterval := func() time.Duration {
		return time.Duration(cfg.MinIntervalMs()) * time.Millisecond
	}

	dispatcher := worker.NewDispatcher(
		liveStore,
		modelClient,
		caseRepo,
		notifierBot,
		scoring.DefaultStepCaps,
		minInterval,
		logger,
	)

	limiter := ratelimit.NewLimiter()
	go ratelimit.RunPruner(ctx, limiter, logger)

	authService := service.NewAuthService(operatorRepo, []byte(cfg.JWTSecret), logger)

	deps := server.Deps{
		Webhook: handler.NewWebhookHandler(liveStore, dispatcher, cfg, logger),
		Live:    handler.NewLiveHandler(liveStore, cfg, logger),
		Call:    handler.NewCallHandler(telephonyClient, liveStore, caseRepo, limiter, logger),
		Phone:   handler.NewPhoneHandler(caseRepo, limiter, cfg.PhoneOverrideToken, logger),
		Start:   handler.NewStartHandler(caseRepo, logger),
		Admin:   handler.NewAdminHandler(liveStore, telephonyClient, logger),
		Auth:    handler.NewAuthHandler(authService, log),

		JWTSecret: []byte(cfg.JWTSecret),
		Logger:    logger,
	}

	srv := server.NewServer(deps)

	go func() {
		if err := srv.Run(cfg.Server.Port); err != nil {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
}
