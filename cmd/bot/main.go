package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"xui-quota-bot/internal/config"
	"xui-quota-bot/internal/constants"
	"xui-quota-bot/internal/database"
	"xui-quota-bot/internal/ledger"
	"xui-quota-bot/internal/permissions"
	"xui-quota-bot/internal/scheduler"
	"xui-quota-bot/internal/services"
	"xui-quota-bot/pkg/telegrambot"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel)

	// Open database
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open database: ", err)
	}
	store := database.NewStore(db)

	// Bootstrap the sudo admin so it exists as an owner
	if err := store.EnsureOwner(cfg.Telegram.SudoAdminID, database.RoleSudo, 0); err != nil {
		logger.Fatal("Failed to bootstrap sudo admin: ", err)
	}

	// Initialize services
	usageLedger := ledger.New(db, logger)
	stateService := services.NewUserStateService(logger)
	xrayService := services.NewXrayService(cfg, store, usageLedger, logger)
	qrService := services.NewQRService(logger)

	// Setup permission controller
	permController := permissions.NewController(cfg.Telegram.SudoAdminID, store, logger)

	// The scheduler is created first so the bot's admin handlers can trigger
	// manual syncs through it; alert delivery is attached once the bot exists.
	trafficScheduler := scheduler.New(cfg, xrayService, usageLedger, logger)

	// Initialize bot
	bot, err := telegrambot.NewBot(cfg, stateService, xrayService, qrService, store, usageLedger, trafficScheduler, permController, logger)
	if err != nil {
		logger.Fatal("Failed to create bot: ", err)
	}
	trafficScheduler.SetNotifier(bot)

	// Start the traffic check scheduler
	if err := trafficScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler: ", err)
	}
	defer trafficScheduler.Stop()

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	// Start bot
	logger.Info("Starting X-UI quota bot")
	if err := bot.Start(ctx); err != nil {
		logger.Fatal("Bot failed: ", err)
	}
}

// setupLogger sets up the logger
func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		log.Printf("Invalid log level %s, defaulting to info", logLevel)
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: constants.TimestampFormat,
	})

	return logger
}
