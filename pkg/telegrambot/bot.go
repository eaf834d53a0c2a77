package telegrambot

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"xui-quota-bot/internal/config"
	"xui-quota-bot/internal/database"
	"xui-quota-bot/internal/handlers"
	"xui-quota-bot/internal/ledger"
	"xui-quota-bot/internal/permissions"
	"xui-quota-bot/internal/services"
)

// Bot represents a Telegram bot
type Bot struct {
	bot          *telebot.Bot
	config       *config.Config
	handlers     map[permissions.AccessType]handlers.MessageHandler
	stateService *services.UserStateService
	permCtrl     *permissions.PermissionController
	logger       *logrus.Logger
}

// NewBot creates a new Telegram bot
func NewBot(
	cfg *config.Config,
	stateService *services.UserStateService,
	xrayService *services.XrayService,
	qrService *services.QRService,
	store *database.Store,
	usageLedger *ledger.Ledger,
	syncer handlers.TrafficSyncer,
	permCtrl *permissions.PermissionController,
	logger *logrus.Logger,
) (*Bot, error) {
	settings := telebot.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			logger.Errorf("Telegram bot error: %v", err)
			if c != nil {
				c.Send("An error occurred. Please try again later.")
			}
		},
	}

	b, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	factory := handlers.NewHandlerFactory(xrayService, stateService, qrService, store, usageLedger, syncer, cfg, logger)

	bot := &Bot{
		bot:          b,
		config:       cfg,
		handlers:     make(map[permissions.AccessType]handlers.MessageHandler),
		stateService: stateService,
		permCtrl:     permCtrl,
		logger:       logger,
	}

	bot.handlers[permissions.Admin] = factory.CreateHandler(permissions.Admin)
	bot.handlers[permissions.User] = factory.CreateHandler(permissions.User)
	bot.handlers[permissions.None] = factory.CreateHandler(permissions.None)

	bot.setupMiddleware()

	return bot, nil
}

// Start starts the bot and blocks until the context is cancelled
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting Telegram bot")

	go func() {
		<-ctx.Done()
		b.logger.Info("Stopping Telegram bot")
		b.bot.Stop()
	}()

	b.bot.Start()
	return nil
}

// Notify sends a plain message to a user, used by the scheduler for alerts
func (b *Bot) Notify(userID int64, message string) error {
	_, err := b.bot.Send(&telebot.User{ID: userID}, message, &telebot.SendOptions{ParseMode: telebot.ModeHTML})
	return err
}

// setupMiddleware sets up the bot middleware
func (b *Bot) setupMiddleware() {
	b.bot.Use(func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			b.logger.Debugf("Received message from %d: %s", c.Sender().ID, c.Text())
			return next(c)
		}
	})

	b.bot.Handle(telebot.OnText, b.handleUpdate)
	b.bot.Handle(telebot.OnCallback, b.handleUpdate)
	b.bot.Handle("/start", b.handleUpdate)
}

// handleUpdate handles an update from Telegram
func (b *Bot) handleUpdate(c telebot.Context) error {
	userID := c.Sender().ID
	accessType := b.permCtrl.GetAccessType(userID)

	handler, ok := b.handlers[accessType]
	if !ok {
		b.logger.Warnf("No handler for access type %d", accessType)
		return c.Send("You don't have permission to use this bot.")
	}

	return handler.Handle(context.Background(), c)
}
