package handlers

import (
	"context"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"xui-quota-bot/internal/config"
	"xui-quota-bot/internal/database"
	"xui-quota-bot/internal/ledger"
	"xui-quota-bot/internal/permissions"
	"xui-quota-bot/internal/services"
)

// MessageHandler defines the interface for handling Telegram messages
type MessageHandler interface {
	Handle(ctx context.Context, c telebot.Context) error
	CanHandle(accessType permissions.AccessType) bool
}

// TrafficSyncer runs a full traffic sync plus quota alerting on demand
type TrafficSyncer interface {
	RunNow() (int, error)
}

// HandlerFactory creates message handlers
type HandlerFactory struct {
	xrayService  *services.XrayService
	stateService *services.UserStateService
	qrService    *services.QRService
	store        *database.Store
	usageLedger  *ledger.Ledger
	syncer       TrafficSyncer
	config       *config.Config
	logger       *logrus.Logger
}

// NewHandlerFactory creates a new handler factory
func NewHandlerFactory(
	xrayService *services.XrayService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	store *database.Store,
	usageLedger *ledger.Ledger,
	syncer TrafficSyncer,
	config *config.Config,
	logger *logrus.Logger,
) *HandlerFactory {
	return &HandlerFactory{
		xrayService:  xrayService,
		stateService: stateService,
		qrService:    qrService,
		store:        store,
		usageLedger:  usageLedger,
		syncer:       syncer,
		config:       config,
		logger:       logger,
	}
}

// CreateHandler creates a message handler for the given access type
func (f *HandlerFactory) CreateHandler(accessType permissions.AccessType) MessageHandler {
	switch accessType {
	case permissions.Admin:
		return NewAdminHandler(f.xrayService, f.stateService, f.qrService, f.store, f.usageLedger, f.syncer, f.config, f.logger)
	case permissions.User:
		return NewUserHandler(f.xrayService, f.stateService, f.qrService, f.store, f.usageLedger, f.config, f.logger)
	default:
		return NewDemoHandler(f.xrayService, f.stateService, f.qrService, f.store, f.usageLedger, f.config, f.logger)
	}
}
