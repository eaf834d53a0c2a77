package handlers

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"xui-quota-bot/internal/commands"
	"xui-quota-bot/internal/config"
	"xui-quota-bot/internal/database"
	"xui-quota-bot/internal/ledger"
	"xui-quota-bot/internal/permissions"
	"xui-quota-bot/internal/services"
)

// DemoHandler handles messages from unregistered or blocked users
type DemoHandler struct {
	BaseHandler
	commandHandlers map[string]func(context.Context, telebot.Context) error
}

// NewDemoHandler creates a new demo handler
func NewDemoHandler(
	xrayService *services.XrayService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	store *database.Store,
	usageLedger *ledger.Ledger,
	config *config.Config,
	logger *logrus.Logger,
) *DemoHandler {
	handler := &DemoHandler{
		BaseHandler: NewBaseHandler(xrayService, stateService, qrService, store, usageLedger, config, logger),
	}

	handler.initializeCommands()
	return handler
}

// CanHandle checks if the handler can handle the given access type
func (h *DemoHandler) CanHandle(accessType permissions.AccessType) bool {
	return accessType == permissions.None
}

// Handle handles a message from Telegram
func (h *DemoHandler) Handle(ctx context.Context, c telebot.Context) error {
	if handler, ok := h.commandHandlers[c.Text()]; ok {
		return handler(ctx, c)
	}
	return h.handleStart(ctx, c)
}

// initializeCommands initializes the command handlers
func (h *DemoHandler) initializeCommands() {
	h.commandHandlers = map[string]func(context.Context, telebot.Context) error{
		commands.Start:            h.handleStart,
		commands.About:            h.handleAbout,
		commands.Help:             h.handleHelp,
		commands.ReturnToMainMenu: h.handleStart,
	}
}

// handleStart handles the /start command
func (h *DemoHandler) handleStart(ctx context.Context, c telebot.Context) error {
	h.stateService.ClearState(c.Sender().ID)

	markup := h.createMainKeyboard(permissions.None)
	message := fmt.Sprintf("You are not registered yet.\n\nAsk an administrator to register your Telegram ID: <code>%d</code>", c.Sender().ID)
	return h.sendTextMessage(c, message, markup)
}

// handleAbout handles the About command
func (h *DemoHandler) handleAbout(ctx context.Context, c telebot.Context) error {
	aboutText := `<b>X-UI Quota Bot</b>

This bot manages proxy client accounts on a 3x-ui panel with per-user traffic quotas.

<b>Features:</b>
• Create and manage proxy configs
• Connection links and QR codes
• Traffic quotas that survive config deletion
• Usage alerts

For access, please contact an administrator.`

	return h.sendTextMessage(c, aboutText, h.createReturnKeyboard())
}

// handleHelp handles the Help command
func (h *DemoHandler) handleHelp(ctx context.Context, c telebot.Context) error {
	helpText := `<b>Help</b>

<b>Available commands:</b>
• <b>/start</b> - Show the main menu
• <b>About</b> - Information about the bot
• <b>Help</b> - This message

<b>How to get access:</b>
Send your Telegram ID to an administrator.`

	return h.sendTextMessage(c, helpText, h.createReturnKeyboard())
}
