package handlers

import (
	"bytes"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"xui-quota-bot/internal/commands"
	"xui-quota-bot/internal/config"
	"xui-quota-bot/internal/database"
	"xui-quota-bot/internal/ledger"
	"xui-quota-bot/internal/permissions"
	"xui-quota-bot/internal/services"
)

// BaseHandler provides common functionality for all handlers
type BaseHandler struct {
	xrayService  *services.XrayService
	stateService *services.UserStateService
	qrService    *services.QRService
	store        *database.Store
	usageLedger  *ledger.Ledger
	config       *config.Config
	logger       *logrus.Logger
}

// NewBaseHandler creates a new base handler
func NewBaseHandler(
	xrayService *services.XrayService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	store *database.Store,
	usageLedger *ledger.Ledger,
	config *config.Config,
	logger *logrus.Logger,
) BaseHandler {
	return BaseHandler{
		xrayService:  xrayService,
		stateService: stateService,
		qrService:    qrService,
		store:        store,
		usageLedger:  usageLedger,
		config:       config,
		logger:       logger,
	}
}

// sendTextMessage sends a text message with optional markup
func (h *BaseHandler) sendTextMessage(c telebot.Context, text string, markup *telebot.ReplyMarkup) error {
	opts := &telebot.SendOptions{
		ParseMode: telebot.ModeHTML,
	}

	if markup != nil {
		opts.ReplyMarkup = markup
	}

	_, err := c.Bot().Send(c.Recipient(), text, opts)
	if err != nil {
		h.logger.Errorf("Failed to send message: %v", err)
	}
	return err
}

// sendQRCode sends a QR code for the given link
func (h *BaseHandler) sendQRCode(c telebot.Context, link string) error {
	qrBytes, err := h.qrService.GenerateQR(link)
	if err != nil {
		h.logger.Errorf("Failed to generate QR code: %v", err)
		return err
	}

	reader := bytes.NewReader(qrBytes)
	photo := &telebot.Photo{File: telebot.FromReader(reader)}

	_, err = c.Bot().Send(c.Recipient(), photo)
	if err != nil {
		h.logger.Errorf("Failed to send QR code: %v", err)
	}
	return err
}

// createMainKeyboard creates the main keyboard for the given access type
func (h *BaseHandler) createMainKeyboard(accessType permissions.AccessType) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard: true,
	}

	var rows []telebot.Row

	switch accessType {
	case permissions.Admin:
		rows = []telebot.Row{
			{
				telebot.Btn{Text: commands.AddUser},
				telebot.Btn{Text: commands.ListUsers},
			},
			{
				telebot.Btn{Text: commands.SetLimit},
				telebot.Btn{Text: commands.BlockUser},
				telebot.Btn{Text: commands.UnblockUser},
			},
			{
				telebot.Btn{Text: commands.OverallStats},
				telebot.Btn{Text: commands.UsersNearLimit},
				telebot.Btn{Text: commands.SyncTraffic},
			},
			{
				telebot.Btn{Text: commands.CreateNewConfig},
				telebot.Btn{Text: commands.MyConfigs},
			},
			{
				telebot.Btn{Text: commands.TrafficStatus},
				telebot.Btn{Text: commands.RefreshUsage},
			},
		}
	case permissions.User:
		rows = []telebot.Row{
			{
				telebot.Btn{Text: commands.CreateNewConfig},
				telebot.Btn{Text: commands.MyConfigs},
			},
			{
				telebot.Btn{Text: commands.TrafficStatus},
				telebot.Btn{Text: commands.RefreshUsage},
			},
		}
	default:
		rows = []telebot.Row{
			{
				telebot.Btn{Text: commands.About},
				telebot.Btn{Text: commands.Help},
			},
		}
	}

	markup.Reply(rows...)
	return markup
}

// createReturnKeyboard creates a keyboard with a return button
func (h *BaseHandler) createReturnKeyboard() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard: true,
	}

	markup.Reply(
		telebot.Row{
			telebot.Btn{Text: commands.ReturnToMainMenu},
		},
	)

	return markup
}

// createConfirmKeyboard creates a keyboard with confirm/cancel buttons
func (h *BaseHandler) createConfirmKeyboard() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{
		ResizeKeyboard: true,
	}

	markup.Reply(
		telebot.Row{
			telebot.Btn{Text: commands.Confirm},
			telebot.Btn{Text: commands.Cancel},
		},
	)

	return markup
}
