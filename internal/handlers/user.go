package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"xui-quota-bot/internal/commands"
	"xui-quota-bot/internal/config"
	"xui-quota-bot/internal/database"
	apperrors "xui-quota-bot/internal/errors"
	"xui-quota-bot/internal/helpers"
	"xui-quota-bot/internal/ledger"
	"xui-quota-bot/internal/models"
	"xui-quota-bot/internal/permissions"
	"xui-quota-bot/internal/services"
)

// UserHandler handles commands of registered users: creating configs,
// viewing them with links and QR codes, extending and deleting them, and
// checking traffic status against the owner's quota.
type UserHandler struct {
	BaseHandler
	commandHandlers map[string]func(context.Context, telebot.Context) error
}

// NewUserHandler creates a new user handler
func NewUserHandler(
	xrayService *services.XrayService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	store *database.Store,
	usageLedger *ledger.Ledger,
	config *config.Config,
	logger *logrus.Logger,
) *UserHandler {
	handler := &UserHandler{
		BaseHandler: NewBaseHandler(xrayService, stateService, qrService, store, usageLedger, config, logger),
	}

	handler.initializeCommands()
	return handler
}

// CanHandle checks if the handler can handle the given access type
func (h *UserHandler) CanHandle(accessType permissions.AccessType) bool {
	return accessType == permissions.User
}

// Handle handles a message from Telegram
func (h *UserHandler) Handle(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID

	state, err := h.stateService.GetState(userID)
	if err != nil {
		h.logger.Errorf("Failed to get user state: %v", err)
		return err
	}

	if c.Text() == commands.Cancel || c.Text() == commands.ReturnToMainMenu {
		return h.handleStart(ctx, c)
	}

	switch state.State {
	case models.Default:
		return h.handleDefaultState(ctx, c)
	case models.AwaitingInboundSelection:
		return h.handleInboundSelection(ctx, c)
	case models.AwaitingConfigName:
		return h.handleConfigNameInput(ctx, c, state.Payload)
	case models.AwaitingTrafficAmount:
		return h.handleTrafficAmountInput(ctx, c, state.Payload)
	case models.AwaitingExpiryDays:
		return h.handleExpiryDaysInput(ctx, c, state.Payload)
	case models.AwaitConfirmConfigCreation:
		return h.handleCreationConfirm(ctx, c, state.Payload)
	case models.AwaitingConfigSelection:
		return h.handleConfigSelection(ctx, c)
	case models.AwaitingConfigAction:
		return h.handleConfigAction(ctx, c, state.Payload)
	case models.AwaitingExtendDays:
		return h.handleExtendDaysInput(ctx, c, state.Payload)
	case models.AwaitConfirmConfigDeletion:
		return h.handleDeletionConfirm(ctx, c, state.Payload)
	default:
		h.logger.Warnf("Unknown state: %d", state.State)
		return h.handleDefaultState(ctx, c)
	}
}

// initializeCommands initializes the command handlers
func (h *UserHandler) initializeCommands() {
	h.commandHandlers = map[string]func(context.Context, telebot.Context) error{
		commands.Start:            h.handleStart,
		commands.CreateNewConfig:  h.handleCreateNewConfig,
		commands.MyConfigs:        h.handleMyConfigs,
		commands.TrafficStatus:    h.handleTrafficStatus,
		commands.RefreshUsage:     h.handleRefreshUsage,
		commands.ReturnToMainMenu: h.handleStart,
	}
}

// handleDefaultState handles the default state
func (h *UserHandler) handleDefaultState(ctx context.Context, c telebot.Context) error {
	if handler, ok := h.commandHandlers[c.Text()]; ok {
		return handler(ctx, c)
	}
	return h.handleStart(ctx, c)
}

// handleStart handles the /start command
func (h *UserHandler) handleStart(ctx context.Context, c telebot.Context) error {
	h.stateService.ClearState(c.Sender().ID)

	markup := h.createMainKeyboard(permissions.User)
	return h.sendTextMessage(c, "Welcome! Manage your proxy accounts below.", markup)
}

// pendingConfig accumulates the choices of the creation conversation inside
// the state payload.
type pendingConfig struct {
	InboundID int     `json:"inboundId"`
	Name      string  `json:"name"`
	TrafficGB float64 `json:"trafficGb"`
	Days      int     `json:"days"`
}

func (p *pendingConfig) encode() *string {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil
	}
	payload := string(raw)
	return &payload
}

func decodePendingConfig(payload *string) (*pendingConfig, error) {
	if payload == nil {
		return nil, fmt.Errorf("no config creation in progress")
	}
	var pending pendingConfig
	if err := json.Unmarshal([]byte(*payload), &pending); err != nil {
		return nil, fmt.Errorf("invalid creation payload: %w", err)
	}
	return &pending, nil
}

// handleCreateNewConfig starts the creation conversation with inbound selection
func (h *UserHandler) handleCreateNewConfig(ctx context.Context, c telebot.Context) error {
	inbounds, err := h.xrayService.EnabledInbounds(ctx)
	if err != nil {
		h.logger.Errorf("Failed to list inbounds: %v", err)
		return h.sendTextMessage(c, "Failed to reach the panel, please try again later.", h.createMainKeyboard(permissions.User))
	}
	if len(inbounds) == 0 {
		return h.sendTextMessage(c, "No inbound is available for new configs right now.", h.createMainKeyboard(permissions.User))
	}

	markup := &telebot.ReplyMarkup{ResizeKeyboard: true}
	var rows []telebot.Row
	for _, inbound := range inbounds {
		rows = append(rows, telebot.Row{telebot.Btn{Text: inboundButton(inbound.ID, inbound.Remark, inbound.Protocol)}})
	}
	rows = append(rows, telebot.Row{telebot.Btn{Text: commands.ReturnToMainMenu}})
	markup.Reply(rows...)

	if err := h.stateService.WithConversationState(c.Sender().ID, models.AwaitingInboundSelection); err != nil {
		return err
	}
	return h.sendTextMessage(c, "Select an inbound for the new config:", markup)
}

// handleInboundSelection remembers the chosen inbound and asks for a name
func (h *UserHandler) handleInboundSelection(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID

	inboundID, err := parseInboundButton(c.Text())
	if err != nil {
		return h.sendTextMessage(c, "Pick an inbound from the list.", nil)
	}

	pending := &pendingConfig{InboundID: inboundID}
	h.stateService.SetState(userID, models.UserState{State: models.AwaitingConfigName, Payload: pending.encode()})

	return h.sendTextMessage(c, "Enter a name for the new config:", h.createReturnKeyboard())
}

// handleConfigNameInput validates the name and asks for a traffic limit
func (h *UserHandler) handleConfigNameInput(ctx context.Context, c telebot.Context, payload *string) error {
	userID := c.Sender().ID

	pending, err := decodePendingConfig(payload)
	if err != nil {
		return h.handleStart(ctx, c)
	}

	name, err := h.xrayService.ValidateConfigName(c.Text())
	if err != nil {
		var validationErr *apperrors.ValidationError
		if errors.As(err, &validationErr) {
			return h.sendTextMessage(c, fmt.Sprintf("Invalid name: %s. Try another one:", validationErr.Message), nil)
		}
		h.logger.Errorf("Failed to validate config name for user %d: %v", userID, err)
		return h.sendTextMessage(c, "Failed to check the name, try again:", nil)
	}

	pending.Name = name
	h.stateService.SetState(userID, models.UserState{State: models.AwaitingTrafficAmount, Payload: pending.encode()})

	return h.sendTextMessage(c, "Enter the traffic limit in GB (0 for unlimited):", h.createReturnKeyboard())
}

// handleTrafficAmountInput parses the traffic limit and asks for the expiry
func (h *UserHandler) handleTrafficAmountInput(ctx context.Context, c telebot.Context, payload *string) error {
	userID := c.Sender().ID

	pending, err := decodePendingConfig(payload)
	if err != nil {
		return h.handleStart(ctx, c)
	}

	trafficGB, err := strconv.ParseFloat(strings.TrimSpace(c.Text()), 64)
	if err != nil || trafficGB < 0 {
		return h.sendTextMessage(c, "Traffic must be a non-negative number of GB.", nil)
	}

	pending.TrafficGB = trafficGB
	h.stateService.SetState(userID, models.UserState{State: models.AwaitingExpiryDays, Payload: pending.encode()})

	return h.sendTextMessage(c, "Enter the duration in days (0 for never expires):", h.createReturnKeyboard())
}

// handleExpiryDaysInput parses the expiry and asks for confirmation
func (h *UserHandler) handleExpiryDaysInput(ctx context.Context, c telebot.Context, payload *string) error {
	userID := c.Sender().ID

	pending, err := decodePendingConfig(payload)
	if err != nil {
		return h.handleStart(ctx, c)
	}

	days, err := strconv.Atoi(strings.TrimSpace(c.Text()))
	if err != nil || days < 0 {
		return h.sendTextMessage(c, "Duration must be a non-negative number of days.", nil)
	}

	pending.Days = days
	h.stateService.SetState(userID, models.UserState{State: models.AwaitConfirmConfigCreation, Payload: pending.encode()})

	traffic := "∞"
	if pending.TrafficGB > 0 {
		traffic = helpers.FormatGB(pending.TrafficGB)
	}
	duration := "never expires"
	if days > 0 {
		duration = fmt.Sprintf("%d days", days)
	}
	summary := fmt.Sprintf("Create config <b>%s</b>?\n\nTraffic: %s\nDuration: %s", pending.Name, traffic, duration)
	return h.sendTextMessage(c, summary, h.createConfirmKeyboard())
}

// handleCreationConfirm creates the config after confirmation
func (h *UserHandler) handleCreationConfirm(ctx context.Context, c telebot.Context, payload *string) error {
	userID := c.Sender().ID

	if c.Text() != commands.Confirm {
		return h.handleStart(ctx, c)
	}

	pending, err := decodePendingConfig(payload)
	if err != nil {
		return h.handleStart(ctx, c)
	}

	h.stateService.ClearState(userID)

	params := services.ConfigParams{
		InboundID:      pending.InboundID,
		Name:           pending.Name,
		TrafficLimitGB: pending.TrafficGB,
		ExpiryDays:     pending.Days,
	}
	cfg, connectionLink, err := h.xrayService.CreateConfig(ctx, userID, params)
	if err != nil {
		var validationErr *apperrors.ValidationError
		if errors.As(err, &validationErr) {
			return h.sendTextMessage(c, fmt.Sprintf("Cannot create config: %s", validationErr.Message), h.createMainKeyboard(permissions.User))
		}
		h.logger.Errorf("Failed to create config for user %d: %v", userID, err)
		return h.sendTextMessage(c, "Failed to create config, please try again later.", h.createMainKeyboard(permissions.User))
	}

	subscriptionURL, err := h.xrayService.SubscriptionURL(ctx, cfg)
	if err != nil {
		h.logger.Warnf("Failed to build subscription URL for config %d: %v", cfg.ID, err)
	}

	message := helpers.FormatConfigDetails(cfg, connectionLink, subscriptionURL)
	if err := h.sendTextMessage(c, message, h.createMainKeyboard(permissions.User)); err != nil {
		return err
	}
	return h.sendQRCode(c, connectionLink)
}

// handleMyConfigs lists the user's configs for selection
func (h *UserHandler) handleMyConfigs(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID

	configs, err := h.store.OwnerConfigs(userID, false)
	if err != nil {
		h.logger.Errorf("Failed to list configs for user %d: %v", userID, err)
		return h.sendTextMessage(c, "Failed to load your configs.", nil)
	}
	if len(configs) == 0 {
		return h.sendTextMessage(c, "You have no configs yet. Use 'Create New Config' to create one.", h.createMainKeyboard(permissions.User))
	}

	markup := &telebot.ReplyMarkup{ResizeKeyboard: true}
	var rows []telebot.Row
	for _, cfg := range configs {
		rows = append(rows, telebot.Row{telebot.Btn{Text: cfg.ClientEmail}})
	}
	rows = append(rows, telebot.Row{telebot.Btn{Text: commands.ReturnToMainMenu}})
	markup.Reply(rows...)

	if err := h.stateService.WithConversationState(userID, models.AwaitingConfigSelection); err != nil {
		return err
	}
	return h.sendTextMessage(c, "Select a config:", markup)
}

// handleConfigSelection resolves the chosen config and shows its actions
func (h *UserHandler) handleConfigSelection(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID

	cfg, err := h.ownedConfigByEmail(userID, c.Text())
	if err != nil {
		return h.sendTextMessage(c, "Config not found, pick one from the list.", nil)
	}

	payload := strconv.FormatUint(uint64(cfg.ID), 10)
	h.stateService.SetState(userID, models.UserState{State: models.AwaitingConfigAction, Payload: &payload})

	markup := &telebot.ReplyMarkup{ResizeKeyboard: true}
	markup.Reply(
		telebot.Row{
			telebot.Btn{Text: commands.ViewConfig},
			telebot.Btn{Text: commands.ExtendConfig},
		},
		telebot.Row{
			telebot.Btn{Text: commands.DeleteConfig},
			telebot.Btn{Text: commands.ReturnToMainMenu},
		},
	)
	return h.sendTextMessage(c, fmt.Sprintf("Config <b>%s</b>. Choose an action:", cfg.ClientEmail), markup)
}

// handleConfigAction dispatches the chosen config action
func (h *UserHandler) handleConfigAction(ctx context.Context, c telebot.Context, payload *string) error {
	userID := c.Sender().ID

	cfg, err := h.ownedConfigFromPayload(userID, payload)
	if err != nil {
		h.logger.Warnf("Stale config selection for user %d: %v", userID, err)
		return h.handleStart(ctx, c)
	}

	switch c.Text() {
	case commands.ViewConfig:
		return h.handleViewConfig(ctx, c, cfg)
	case commands.ExtendConfig:
		if err := h.stateService.WithConversationState(userID, models.AwaitingExtendDays); err != nil {
			return err
		}
		return h.sendTextMessage(c, "Enter the number of days to extend, optionally followed by extra traffic in GB (for example: <code>30 50</code>):", h.createReturnKeyboard())
	case commands.DeleteConfig:
		if err := h.stateService.WithConversationState(userID, models.AwaitConfirmConfigDeletion); err != nil {
			return err
		}
		return h.sendTextMessage(c, fmt.Sprintf("Delete config <b>%s</b>? Its used traffic stays on your quota.", cfg.ClientEmail), h.createConfirmKeyboard())
	default:
		return h.handleStart(ctx, c)
	}
}

// handleViewConfig shows a config's details, link and QR code
func (h *UserHandler) handleViewConfig(ctx context.Context, c telebot.Context, cfg *database.Config) error {
	connectionLink, err := h.xrayService.ConfigLink(ctx, cfg)
	if err != nil {
		h.logger.Errorf("Failed to build link for config %d: %v", cfg.ID, err)
		return h.sendTextMessage(c, "Failed to load the config from the panel.", h.createMainKeyboard(permissions.User))
	}

	subscriptionURL, err := h.xrayService.SubscriptionURL(ctx, cfg)
	if err != nil {
		h.logger.Warnf("Failed to build subscription URL for config %d: %v", cfg.ID, err)
	}

	message := helpers.FormatConfigDetails(cfg, connectionLink, subscriptionURL)
	if err := h.sendTextMessage(c, message, h.createReturnKeyboard()); err != nil {
		return err
	}
	return h.sendQRCode(c, connectionLink)
}

// handleExtendDaysInput parses "days [extraGB]" and extends the config
func (h *UserHandler) handleExtendDaysInput(ctx context.Context, c telebot.Context, payload *string) error {
	userID := c.Sender().ID

	cfg, err := h.ownedConfigFromPayload(userID, payload)
	if err != nil {
		return h.handleStart(ctx, c)
	}

	fields := strings.Fields(c.Text())
	if len(fields) == 0 {
		return h.sendTextMessage(c, "Enter a number of days.", nil)
	}

	days, err := strconv.Atoi(fields[0])
	if err != nil || days <= 0 {
		return h.sendTextMessage(c, "Days must be a positive number.", nil)
	}

	var extraGB float64
	if len(fields) > 1 {
		extraGB, err = strconv.ParseFloat(fields[1], 64)
		if err != nil || extraGB < 0 {
			return h.sendTextMessage(c, "Extra traffic must be a non-negative number of GB.", nil)
		}
	}

	h.stateService.ClearState(userID)

	if err := h.xrayService.ExtendConfig(ctx, cfg.ID, days, extraGB); err != nil {
		h.logger.Errorf("Failed to extend config %d: %v", cfg.ID, err)
		return h.sendTextMessage(c, "Failed to extend the config.", h.createMainKeyboard(permissions.User))
	}

	return h.sendTextMessage(c, fmt.Sprintf("Config <b>%s</b> extended by %d days.", cfg.ClientEmail, days), h.createMainKeyboard(permissions.User))
}

// handleDeletionConfirm deletes the config after confirmation
func (h *UserHandler) handleDeletionConfirm(ctx context.Context, c telebot.Context, payload *string) error {
	userID := c.Sender().ID

	if c.Text() != commands.Confirm {
		return h.handleStart(ctx, c)
	}

	cfg, err := h.ownedConfigFromPayload(userID, payload)
	if err != nil {
		return h.handleStart(ctx, c)
	}

	h.stateService.ClearState(userID)

	if err := h.xrayService.DeleteConfig(ctx, cfg.ID); err != nil {
		h.logger.Errorf("Failed to delete config %d: %v", cfg.ID, err)
		return h.sendTextMessage(c, "Failed to delete the config.", h.createMainKeyboard(permissions.User))
	}

	return h.sendTextMessage(c, fmt.Sprintf("Config <b>%s</b> deleted. Its traffic remains counted in your usage.", cfg.ClientEmail), h.createMainKeyboard(permissions.User))
}

// handleRefreshUsage pulls fresh counters from the panel and shows the status
func (h *UserHandler) handleRefreshUsage(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID

	refreshed, err := h.xrayService.RefreshOwnerTraffic(ctx, userID)
	if err != nil {
		h.logger.Errorf("Failed to refresh traffic for owner %d: %v", userID, err)
		return h.sendTextMessage(c, "Failed to refresh your usage from the panel.", h.createMainKeyboard(permissions.User))
	}

	if err := h.sendTextMessage(c, fmt.Sprintf("Refreshed %d configs from the panel.", refreshed), nil); err != nil {
		return err
	}
	return h.handleTrafficStatus(ctx, c)
}

// handleTrafficStatus shows the owner's usage against their quota
func (h *UserHandler) handleTrafficStatus(ctx context.Context, c telebot.Context) error {
	userID := c.Sender().ID

	owner, err := h.store.GetOwner(userID)
	if err != nil {
		h.logger.Errorf("Failed to load owner %d: %v", userID, err)
		return h.sendTextMessage(c, "Failed to load your account.", nil)
	}

	totalGB, err := h.usageLedger.TotalUsage(userID)
	if err != nil {
		h.logger.Errorf("Failed to compute usage for owner %d: %v", userID, err)
		return h.sendTextMessage(c, "Failed to compute your usage.", nil)
	}

	remainingGB, err := h.usageLedger.RemainingQuota(userID)
	if err != nil {
		h.logger.Errorf("Failed to compute quota for owner %d: %v", userID, err)
		return h.sendTextMessage(c, "Failed to compute your quota.", nil)
	}

	configs, err := h.store.OwnerConfigs(userID, true)
	if err != nil {
		h.logger.Errorf("Failed to list configs for owner %d: %v", userID, err)
		return h.sendTextMessage(c, "Failed to load your configs.", nil)
	}

	message := helpers.FormatOwnerUsageReport(owner, configs, totalGB, remainingGB)
	return h.sendTextMessage(c, message, h.createMainKeyboard(permissions.User))
}

// inboundButton renders an inbound selection button like "#3 germany (vless)"
func inboundButton(id int, remark, protocol string) string {
	if remark == "" {
		remark = "inbound"
	}
	return fmt.Sprintf("#%d %s (%s)", id, remark, protocol)
}

// parseInboundButton extracts the inbound id back out of a selection button
func parseInboundButton(text string) (int, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "#") {
		return 0, fmt.Errorf("not an inbound button: %q", text)
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return 0, fmt.Errorf("not an inbound button: %q", text)
	}
	return strconv.Atoi(fields[0])
}

// ownedConfigByEmail loads a config by email and checks ownership
func (h *UserHandler) ownedConfigByEmail(userID int64, email string) (*database.Config, error) {
	cfg, err := h.store.GetConfigByEmail(strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if cfg.OwnerID != userID {
		return nil, &apperrors.PermissionError{UserID: userID, Required: "config owner"}
	}
	return cfg, nil
}

// ownedConfigFromPayload loads the config referenced by the state payload
func (h *UserHandler) ownedConfigFromPayload(userID int64, payload *string) (*database.Config, error) {
	if payload == nil {
		return nil, fmt.Errorf("no config selected")
	}
	id, err := strconv.ParseUint(*payload, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid config payload %q", *payload)
	}
	cfg, err := h.store.GetConfig(uint(id))
	if err != nil {
		return nil, err
	}
	if cfg.OwnerID != userID {
		return nil, &apperrors.PermissionError{UserID: userID, Required: "config owner"}
	}
	return cfg, nil
}
