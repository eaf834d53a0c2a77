package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	telebot "gopkg.in/telebot.v3"

	"xui-quota-bot/internal/commands"
	"xui-quota-bot/internal/config"
	"xui-quota-bot/internal/database"
	"xui-quota-bot/internal/helpers"
	"xui-quota-bot/internal/ledger"
	"xui-quota-bot/internal/models"
	"xui-quota-bot/internal/permissions"
	"xui-quota-bot/internal/services"
)

// AdminHandler handles administrator commands on top of the regular user
// commands: registering and blocking users, setting traffic limits, overall
// statistics and manual traffic synchronization.
type AdminHandler struct {
	*UserHandler
	syncer        TrafficSyncer
	adminCommands map[string]func(context.Context, telebot.Context) error
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	xrayService *services.XrayService,
	stateService *services.UserStateService,
	qrService *services.QRService,
	store *database.Store,
	usageLedger *ledger.Ledger,
	syncer TrafficSyncer,
	config *config.Config,
	logger *logrus.Logger,
) *AdminHandler {
	handler := &AdminHandler{
		UserHandler: NewUserHandler(xrayService, stateService, qrService, store, usageLedger, config, logger),
		syncer:      syncer,
	}

	handler.initializeAdminCommands()
	return handler
}

// CanHandle checks if the handler can handle the given access type
func (h *AdminHandler) CanHandle(accessType permissions.AccessType) bool {
	return accessType == permissions.Admin
}

// Handle handles a message from Telegram
func (h *AdminHandler) Handle(ctx context.Context, c telebot.Context) error {
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
		if handler, ok := h.adminCommands[c.Text()]; ok {
			return handler(ctx, c)
		}
		if handler, ok := h.commandHandlers[c.Text()]; ok {
			return handler(ctx, c)
		}
		return h.handleStart(ctx, c)
	case models.AwaitingNewUserID:
		return h.handleNewUserIDInput(ctx, c)
	case models.AwaitingBlockUserID:
		return h.handleBlockInput(ctx, c, true)
	case models.AwaitingUnblockUserID:
		return h.handleBlockInput(ctx, c, false)
	case models.AwaitingLimitUserID:
		return h.handleLimitUserIDInput(ctx, c)
	case models.AwaitingLimitValue:
		return h.handleLimitValueInput(ctx, c, state.Payload)
	default:
		// User flow states are shared with the embedded handler.
		return h.UserHandler.Handle(ctx, c)
	}
}

// initializeAdminCommands initializes the admin command handlers
func (h *AdminHandler) initializeAdminCommands() {
	h.adminCommands = map[string]func(context.Context, telebot.Context) error{
		commands.Start:          h.handleStart,
		commands.AddUser:        h.handleAddUser,
		commands.ListUsers:      h.handleListUsers,
		commands.BlockUser:      h.handleBlockUser,
		commands.UnblockUser:    h.handleUnblockUser,
		commands.SetLimit:       h.handleSetLimit,
		commands.OverallStats:   h.handleOverallStats,
		commands.UsersNearLimit: h.handleUsersNearLimit,
		commands.SyncTraffic:    h.handleSyncTraffic,
	}
}

// handleStart handles the /start command
func (h *AdminHandler) handleStart(ctx context.Context, c telebot.Context) error {
	h.stateService.ClearState(c.Sender().ID)

	markup := h.createMainKeyboard(permissions.Admin)
	return h.sendTextMessage(c, "Welcome, administrator.", markup)
}

// handleAddUser asks for the new user's Telegram ID
func (h *AdminHandler) handleAddUser(ctx context.Context, c telebot.Context) error {
	if err := h.stateService.WithConversationState(c.Sender().ID, models.AwaitingNewUserID); err != nil {
		return err
	}
	return h.sendTextMessage(c, "Enter the Telegram ID of the user to register:", h.createReturnKeyboard())
}

// handleNewUserIDInput registers the entered user
func (h *AdminHandler) handleNewUserIDInput(ctx context.Context, c telebot.Context) error {
	adminID := c.Sender().ID

	targetID, err := parseUserID(c.Text())
	if err != nil {
		return h.sendTextMessage(c, "Telegram ID must be a number.", nil)
	}

	h.stateService.ClearState(adminID)

	limitGB := h.config.Scheduler.DefaultTrafficLimitGB
	if err := h.store.EnsureOwner(targetID, database.RoleUser, limitGB); err != nil {
		h.logger.Errorf("Failed to register user %d: %v", targetID, err)
		return h.sendTextMessage(c, "Failed to register the user.", h.createMainKeyboard(permissions.Admin))
	}

	return h.sendTextMessage(c, fmt.Sprintf("User <code>%d</code> registered with a %s limit.", targetID, helpers.FormatLimit(limitGB)), h.createMainKeyboard(permissions.Admin))
}

// handleListUsers lists all owners with their usage
func (h *AdminHandler) handleListUsers(ctx context.Context, c telebot.Context) error {
	owners, err := h.store.ListOwners()
	if err != nil {
		h.logger.Errorf("Failed to list owners: %v", err)
		return h.sendTextMessage(c, "Failed to load users.", nil)
	}
	if len(owners) == 0 {
		return h.sendTextMessage(c, "No users registered yet.", h.createMainKeyboard(permissions.Admin))
	}

	var sb strings.Builder
	sb.WriteString("<b>Users</b>\n<pre>\n")
	sb.WriteString("ID           | Role  | Used   | Limit  | Status\n")
	sb.WriteString("-------------|-------|--------|--------|-------\n")
	for _, owner := range owners {
		usedGB, err := h.usageLedger.TotalUsage(owner.ID)
		if err != nil {
			h.logger.Errorf("Failed to compute usage for owner %d: %v", owner.ID, err)
			continue
		}
		status := "ok"
		if owner.IsBlocked {
			status = "blocked"
		}
		sb.WriteString(fmt.Sprintf("%-12d | %-5s | %6.2f | %6s | %s\n",
			owner.ID, owner.Role, usedGB, limitColumn(owner.TrafficLimitGB), status))
	}
	sb.WriteString("</pre>")

	return h.sendTextMessage(c, sb.String(), h.createMainKeyboard(permissions.Admin))
}

// handleBlockUser asks for the user ID to block
func (h *AdminHandler) handleBlockUser(ctx context.Context, c telebot.Context) error {
	if err := h.stateService.WithConversationState(c.Sender().ID, models.AwaitingBlockUserID); err != nil {
		return err
	}
	return h.sendTextMessage(c, "Enter the Telegram ID of the user to block:", h.createReturnKeyboard())
}

// handleUnblockUser asks for the user ID to unblock
func (h *AdminHandler) handleUnblockUser(ctx context.Context, c telebot.Context) error {
	if err := h.stateService.WithConversationState(c.Sender().ID, models.AwaitingUnblockUserID); err != nil {
		return err
	}
	return h.sendTextMessage(c, "Enter the Telegram ID of the user to unblock:", h.createReturnKeyboard())
}

// handleBlockInput applies the block or unblock to the entered user
func (h *AdminHandler) handleBlockInput(ctx context.Context, c telebot.Context, blocked bool) error {
	adminID := c.Sender().ID

	targetID, err := parseUserID(c.Text())
	if err != nil {
		return h.sendTextMessage(c, "Telegram ID must be a number.", nil)
	}

	h.stateService.ClearState(adminID)

	if _, err := h.store.GetOwner(targetID); err != nil {
		return h.sendTextMessage(c, fmt.Sprintf("User <code>%d</code> is not registered.", targetID), h.createMainKeyboard(permissions.Admin))
	}
	if err := h.store.SetOwnerBlocked(targetID, blocked); err != nil {
		h.logger.Errorf("Failed to set blocked=%v for user %d: %v", blocked, targetID, err)
		return h.sendTextMessage(c, "Failed to update the user.", h.createMainKeyboard(permissions.Admin))
	}

	verb := "unblocked"
	if blocked {
		verb = "blocked"
	}
	return h.sendTextMessage(c, fmt.Sprintf("User <code>%d</code> %s.", targetID, verb), h.createMainKeyboard(permissions.Admin))
}

// handleSetLimit asks for the user ID to set a limit for
func (h *AdminHandler) handleSetLimit(ctx context.Context, c telebot.Context) error {
	if err := h.stateService.WithConversationState(c.Sender().ID, models.AwaitingLimitUserID); err != nil {
		return err
	}
	return h.sendTextMessage(c, "Enter the Telegram ID of the user:", h.createReturnKeyboard())
}

// handleLimitUserIDInput remembers the target user and asks for the limit
func (h *AdminHandler) handleLimitUserIDInput(ctx context.Context, c telebot.Context) error {
	adminID := c.Sender().ID

	targetID, err := parseUserID(c.Text())
	if err != nil {
		return h.sendTextMessage(c, "Telegram ID must be a number.", nil)
	}
	if _, err := h.store.GetOwner(targetID); err != nil {
		h.stateService.ClearState(adminID)
		return h.sendTextMessage(c, fmt.Sprintf("User <code>%d</code> is not registered.", targetID), h.createMainKeyboard(permissions.Admin))
	}

	payload := strconv.FormatInt(targetID, 10)
	h.stateService.SetState(adminID, models.UserState{State: models.AwaitingLimitValue, Payload: &payload})

	return h.sendTextMessage(c, "Enter the traffic limit in GB (0 for unlimited):", h.createReturnKeyboard())
}

// handleLimitValueInput applies the entered limit to the remembered user
func (h *AdminHandler) handleLimitValueInput(ctx context.Context, c telebot.Context, payload *string) error {
	adminID := c.Sender().ID

	if payload == nil {
		return h.handleStart(ctx, c)
	}
	targetID, err := parseUserID(*payload)
	if err != nil {
		return h.handleStart(ctx, c)
	}

	limitGB, err := strconv.ParseFloat(strings.TrimSpace(c.Text()), 64)
	if err != nil || limitGB < 0 {
		return h.sendTextMessage(c, "Limit must be a non-negative number of GB.", nil)
	}

	h.stateService.ClearState(adminID)

	if err := h.store.SetOwnerLimit(targetID, limitGB); err != nil {
		h.logger.Errorf("Failed to set limit for user %d: %v", targetID, err)
		return h.sendTextMessage(c, "Failed to update the limit.", h.createMainKeyboard(permissions.Admin))
	}

	return h.sendTextMessage(c, fmt.Sprintf("Limit for user <code>%d</code> set to %s.", targetID, helpers.FormatLimit(limitGB)), h.createMainKeyboard(permissions.Admin))
}

// handleOverallStats shows the overall statistics
func (h *AdminHandler) handleOverallStats(ctx context.Context, c telebot.Context) error {
	stats, err := h.store.Stats()
	if err != nil {
		h.logger.Errorf("Failed to load stats: %v", err)
		return h.sendTextMessage(c, "Failed to load statistics.", nil)
	}
	return h.sendTextMessage(c, helpers.FormatOverallStats(stats), h.createMainKeyboard(permissions.Admin))
}

// handleUsersNearLimit shows owners above the alert threshold
func (h *AdminHandler) handleUsersNearLimit(ctx context.Context, c telebot.Context) error {
	usages, err := h.usageLedger.UsersNearLimit(h.config.Scheduler.AlertThresholdPercent)
	if err != nil {
		h.logger.Errorf("Failed to compute users near limit: %v", err)
		return h.sendTextMessage(c, "Failed to compute the report.", nil)
	}
	return h.sendTextMessage(c, helpers.FormatNearLimitReport(usages), h.createMainKeyboard(permissions.Admin))
}

// handleSyncTraffic runs a full sync plus quota alerting on demand
func (h *AdminHandler) handleSyncTraffic(ctx context.Context, c telebot.Context) error {
	updated, err := h.syncer.RunNow()
	if err != nil {
		h.logger.Errorf("Manual traffic sync failed: %v", err)
		return h.sendTextMessage(c, "Traffic sync failed.", h.createMainKeyboard(permissions.Admin))
	}
	return h.sendTextMessage(c, fmt.Sprintf("Traffic sync completed, %d configs updated.", updated), h.createMainKeyboard(permissions.Admin))
}

func parseUserID(text string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(text), 10, 64)
}

func limitColumn(limitGB float64) string {
	if limitGB == 0 {
		return "∞"
	}
	return fmt.Sprintf("%.0f", limitGB)
}
