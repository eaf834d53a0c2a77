package commands

// TelegramCommands contains all commands for the Telegram bot
const (
	// Main commands
	Start  = "/start"
	Cancel = "Cancel"

	// Navigation commands
	ReturnToMainMenu = "Return to Main Menu"

	// Administrator commands
	AddUser        = "Add User"
	ListUsers      = "List Users"
	BlockUser      = "Block User"
	UnblockUser    = "Unblock User"
	SetLimit       = "Set Traffic Limit"
	OverallStats   = "Overall Stats"
	SyncTraffic    = "Sync Traffic"
	UsersNearLimit = "Users Near Limit"

	// User commands
	CreateNewConfig = "Create New Config"
	MyConfigs       = "My Configs"
	TrafficStatus   = "Traffic Status"
	RefreshUsage    = "Refresh Usage"

	// Config action commands
	ViewConfig   = "View Config"
	ExtendConfig = "Extend Config"
	DeleteConfig = "Delete Config"

	// Demo user commands
	About = "About"
	Help  = "Help"

	// Confirmation commands
	Confirm = "Confirm"
)
