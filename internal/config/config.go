package config

// Config represents the application configuration
type Config struct {
	Telegram  TelegramConfig
	Panel     PanelConfig
	Database  DatabaseConfig
	Scheduler SchedulerConfig
	LogLevel  string
}

// TelegramConfig holds the Telegram bot configuration
type TelegramConfig struct {
	Token       string
	SudoAdminID int64
}

// PanelConfig holds the 3x-ui panel connection settings. Address is the host
// placed into generated links; when empty it is derived from the panel URL.
type PanelConfig struct {
	URL      string
	Username string
	Password string
	Address  string
}

// DatabaseConfig holds the sqlite database location
type DatabaseConfig struct {
	Path string
}

// SchedulerConfig holds the periodic traffic refresh settings
type SchedulerConfig struct {
	TrafficCheckIntervalHours int
	AlertThresholdPercent     float64
	DefaultTrafficLimitGB     float64
}
