package config

import (
	"net/url"
	"strings"

	"github.com/spf13/viper"

	apperrors "xui-quota-bot/internal/errors"
)

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_PATH", "data/bot.db")
	v.SetDefault("TRAFFIC_CHECK_INTERVAL_HOURS", 1)
	v.SetDefault("ALERT_THRESHOLD_PERCENT", 80)
	v.SetDefault("DEFAULT_TRAFFIC_LIMIT_GB", 50)

	v.BindEnv("TG_TOKEN")
	v.BindEnv("TG_SUDO_ADMIN_ID")
	v.BindEnv("PANEL_URL")
	v.BindEnv("PANEL_USERNAME")
	v.BindEnv("PANEL_PASSWORD")
	v.BindEnv("PANEL_ADDRESS")
	v.BindEnv("DATABASE_PATH")
	v.BindEnv("TRAFFIC_CHECK_INTERVAL_HOURS")
	v.BindEnv("ALERT_THRESHOLD_PERCENT")
	v.BindEnv("DEFAULT_TRAFFIC_LIMIT_GB")
	v.BindEnv("LOG_LEVEL")

	cfg := &Config{
		LogLevel: v.GetString("LOG_LEVEL"),
		Telegram: TelegramConfig{
			Token:       strings.TrimSpace(v.GetString("TG_TOKEN")),
			SudoAdminID: v.GetInt64("TG_SUDO_ADMIN_ID"),
		},
		Panel: PanelConfig{
			URL:      strings.TrimRight(strings.TrimSpace(v.GetString("PANEL_URL")), "/"),
			Username: strings.TrimSpace(v.GetString("PANEL_USERNAME")),
			Password: strings.TrimSpace(v.GetString("PANEL_PASSWORD")),
			Address:  strings.TrimSpace(v.GetString("PANEL_ADDRESS")),
		},
		Database: DatabaseConfig{
			Path: v.GetString("DATABASE_PATH"),
		},
		Scheduler: SchedulerConfig{
			TrafficCheckIntervalHours: v.GetInt("TRAFFIC_CHECK_INTERVAL_HOURS"),
			AlertThresholdPercent:     v.GetFloat64("ALERT_THRESHOLD_PERCENT"),
			DefaultTrafficLimitGB:     v.GetFloat64("DEFAULT_TRAFFIC_LIMIT_GB"),
		},
	}

	if cfg.Panel.Address == "" {
		cfg.Panel.Address = hostFromURL(cfg.Panel.URL)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return &apperrors.SetupError{Section: "telegram", Message: "TG_TOKEN is required"}
	}
	if cfg.Telegram.SudoAdminID == 0 {
		return &apperrors.SetupError{Section: "telegram", Message: "TG_SUDO_ADMIN_ID is required"}
	}
	if cfg.Panel.URL == "" {
		return &apperrors.SetupError{Section: "panel", Message: "PANEL_URL is required"}
	}
	if cfg.Panel.Username == "" {
		return &apperrors.SetupError{Section: "panel", Message: "PANEL_USERNAME is required"}
	}
	if cfg.Panel.Password == "" {
		return &apperrors.SetupError{Section: "panel", Message: "PANEL_PASSWORD is required"}
	}
	if cfg.Scheduler.TrafficCheckIntervalHours < 1 {
		return &apperrors.SetupError{Section: "scheduler", Message: "TRAFFIC_CHECK_INTERVAL_HOURS must be at least 1"}
	}
	return nil
}

// hostFromURL extracts the hostname used as the connection address in links.
func hostFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
