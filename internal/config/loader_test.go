package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "xui-quota-bot/internal/errors"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("TG_TOKEN", "123:abc")
	t.Setenv("TG_SUDO_ADMIN_ID", "42")
	t.Setenv("PANEL_URL", "https://panel.example.com:2053/")
	t.Setenv("PANEL_USERNAME", "admin")
	t.Setenv("PANEL_PASSWORD", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.SudoAdminID)
	assert.Equal(t, "https://panel.example.com:2053", cfg.Panel.URL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1, cfg.Scheduler.TrafficCheckIntervalHours)
	assert.Equal(t, 80.0, cfg.Scheduler.AlertThresholdPercent)
	assert.Equal(t, 50.0, cfg.Scheduler.DefaultTrafficLimitGB)
}

func TestLoad_AddressFallsBackToPanelHost(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "panel.example.com", cfg.Panel.Address)
}

func TestLoad_ExplicitAddressWins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PANEL_ADDRESS", "edge.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "edge.example.com", cfg.Panel.Address)
}

func TestLoad_MissingToken(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TG_TOKEN", "")

	_, err := Load()
	require.Error(t, err)

	var setupErr *apperrors.SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "telegram", setupErr.Section)
}

func TestLoad_MissingPanelURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PANEL_URL", "")

	_, err := Load()
	require.Error(t, err)

	var setupErr *apperrors.SetupError
	require.ErrorAs(t, err, &setupErr)
	assert.Equal(t, "panel", setupErr.Section)
}
