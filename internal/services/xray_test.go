package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xui-quota-bot/internal/config"
	"xui-quota-bot/internal/constants"
	"xui-quota-bot/internal/database"
	apperrors "xui-quota-bot/internal/errors"
	"xui-quota-bot/internal/ledger"
)

// stubPanel fakes the 3x-ui API surface the service talks to.
func stubPanel(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "3x-ui", Value: "session"})
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	})
	for path, handler := range handlers {
		mux.HandleFunc(path, handler)
	}

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func panelJSON(obj interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "obj": obj})
	}
}

func newTestService(t *testing.T, panelURL string) (*XrayService, *database.Store) {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	store := database.NewStore(db)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{
		Panel: config.PanelConfig{
			URL:      panelURL,
			Username: "admin",
			Password: "secret",
			Address:  "example.com",
		},
		Scheduler: config.SchedulerConfig{DefaultTrafficLimitGB: 50},
	}

	return NewXrayService(cfg, store, ledger.New(db, logger), logger), store
}

func TestRefreshOwnerTraffic_RecordsPanelCounters(t *testing.T) {
	server := stubPanel(t, map[string]http.HandlerFunc{
		"/panel/api/inbounds/getClientTraffics/alice-main": panelJSON(map[string]interface{}{
			"inboundId": 3,
			"enable":    true,
			"email":     "alice-main",
			"up":        int64(1) << 30,
			"down":      int64(2) << 30,
		}),
	})

	svc, store := newTestService(t, server.URL)
	require.NoError(t, store.EnsureOwner(7, database.RoleUser, 100))

	cfg := &database.Config{OwnerID: 7, ClientEmail: "alice-main", InboundID: 3, TrafficLimitGB: 100}
	require.NoError(t, store.CreateConfig(cfg))

	refreshed, err := svc.RefreshOwnerTraffic(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)

	got, err := store.GetConfig(cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.TrafficUsedGB)
}

func TestRefreshOwnerTraffic_SkipsDeletedConfigs(t *testing.T) {
	server := stubPanel(t, map[string]http.HandlerFunc{
		"/panel/api/inbounds/getClientTraffics/alice-main": panelJSON(map[string]interface{}{
			"inboundId": 3,
			"email":     "alice-main",
			"up":        int64(1) << 30,
			"down":      int64(0),
		}),
	})

	svc, store := newTestService(t, server.URL)
	require.NoError(t, store.EnsureOwner(7, database.RoleUser, 100))

	live := &database.Config{OwnerID: 7, ClientEmail: "alice-main", InboundID: 3}
	require.NoError(t, store.CreateConfig(live))
	gone := &database.Config{OwnerID: 7, ClientEmail: "alice-old", InboundID: 3, IsDeleted: true, DeletedTrafficGB: 9}
	require.NoError(t, store.CreateConfig(gone))

	refreshed, err := svc.RefreshOwnerTraffic(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)

	frozen, err := store.GetConfig(gone.ID)
	require.NoError(t, err)
	assert.Equal(t, 9.0, frozen.DeletedTrafficGB)
	assert.True(t, frozen.IsDeleted)
}

func TestCreateConfig_UsesChosenTrafficAndExpiry(t *testing.T) {
	inbound := map[string]interface{}{
		"id":             3,
		"enable":         true,
		"remark":         "EU",
		"port":           443,
		"protocol":       "vless",
		"settings":       "{}",
		"streamSettings": `{"network":"tcp","security":"none"}`,
	}
	server := stubPanel(t, map[string]http.HandlerFunc{
		"/panel/api/inbounds/get/3": panelJSON(inbound),
		"/panel/api/inbounds/addClient": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
		},
	})

	svc, store := newTestService(t, server.URL)
	require.NoError(t, store.EnsureOwner(7, database.RoleUser, 100))

	before := time.Now().UnixMilli()
	cfg, link, err := svc.CreateConfig(context.Background(), 7, ConfigParams{
		InboundID:      3,
		Name:           "Bob-Home",
		TrafficLimitGB: 20,
		ExpiryDays:     30,
	})
	require.NoError(t, err)

	assert.Equal(t, "bob-home", cfg.ClientEmail)
	assert.Equal(t, 3, cfg.InboundID)
	assert.Equal(t, 20.0, cfg.TrafficLimitGB)
	assert.GreaterOrEqual(t, cfg.ExpiryTime, before+30*constants.MillisecondsInDay)
	assert.Contains(t, link, "vless://")
	assert.Contains(t, link, "#EU-bob-home")

	stored, err := store.GetConfigByEmail("bob-home")
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.OwnerID)
}

func TestCreateConfig_RejectsBadParams(t *testing.T) {
	disabled := map[string]interface{}{
		"id":       4,
		"enable":   false,
		"protocol": "vless",
	}
	server := stubPanel(t, map[string]http.HandlerFunc{
		"/panel/api/inbounds/get/4": panelJSON(disabled),
	})

	svc, store := newTestService(t, server.URL)
	require.NoError(t, store.EnsureOwner(7, database.RoleUser, 100))

	var validationErr *apperrors.ValidationError

	_, _, err := svc.CreateConfig(context.Background(), 7, ConfigParams{InboundID: 4, Name: "bob", TrafficLimitGB: -1})
	require.ErrorAs(t, err, &validationErr)

	_, _, err = svc.CreateConfig(context.Background(), 7, ConfigParams{InboundID: 4, Name: "bob", ExpiryDays: -1})
	require.ErrorAs(t, err, &validationErr)

	_, _, err = svc.CreateConfig(context.Background(), 7, ConfigParams{InboundID: 4, Name: "bob"})
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "inbound", validationErr.Field)
}

func TestExtendExpiry_FromNowWhenNeverExpires(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	got := extendExpiry(0, 30, now)
	assert.Equal(t, now.UnixMilli()+30*constants.MillisecondsInDay, got)
}

func TestExtendExpiry_FromNowWhenAlreadyExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	expired := now.AddDate(0, 0, -10).UnixMilli()

	got := extendExpiry(expired, 7, now)
	assert.Equal(t, now.UnixMilli()+7*constants.MillisecondsInDay, got)
}

func TestExtendExpiry_FromCurrentExpiryWhenInFuture(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 5).UnixMilli()

	got := extendExpiry(future, 7, now)
	assert.Equal(t, future+7*constants.MillisecondsInDay, got)
}

func TestConfigExpiry(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, int64(0), configExpiry(0, now))
	assert.Equal(t, now.UnixMilli()+14*constants.MillisecondsInDay, configExpiry(14, now))
}
