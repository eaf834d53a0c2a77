package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"xui-quota-bot/internal/config"
	"xui-quota-bot/internal/constants"
	"xui-quota-bot/internal/database"
	apperrors "xui-quota-bot/internal/errors"
	"xui-quota-bot/internal/helpers"
	"xui-quota-bot/internal/ledger"
	"xui-quota-bot/internal/link"
	"xui-quota-bot/internal/models"
	"xui-quota-bot/pkg/xrayclient"
)

// XrayService manages the lifecycle of panel client accounts: creation,
// connection links, extension, deletion and traffic synchronization. Panel
// state and the local ledger are kept in step by going through this service.
type XrayService struct {
	client *xrayclient.Client
	store  *database.Store
	ledger *ledger.Ledger
	config *config.Config
	logger *logrus.Logger
}

// NewXrayService creates a new X-ray service
func NewXrayService(cfg *config.Config, store *database.Store, usageLedger *ledger.Ledger, logger *logrus.Logger) *XrayService {
	client := xrayclient.NewClient(cfg.Panel, logger)

	return &XrayService{
		client: client,
		store:  store,
		ledger: usageLedger,
		config: cfg,
		logger: logger,
	}
}

// ConfigParams carries the choices of the config creation conversation.
// TrafficLimitGB of 0 means unlimited, ExpiryDays of 0 means never.
type ConfigParams struct {
	InboundID      int
	Name           string
	TrafficLimitGB float64
	ExpiryDays     int
}

// GetInbounds gets the inbounds from the panel
func (s *XrayService) GetInbounds(ctx context.Context) ([]models.Inbound, error) {
	return s.client.GetInbounds(ctx)
}

// EnabledInbounds returns the inbounds a new config may be created on
func (s *XrayService) EnabledInbounds(ctx context.Context) ([]models.Inbound, error) {
	inbounds, err := s.client.GetInbounds(ctx)
	if err != nil {
		return nil, err
	}

	var enabled []models.Inbound
	for _, inbound := range inbounds {
		if inbound.Enable {
			enabled = append(enabled, inbound)
		}
	}
	return enabled, nil
}

// ValidateConfigName normalizes the entered name and rejects it when it is
// malformed or already taken by a live config.
func (s *XrayService) ValidateConfigName(name string) (string, error) {
	name = helpers.NormalizeUsername(name)
	if err := helpers.ValidateUsername(name); err != nil {
		return "", err
	}
	if existing, err := s.store.GetConfigByEmail(name); err == nil && !existing.IsDeleted {
		return "", &apperrors.ValidationError{Field: "username", Message: "a config with this name already exists"}
	}
	return name, nil
}

// CreateConfig creates a client on the chosen inbound with the chosen limit
// and expiry, and records it in the store. It returns the stored config
// together with its connection link.
func (s *XrayService) CreateConfig(ctx context.Context, ownerID int64, params ConfigParams) (*database.Config, string, error) {
	username, err := s.ValidateConfigName(params.Name)
	if err != nil {
		return nil, "", err
	}
	if params.TrafficLimitGB < 0 {
		return nil, "", &apperrors.ValidationError{Field: "traffic", Message: "traffic limit cannot be negative"}
	}
	if params.ExpiryDays < 0 {
		return nil, "", &apperrors.ValidationError{Field: "expiry", Message: "expiry days cannot be negative"}
	}

	inbound, err := s.client.GetInbound(ctx, params.InboundID)
	if err != nil {
		return nil, "", err
	}
	if !inbound.Enable {
		return nil, "", &apperrors.ValidationError{Field: "inbound", Message: "the chosen inbound is disabled"}
	}

	expiryMs := configExpiry(params.ExpiryDays, time.Now())
	client := models.Client{
		ID:         models.NewClientID(),
		Email:      username,
		Enable:     true,
		TotalGB:    int64(params.TrafficLimitGB * constants.BytesInGB),
		ExpiryTime: expiryMs,
		TgID:       fmt.Sprintf("%d", ownerID),
		SubID:      models.NewSubID(),
		Security:   "auto",
	}
	if inbound.Protocol == "trojan" {
		client.Password = client.ID
	}

	streamSettings := link.DecodeStreamSettings(inbound.StreamSettings)
	if streamSettings.Security == link.SecurityReality && inbound.Protocol == "vless" {
		client.Flow = "xtls-rprx-vision"
	}

	if err := s.client.AddClient(ctx, inbound.ID, client); err != nil {
		return nil, "", err
	}

	cfg := &database.Config{
		OwnerID:        ownerID,
		ClientEmail:    username,
		InboundID:      inbound.ID,
		TrafficLimitGB: params.TrafficLimitGB,
		ExpiryTime:     expiryMs,
	}
	if err := s.store.CreateConfig(cfg); err != nil {
		return nil, "", err
	}

	connectionLink := link.Build(inbound.Protocol, &client, s.config.Panel.Address, inbound.Port, inbound.Remark, streamSettings)
	s.logger.Infof("Created config %s (id %d) for owner %d on inbound %d", username, cfg.ID, ownerID, inbound.ID)
	return cfg, connectionLink, nil
}

// ConfigLink rebuilds the connection link for a stored config from the
// panel's current inbound settings.
func (s *XrayService) ConfigLink(ctx context.Context, cfg *database.Config) (string, error) {
	inbound, err := s.client.GetInbound(ctx, cfg.InboundID)
	if err != nil {
		return "", err
	}

	client := inbound.FindClient(cfg.ClientEmail)
	if client == nil {
		return "", fmt.Errorf("client %s not found on inbound %d", cfg.ClientEmail, cfg.InboundID)
	}

	streamSettings := link.DecodeStreamSettings(inbound.StreamSettings)
	return link.Build(inbound.Protocol, client, s.config.Panel.Address, inbound.Port, inbound.Remark, streamSettings), nil
}

// SubscriptionURL returns the subscription link of a stored config, or an
// empty string when the panel client carries no subscription id.
func (s *XrayService) SubscriptionURL(ctx context.Context, cfg *database.Config) (string, error) {
	inbound, err := s.client.GetInbound(ctx, cfg.InboundID)
	if err != nil {
		return "", err
	}

	client := inbound.FindClient(cfg.ClientEmail)
	if client == nil || client.SubID == "" {
		return "", nil
	}
	return link.SubscriptionLink(s.config.Panel.URL, client.SubID), nil
}

// DeleteConfig removes the client from the panel and soft-deletes the stored
// config, freezing its final usage in the ledger.
func (s *XrayService) DeleteConfig(ctx context.Context, configID uint) error {
	cfg, err := s.store.GetConfig(configID)
	if err != nil {
		return err
	}
	if cfg.IsDeleted {
		return nil
	}

	// Capture the last cumulative counter before the panel forgets it.
	finalGB := cfg.TrafficUsedGB
	if traffic, err := s.client.GetClientTraffic(ctx, cfg.ClientEmail); err == nil {
		finalGB = traffic.TotalGB
	} else {
		s.logger.Warnf("Could not read final traffic for %s, freezing last known value: %v", cfg.ClientEmail, err)
	}

	client, _, err := s.client.FindClientByEmail(ctx, cfg.ClientEmail)
	if err != nil {
		s.logger.Warnf("Client %s already absent from panel: %v", cfg.ClientEmail, err)
	} else if err := s.client.DeleteClient(ctx, cfg.InboundID, client.Secret()); err != nil {
		return err
	}

	return s.ledger.SoftDelete(configID, finalGB)
}

// ExtendConfig pushes a config's expiry forward by the given number of days
// and raises its traffic limit, on the panel and in the ledger.
func (s *XrayService) ExtendConfig(ctx context.Context, configID uint, days int, additionalLimitGB float64) error {
	cfg, err := s.store.GetConfig(configID)
	if err != nil {
		return err
	}
	if cfg.IsDeleted {
		return &apperrors.ValidationError{Field: "config", Message: "cannot extend a deleted config"}
	}

	newExpiry := extendExpiry(cfg.ExpiryTime, days, time.Now())

	client, inbound, err := s.client.FindClientByEmail(ctx, cfg.ClientEmail)
	if err != nil {
		return err
	}
	client.ExpiryTime = newExpiry
	client.TotalGB = int64((cfg.TrafficLimitGB + additionalLimitGB) * constants.BytesInGB)
	if err := s.client.UpdateClient(ctx, inbound.ID, client.Secret(), *client); err != nil {
		return err
	}

	return s.ledger.Extend(configID, newExpiry, additionalLimitGB)
}

// RefreshOwnerTraffic pulls the current counters of one owner's active
// configs from the panel and records them. It is the on-demand counterpart of
// SyncTraffic; both overwrite with the panel's cumulative total, so they can
// interleave safely. It returns the number of configs refreshed.
func (s *XrayService) RefreshOwnerTraffic(ctx context.Context, ownerID int64) (int, error) {
	configs, err := s.store.OwnerConfigs(ownerID, false)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, cfg := range configs {
		traffic, err := s.client.GetClientTraffic(ctx, cfg.ClientEmail)
		if err != nil {
			s.logger.Warnf("Failed to read traffic for %s: %v", cfg.ClientEmail, err)
			continue
		}
		if err := s.ledger.RecordUsage(cfg.ID, traffic.TotalGB); err != nil {
			s.logger.Errorf("Failed to record usage for config %d: %v", cfg.ID, err)
			continue
		}
		refreshed++
	}

	s.logger.Debugf("Refreshed %d of %d configs for owner %d", refreshed, len(configs), ownerID)
	return refreshed, nil
}

// SyncTraffic pulls the cumulative counters of every client from the panel
// and records them for the matching active configs. It returns the number of
// configs updated.
func (s *XrayService) SyncTraffic(ctx context.Context) (int, error) {
	traffics, err := s.client.GetAllClientTraffics(ctx)
	if err != nil {
		return 0, err
	}

	configs, err := s.store.ActiveConfigs()
	if err != nil {
		return 0, err
	}

	byEmail := make(map[string]models.TrafficInfo, len(traffics))
	for _, traffic := range traffics {
		byEmail[traffic.Email] = traffic
	}

	updated := 0
	for _, cfg := range configs {
		traffic, found := byEmail[cfg.ClientEmail]
		if !found {
			continue
		}
		if err := s.ledger.RecordUsage(cfg.ID, traffic.TotalGB); err != nil {
			s.logger.Errorf("Failed to record usage for config %d: %v", cfg.ID, err)
			continue
		}
		updated++
	}

	s.logger.Debugf("Traffic sync updated %d of %d active configs", updated, len(configs))
	return updated, nil
}

// extendExpiry adds days to the current expiry. An unexpired config extends
// from its current expiry, everything else extends from now.
func extendExpiry(currentMs int64, days int, now time.Time) int64 {
	base := now.UnixMilli()
	if currentMs > base {
		base = currentMs
	}
	return base + int64(days)*constants.MillisecondsInDay
}

// configExpiry converts an expiry in days to epoch milliseconds, with 0
// meaning never.
func configExpiry(days int, now time.Time) int64 {
	if days <= 0 {
		return 0
	}
	return now.UnixMilli() + int64(days)*constants.MillisecondsInDay
}
