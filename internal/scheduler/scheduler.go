package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"xui-quota-bot/internal/config"
	"xui-quota-bot/internal/helpers"
	"xui-quota-bot/internal/ledger"
	"xui-quota-bot/internal/services"
)

// Notifier delivers scheduler messages to Telegram users.
type Notifier interface {
	Notify(userID int64, message string) error
}

// Scheduler runs the periodic traffic sync and quota alerting job.
type Scheduler struct {
	cron        *cron.Cron
	xrayService *services.XrayService
	usageLedger *ledger.Ledger
	notifier    Notifier
	config      config.SchedulerConfig
	sudoAdminID int64
	logger      *logrus.Logger

	// alerted tracks owners already warned in this limit cycle so they are
	// not re-notified on every sync. Guarded by mu because RunNow may be
	// called from a bot handler while the cron job runs.
	mu      sync.Mutex
	alerted map[int64]bool
}

// New creates a new scheduler. The notifier is attached with SetNotifier once
// the bot exists; the bot in turn triggers manual syncs through RunNow.
func New(cfg *config.Config, xrayService *services.XrayService, usageLedger *ledger.Ledger, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		xrayService: xrayService,
		usageLedger: usageLedger,
		config:      cfg.Scheduler,
		sudoAdminID: cfg.Telegram.SudoAdminID,
		logger:      logger,
		alerted:     make(map[int64]bool),
	}
}

// SetNotifier attaches the alert delivery channel. Call before Start.
func (s *Scheduler) SetNotifier(notifier Notifier) {
	s.notifier = notifier
}

// Start schedules the traffic check job and starts the cron loop.
func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %dh", s.config.TrafficCheckIntervalHours)
	if _, err := s.cron.AddFunc(spec, func() { s.runTrafficCheck() }); err != nil {
		return fmt.Errorf("failed to schedule traffic check: %w", err)
	}

	s.cron.Start()
	s.logger.Infof("Scheduler started, traffic check every %dh", s.config.TrafficCheckIntervalHours)
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped")
}

// RunNow triggers a traffic check outside the schedule. Manual syncs go
// through the same path as the cron job so near-limit alerts are
// re-evaluated too. It returns the number of configs updated.
func (s *Scheduler) RunNow() (int, error) {
	return s.runTrafficCheck()
}

func (s *Scheduler) runTrafficCheck() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	updated, err := s.xrayService.SyncTraffic(ctx)
	if err != nil {
		s.logger.Errorf("Traffic sync failed: %v", err)
		return 0, err
	}
	s.logger.Infof("Traffic sync completed, %d configs updated", updated)

	s.checkQuotas()
	return updated, nil
}

func (s *Scheduler) checkQuotas() {
	if s.notifier == nil {
		return
	}

	usages, err := s.usageLedger.UsersNearLimit(s.config.AlertThresholdPercent)
	if err != nil {
		s.logger.Errorf("Quota check failed: %v", err)
		return
	}

	near := make(map[int64]bool, len(usages))
	for _, usage := range usages {
		near[usage.OwnerID] = true
		if s.alerted[usage.OwnerID] {
			continue
		}

		message := fmt.Sprintf("⚠️ You have used %s of your %s traffic limit (%.1f%%).",
			helpers.FormatGB(usage.UsedGB), helpers.FormatGB(usage.LimitGB), usage.Percent)
		if err := s.notifier.Notify(usage.OwnerID, message); err != nil {
			s.logger.Errorf("Failed to notify owner %d: %v", usage.OwnerID, err)
			continue
		}
		s.alerted[usage.OwnerID] = true
	}

	// Owners who dropped back under the threshold become eligible for a new
	// alert on the next crossing.
	for ownerID := range s.alerted {
		if !near[ownerID] {
			delete(s.alerted, ownerID)
		}
	}

	if len(usages) > 0 && s.sudoAdminID != 0 {
		report := helpers.FormatNearLimitReport(usages)
		if err := s.notifier.Notify(s.sudoAdminID, report); err != nil {
			s.logger.Errorf("Failed to send near-limit report to sudo admin: %v", err)
		}
	}
}
