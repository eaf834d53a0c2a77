package ledger

import (
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"xui-quota-bot/internal/database"
	apperrors "xui-quota-bot/internal/errors"
	"xui-quota-bot/internal/models"
)

// Ledger maintains per-config and per-owner usage totals across creation,
// periodic refresh and soft deletion. Every mutation is a single-row
// read-modify-write; the panel's traffic feed is authoritative and cumulative,
// so last-writer-wins is acceptable between the periodic and on-demand
// refresh paths.
type Ledger struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// New creates a ledger over an open database handle.
func New(db *gorm.DB, logger *logrus.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

// RecordUsage overwrites a config's usage figure with the panel's cumulative
// total. It is an overwrite, never an increment: re-applying the same report
// is idempotent. Reports against a soft-deleted config are silently ignored,
// keeping its frozen figure intact.
func (l *Ledger) RecordUsage(configID uint, cumulativeTotalGB float64) error {
	cfg, err := l.fetch(configID)
	if err != nil {
		return err
	}
	if cfg.IsDeleted {
		l.logger.Debugf("Ignoring usage report for deleted config %d", configID)
		return nil
	}

	return l.db.Model(&database.Config{}).Where("id = ?", configID).
		Update("traffic_used_gb", models.RoundGB(cumulativeTotalGB)).Error
}

// SoftDelete marks a config deleted and freezes its final usage into the
// deleted_traffic_gb column. Deleted configs keep contributing their frozen
// figure to the owner's total forever; there is no hard-delete path.
// Deleting an already-deleted config is a no-op.
func (l *Ledger) SoftDelete(configID uint, finalUsageGB float64) error {
	cfg, err := l.fetch(configID)
	if err != nil {
		return err
	}
	if cfg.IsDeleted {
		return nil
	}

	return l.db.Model(&database.Config{}).Where("id = ?", configID).
		Updates(map[string]interface{}{
			"is_deleted":         true,
			"deleted_traffic_gb": models.RoundGB(finalUsageGB),
		}).Error
}

// Extend adds additionalLimitGB to the config's own cap and moves its expiry
// forward. The usage figure is never touched: a top-up raises the ceiling, it
// does not reset consumption.
func (l *Ledger) Extend(configID uint, newExpiryMs int64, additionalLimitGB float64) error {
	cfg, err := l.fetch(configID)
	if err != nil {
		return err
	}

	return l.db.Model(&database.Config{}).Where("id = ?", configID).
		Updates(map[string]interface{}{
			"traffic_limit_gb": cfg.TrafficLimitGB + additionalLimitGB,
			"expiry_time":      newExpiryMs,
		}).Error
}

// TotalUsage returns the owner's all-time consumption in GB: the live usage
// of active configs plus the frozen usage of deleted ones. Computed on every
// call so it can never go stale.
func (l *Ledger) TotalUsage(ownerID int64) (float64, error) {
	var active, deleted float64
	err := l.db.Model(&database.Config{}).
		Where("owner_id = ? AND is_deleted = ?", ownerID, false).
		Select("COALESCE(SUM(traffic_used_gb), 0)").Scan(&active).Error
	if err != nil {
		return 0, err
	}
	err = l.db.Model(&database.Config{}).
		Where("owner_id = ? AND is_deleted = ?", ownerID, true).
		Select("COALESCE(SUM(deleted_traffic_gb), 0)").Scan(&deleted).Error
	if err != nil {
		return 0, err
	}
	return models.RoundGB(active + deleted), nil
}

// Unlimited is returned by RemainingQuota for owners without a cap.
const Unlimited = -1

// RemainingQuota returns the GB an owner may still consume, clamped at zero
// when the total already exceeds the cap. Owners with a zero limit are
// unlimited and report Unlimited.
func (l *Ledger) RemainingQuota(ownerID int64) (float64, error) {
	var owner database.Owner
	if err := l.db.First(&owner, "id = ?", ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &apperrors.OwnerNotFoundError{OwnerID: ownerID}
		}
		return 0, err
	}
	if owner.TrafficLimitGB == 0 {
		return Unlimited, nil
	}

	used, err := l.TotalUsage(ownerID)
	if err != nil {
		return 0, err
	}
	if remaining := owner.TrafficLimitGB - used; remaining > 0 {
		return models.RoundGB(remaining), nil
	}
	return 0, nil
}

func (l *Ledger) fetch(configID uint) (*database.Config, error) {
	var cfg database.Config
	if err := l.db.First(&cfg, configID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.ConfigNotFoundError{ConfigID: configID}
		}
		return nil, err
	}
	return &cfg, nil
}
