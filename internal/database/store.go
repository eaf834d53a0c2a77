package database

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "xui-quota-bot/internal/errors"
)

// Store provides entity CRUD over the owner and config tables. All usage and
// quota bookkeeping lives in the ledger package; the store only moves rows.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store over an open database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// EnsureOwner inserts an owner row if it does not exist yet. Existing rows
// keep their role, limit and blocked flag.
func (s *Store) EnsureOwner(id int64, role string, trafficLimitGB float64) error {
	owner := Owner{
		ID:             id,
		Role:           role,
		TrafficLimitGB: trafficLimitGB,
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&owner).Error
}

// GetOwner returns the owner with the given Telegram ID.
func (s *Store) GetOwner(id int64) (*Owner, error) {
	var owner Owner
	if err := s.db.First(&owner, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.OwnerNotFoundError{OwnerID: id}
		}
		return nil, err
	}
	return &owner, nil
}

// ListOwners returns all owner rows.
func (s *Store) ListOwners() ([]Owner, error) {
	var owners []Owner
	if err := s.db.Find(&owners).Error; err != nil {
		return nil, err
	}
	return owners, nil
}

// SetOwnerBlocked blocks or unblocks an owner.
func (s *Store) SetOwnerBlocked(id int64, blocked bool) error {
	return s.db.Model(&Owner{}).Where("id = ?", id).Update("is_blocked", blocked).Error
}

// SetOwnerLimit replaces an owner's traffic cap. Zero means unlimited.
func (s *Store) SetOwnerLimit(id int64, limitGB float64) error {
	return s.db.Model(&Owner{}).Where("id = ?", id).Update("traffic_limit_gb", limitGB).Error
}

// SetOwnerRole changes an owner's role.
func (s *Store) SetOwnerRole(id int64, role string) error {
	return s.db.Model(&Owner{}).Where("id = ?", id).Update("role", role).Error
}

// CreateConfig records a freshly provisioned panel client for an owner.
func (s *Store) CreateConfig(cfg *Config) error {
	return s.db.Create(cfg).Error
}

// GetConfig returns the config with the given surrogate id.
func (s *Store) GetConfig(id uint) (*Config, error) {
	var cfg Config
	if err := s.db.First(&cfg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.ConfigNotFoundError{ConfigID: id}
		}
		return nil, err
	}
	return &cfg, nil
}

// GetConfigByEmail returns the config whose panel client email matches.
func (s *Store) GetConfigByEmail(email string) (*Config, error) {
	var cfg Config
	if err := s.db.First(&cfg, "client_email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperrors.ConfigNotFoundError{Email: email}
		}
		return nil, err
	}
	return &cfg, nil
}

// OwnerConfigs returns an owner's configs, optionally including soft-deleted
// ones.
func (s *Store) OwnerConfigs(ownerID int64, includeDeleted bool) ([]Config, error) {
	q := s.db.Where("owner_id = ?", ownerID)
	if !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	var configs []Config
	if err := q.Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// ActiveConfigs returns every non-deleted config; the scheduler walks this
// list on each refresh.
func (s *Store) ActiveConfigs() ([]Config, error) {
	var configs []Config
	if err := s.db.Where("is_deleted = ?", false).Find(&configs).Error; err != nil {
		return nil, err
	}
	return configs, nil
}

// OverallStats summarizes the whole installation for the admin panel.
type OverallStats struct {
	TotalOwners    int64
	ActiveConfigs  int64
	TotalTrafficGB float64
}

// Stats computes owner count, active config count and the grand usage total
// (active usage plus frozen deleted usage).
func (s *Store) Stats() (*OverallStats, error) {
	var stats OverallStats
	if err := s.db.Model(&Owner{}).Count(&stats.TotalOwners).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&Config{}).Where("is_deleted = ?", false).Count(&stats.ActiveConfigs).Error; err != nil {
		return nil, err
	}

	var active, deleted float64
	if err := s.db.Model(&Config{}).Where("is_deleted = ?", false).
		Select("COALESCE(SUM(traffic_used_gb), 0)").Scan(&active).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&Config{}).Where("is_deleted = ?", true).
		Select("COALESCE(SUM(deleted_traffic_gb), 0)").Scan(&deleted).Error; err != nil {
		return nil, err
	}
	stats.TotalTrafficGB = active + deleted
	return &stats, nil
}
