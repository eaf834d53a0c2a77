package permissions

import (
	"github.com/sirupsen/logrus"

	"xui-quota-bot/internal/database"
)

// AccessType represents the access level of a user
type AccessType int

const (
	// None represents no access
	None AccessType = iota
	// User represents a registered, unblocked user
	User
	// Admin represents admin or sudo access
	Admin
)

// PermissionController resolves access levels from the owner store. The sudo
// admin configured at startup always has admin access, even before their
// owner row exists.
type PermissionController struct {
	sudoAdminID int64
	store       *database.Store
	logger      *logrus.Logger
}

// NewController creates a new permission controller
func NewController(sudoAdminID int64, store *database.Store, logger *logrus.Logger) *PermissionController {
	logger.Infof("Initialized permission controller, sudo admin %d", sudoAdminID)

	return &PermissionController{
		sudoAdminID: sudoAdminID,
		store:       store,
		logger:      logger,
	}
}

// GetAccessType determines the access type of a user
func (p *PermissionController) GetAccessType(userID int64) AccessType {
	if userID == p.sudoAdminID {
		return Admin
	}

	owner, err := p.store.GetOwner(userID)
	if err != nil {
		p.logger.Debugf("User %d has no owner record", userID)
		return None
	}
	if owner.IsBlocked {
		return None
	}
	if owner.IsAdmin() {
		return Admin
	}
	return User
}

// IsAdmin checks if a user has admin access
func (p *PermissionController) IsAdmin(userID int64) bool {
	return p.GetAccessType(userID) == Admin
}
