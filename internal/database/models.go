package database

import "time"

// Owner roles. Sudo is the bootstrap operator configured at startup; admins
// are promoted through the bot.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
	RoleSudo  = "sudo"
)

// Owner is a bot user who owns panel client accounts. The primary key is the
// Telegram ID. TrafficLimitGB of 0 means unlimited.
type Owner struct {
	ID             int64  `gorm:"primaryKey"`
	Role           string `gorm:"default:user"`
	TrafficLimitGB float64
	IsBlocked      bool `gorm:"default:false"`
	CreatedAt      time.Time
}

// IsAdmin reports whether the owner holds admin or sudo rights.
func (o *Owner) IsAdmin() bool {
	return o.Role == RoleAdmin || o.Role == RoleSudo
}

// Config is one panel client account owned by an Owner. Rows are never
// hard-deleted: deletion flips IsDeleted and freezes the last known usage in
// DeletedTrafficGB so the owner's historical consumption survives. Exactly
// one of TrafficUsedGB/DeletedTrafficGB is live at a time; Usage() is the
// only accessor callers should read.
type Config struct {
	ID               uint  `gorm:"primaryKey;autoIncrement"`
	OwnerID          int64 `gorm:"index"`
	ClientEmail      string
	InboundID        int
	TrafficLimitGB   float64
	TrafficUsedGB    float64
	ExpiryTime       int64 // epoch milliseconds, 0 = never
	IsDeleted        bool  `gorm:"default:false;index"`
	DeletedTrafficGB float64
	CreatedAt        time.Time
}

// Usage returns the config's contribution to its owner's total: the live
// figure while active, the frozen figure after deletion.
func (c *Config) Usage() float64 {
	if c.IsDeleted {
		return c.DeletedTrafficGB
	}
	return c.TrafficUsedGB
}

// IsExpired reports whether the config's expiry time has passed.
func (c *Config) IsExpired(now time.Time) bool {
	return c.ExpiryTime > 0 && now.UnixMilli() > c.ExpiryTime
}
