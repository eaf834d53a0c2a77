package ledger

import (
	"math"

	"xui-quota-bot/internal/database"
)

// OwnerUsage describes one owner's standing against their cap.
type OwnerUsage struct {
	OwnerID int64
	UsedGB  float64
	LimitGB float64
	Percent float64
}

// UsersNearLimit returns every non-blocked owner with a positive cap whose
// consumption has reached thresholdPercent of it. The boundary is inclusive:
// an owner at exactly the threshold is included. Unlimited (zero-cap) owners
// are never reported, whatever their usage. The result is unordered; display
// ordering is the caller's concern.
func (l *Ledger) UsersNearLimit(thresholdPercent float64) ([]OwnerUsage, error) {
	var owners []database.Owner
	if err := l.db.Find(&owners).Error; err != nil {
		return nil, err
	}

	var near []OwnerUsage
	for _, owner := range owners {
		if owner.IsBlocked || owner.TrafficLimitGB <= 0 {
			continue
		}

		used, err := l.TotalUsage(owner.ID)
		if err != nil {
			return nil, err
		}

		percent := used / owner.TrafficLimitGB * 100
		if percent >= thresholdPercent {
			near = append(near, OwnerUsage{
				OwnerID: owner.ID,
				UsedGB:  used,
				LimitGB: owner.TrafficLimitGB,
				Percent: math.Round(percent*10) / 10,
			})
		}
	}
	return near, nil
}
