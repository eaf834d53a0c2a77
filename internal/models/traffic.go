package models

import "math"

const bytesInGB = 1 << 30

// TrafficInfo is a per-client traffic report derived from panel counters.
type TrafficInfo struct {
	Email      string
	InboundID  int
	Enable     bool
	UpBytes    int64
	DownBytes  int64
	UploadGB   float64
	DownloadGB float64
	TotalGB    float64
}

// NewTrafficInfo aggregates raw byte counters into a report. The panel's
// counters are cumulative, so the resulting TotalGB is too.
func NewTrafficInfo(email string, inboundID int, enable bool, up, down int64) TrafficInfo {
	return TrafficInfo{
		Email:      email,
		InboundID:  inboundID,
		Enable:     enable,
		UpBytes:    up,
		DownBytes:  down,
		UploadGB:   RoundGB(float64(up) / bytesInGB),
		DownloadGB: RoundGB(float64(down) / bytesInGB),
		TotalGB:    RoundGB(float64(up+down) / bytesInGB),
	}
}

// RoundGB rounds a gigabyte figure to three decimals, matching the precision
// the ledger stores and reports.
func RoundGB(gb float64) float64 {
	return math.Round(gb*1000) / 1000
}
