package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"xui-quota-bot/internal/database"
	"xui-quota-bot/internal/ledger"
)

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░", ProgressBar(0))
	assert.Equal(t, "▓▓▓▓▓░░░░░", ProgressBar(50))
	assert.Equal(t, "▓▓▓▓▓▓▓▓▓▓", ProgressBar(100))
	assert.Equal(t, "▓▓▓▓▓▓▓▓▓▓", ProgressBar(140))
	assert.Equal(t, "░░░░░░░░░░", ProgressBar(-5))
}

func TestFormatLimit(t *testing.T) {
	assert.Equal(t, "∞", FormatLimit(0))
	assert.Equal(t, "50.00 GB", FormatLimit(50))
}

func TestFormatExpiry(t *testing.T) {
	assert.Equal(t, "never", FormatExpiry(0))

	expected := time.Unix(1705276800, 0).Format("2006-01-02")
	assert.Equal(t, expected, FormatExpiry(1705276800000))
}

func TestFormatOwnerUsageReport_Unlimited(t *testing.T) {
	owner := &database.Owner{ID: 1, TrafficLimitGB: 0}

	report := FormatOwnerUsageReport(owner, nil, 12.5, ledger.Unlimited)
	assert.Contains(t, report, "Used: 12.50 GB")
	assert.Contains(t, report, "Limit: ∞")
	assert.Contains(t, report, "Remaining: ∞")
}

func TestFormatOwnerUsageReport_MarksDeletedConfigs(t *testing.T) {
	owner := &database.Owner{ID: 1, TrafficLimitGB: 100}
	configs := []database.Config{
		{ClientEmail: "alice-main", TrafficUsedGB: 10},
		{ClientEmail: "alice-old", IsDeleted: true, DeletedTrafficGB: 25},
	}

	report := FormatOwnerUsageReport(owner, configs, 35, 65)
	assert.Contains(t, report, "alice-main: 10.00 GB")
	assert.Contains(t, report, "alice-old (deleted): 25.00 GB")
	assert.Contains(t, report, "Remaining: 65.00 GB")
}

func TestFormatConfigDetails_MarksExpired(t *testing.T) {
	past := time.Now().AddDate(0, 0, -1).UnixMilli()
	expired := &database.Config{ClientEmail: "alice-old", ExpiryTime: past}
	assert.Contains(t, FormatConfigDetails(expired, "", ""), "(expired)")

	future := time.Now().AddDate(0, 0, 30).UnixMilli()
	active := &database.Config{ClientEmail: "alice-main", ExpiryTime: future}
	assert.NotContains(t, FormatConfigDetails(active, "", ""), "(expired)")

	never := &database.Config{ClientEmail: "alice-forever"}
	assert.Contains(t, FormatConfigDetails(never, "", ""), "Expires: never")
}

func TestFormatNearLimitReport_Empty(t *testing.T) {
	report := FormatNearLimitReport(nil)
	assert.Equal(t, "No users are near their traffic limit.", report)
}

func TestFormatNearLimitReport_ListsOwners(t *testing.T) {
	usages := []ledger.OwnerUsage{
		{OwnerID: 100, UsedGB: 80, LimitGB: 100, Percent: 80},
	}

	report := FormatNearLimitReport(usages)
	assert.Contains(t, report, "100")
	assert.Contains(t, report, "80.0")
}
