package helpers

import (
	"fmt"
	"strings"
	"time"

	"xui-quota-bot/internal/constants"
	"xui-quota-bot/internal/database"
	"xui-quota-bot/internal/ledger"
)

const progressBarWidth = 10

// FormatGB formats a gigabyte value for display
func FormatGB(gb float64) string {
	return fmt.Sprintf("%.2f GB", gb)
}

// FormatLimit formats a traffic limit, treating zero as unlimited
func FormatLimit(limitGB float64) string {
	if limitGB == 0 {
		return "∞"
	}
	return FormatGB(limitGB)
}

// FormatExpiry formats an expiry timestamp in epoch milliseconds
func FormatExpiry(expiryMs int64) string {
	if expiryMs == 0 {
		return "never"
	}
	return time.Unix(expiryMs/1000, 0).Format(constants.DateFormat)
}

// ProgressBar renders a usage bar like ▓▓▓▓░░░░░░ for the given percent
func ProgressBar(percent float64) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * progressBarWidth)

	var sb strings.Builder
	for i := 0; i < progressBarWidth; i++ {
		if i < filled {
			sb.WriteString("▓")
		} else {
			sb.WriteString("░")
		}
	}
	return sb.String()
}

// FormatOwnerUsageReport formats an owner's traffic status message
func FormatOwnerUsageReport(owner *database.Owner, configs []database.Config, totalGB float64, remainingGB float64) string {
	var sb strings.Builder
	sb.WriteString("<b>Traffic Status</b>\n\n")
	sb.WriteString(fmt.Sprintf("Used: %s\n", FormatGB(totalGB)))
	sb.WriteString(fmt.Sprintf("Limit: %s\n", FormatLimit(owner.TrafficLimitGB)))

	if remainingGB == ledger.Unlimited {
		sb.WriteString("Remaining: ∞\n")
	} else {
		sb.WriteString(fmt.Sprintf("Remaining: %s\n", FormatGB(remainingGB)))
		if owner.TrafficLimitGB > 0 {
			percent := totalGB / owner.TrafficLimitGB * 100
			sb.WriteString(fmt.Sprintf("\n%s %.1f%%\n", ProgressBar(percent), percent))
		}
	}

	if len(configs) > 0 {
		sb.WriteString("\n<b>Configs:</b>\n")
		for _, cfg := range configs {
			marker := ""
			if cfg.IsDeleted {
				marker = " (deleted)"
			}
			sb.WriteString(fmt.Sprintf("\n- %s%s: %s", cfg.ClientEmail, marker, FormatGB(cfg.Usage())))
		}
	}

	return sb.String()
}

// FormatConfigDetails formats a single config's details for display
func FormatConfigDetails(cfg *database.Config, link string, subscriptionURL string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n\n", cfg.ClientEmail))
	sb.WriteString(fmt.Sprintf("Used: %s\n", FormatGB(cfg.Usage())))
	sb.WriteString(fmt.Sprintf("Limit: %s\n", FormatLimit(cfg.TrafficLimitGB)))
	if cfg.IsExpired(time.Now()) {
		sb.WriteString(fmt.Sprintf("Expires: %s (expired)\n", FormatExpiry(cfg.ExpiryTime)))
	} else {
		sb.WriteString(fmt.Sprintf("Expires: %s\n", FormatExpiry(cfg.ExpiryTime)))
	}

	if link != "" {
		sb.WriteString(fmt.Sprintf("\nConnection link:\n<code>%s</code>\n", link))
	}
	if subscriptionURL != "" {
		sb.WriteString(fmt.Sprintf("\nSubscription: %s\n", subscriptionURL))
	}

	return sb.String()
}

// FormatNearLimitReport formats the owners-near-limit message for administrators
func FormatNearLimitReport(usages []ledger.OwnerUsage) string {
	if len(usages) == 0 {
		return "No users are near their traffic limit."
	}

	var sb strings.Builder
	sb.WriteString("<b>Users Near Limit</b>\n<pre>\n")
	sb.WriteString("User ID      | Used   | Limit  | %\n")
	sb.WriteString("-------------|--------|--------|------\n")
	for _, usage := range usages {
		sb.WriteString(fmt.Sprintf("%-12d | %6.2f | %6.2f | %.1f\n", usage.OwnerID, usage.UsedGB, usage.LimitGB, usage.Percent))
	}
	sb.WriteString("</pre>")
	return sb.String()
}

// FormatOverallStats formats the overall statistics message for administrators
func FormatOverallStats(stats *database.OverallStats) string {
	var sb strings.Builder
	sb.WriteString("<b>Overall Statistics</b>\n\n")
	sb.WriteString(fmt.Sprintf("Users: %d\n", stats.TotalOwners))
	sb.WriteString(fmt.Sprintf("Active configs: %d\n", stats.ActiveConfigs))
	sb.WriteString(fmt.Sprintf("Total traffic: %s\n", FormatGB(stats.TotalTrafficGB)))
	return sb.String()
}
