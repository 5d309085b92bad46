package stats

import (
	"net/url"
	"strings"

	"link-insights/internal/domain/click"
)

// Report is the merged view of the trailing click window and the category counters.
type Report struct {
	Code             string           `json:"code"`
	Clicks           int64            `json:"clicks"`
	WindowClicks     int              `json:"windowClicks"`
	Period           string           `json:"period"`
	ClicksByHour     map[int]int      `json:"clicksByHour"`
	ClicksByDay      map[string]int   `json:"clicksByDay"`
	ClicksByReferrer map[string]int   `json:"clicksByReferrer"`
	CountryStats     map[string]int64 `json:"countryStats"`
	DeviceStats      map[string]int64 `json:"deviceStats"`
	// PeakHour is nil when the window holds no events.
	PeakHour    *int   `json:"peakHour"`
	TopReferrer string `json:"topReferrer,omitempty"`
}

// ReferrerHost buckets a referrer by host: "direct" for the sentinel or an empty
// value, "unknown" when the value cannot be parsed or carries no host.
func ReferrerHost(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" || referrer == click.DirectReferrer {
		return click.DirectReferrer
	}

	u, err := url.Parse(referrer)
	if err != nil || u.Hostname() == "" {
		return click.Unknown
	}

	return strings.ToLower(u.Hostname())
}
