package click

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const (
	DirectReferrer = "direct"
	Unknown        = "unknown"

	ipHashLength = 16
)

type Device string

const (
	DevicePC     Device = "PC"
	DeviceMobile Device = "Mobile"
	DeviceTablet Device = "Tablet"
)

type Category string

const (
	CategoryCountry Category = "COUNTRY"
	CategoryDevice  Category = "DEVICE"
)

// Raw is what the redirect path knows about a visitor before aggregation.
type Raw struct {
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
	Country   string    `json:"country,omitempty"`
}

// Event is one persisted click. Events are append-only.
type Event struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
	IPHash    string    `json:"ip_hash"`
	UserAgent string    `json:"user_agent"`
	Referrer  string    `json:"referrer"`
	Country   string    `json:"country"`
	Device    Device    `json:"device"`
}

// Counter is the additive tally for one (code, category, value) tuple.
type Counter struct {
	Code        string
	Category    Category
	Value       string
	Count       int64
	LastUpdated time.Time
}

// HashIP returns a truncated SHA-256 hex digest of the address. Missing
// addresses hash to the literal "unknown".
func HashIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" || ip == Unknown {
		return Unknown
	}

	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])[:ipHashLength]
}

// ClassifyDevice maps a user agent to a device type by case-insensitive substring match.
func ClassifyDevice(userAgent string) Device {
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "mobile"), strings.Contains(ua, "android"), strings.Contains(ua, "iphone"):
		return DeviceMobile
	case strings.Contains(ua, "tablet"), strings.Contains(ua, "ipad"):
		return DeviceTablet
	default:
		return DevicePC
	}
}

// NormalizeReferrer returns the referrer or the "direct" sentinel when absent.
func NormalizeReferrer(referrer string) string {
	referrer = strings.TrimSpace(referrer)
	if referrer == "" {
		return DirectReferrer
	}
	return referrer
}

// NormalizeCountry upper-cases a country code and falls back to "unknown".
func NormalizeCountry(country string) string {
	country = strings.TrimSpace(country)
	if country == "" || strings.EqualFold(country, Unknown) {
		return Unknown
	}
	return strings.ToUpper(country)
}

// NormalizeUserAgent falls back to "unknown" for an empty user agent.
func NormalizeUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return Unknown
	}
	return userAgent
}
