package monitor

import "time"

type Kind string

const (
	KindMaliciousURL Kind = "MALICIOUS_URL"
	KindPerformance  Kind = "PERFORMANCE"
	KindStatsView    Kind = "STATS_VIEW"
)

// Metric is one operational event shown on the admin summary.
type Metric struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"kind"`
	Timestamp time.Time     `json:"timestamp"`
	Code      string        `json:"code,omitempty"`
	URL       string        `json:"url,omitempty"`
	Operation string        `json:"operation,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
	Detail    string        `json:"detail,omitempty"`
}

type Summary struct {
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	MaliciousCount int       `json:"maliciousCount"`
	MaliciousList  []Metric  `json:"maliciousList"`
	SlowRequests   []Metric  `json:"slowRequests"`
	StatsViewCount int       `json:"statsViewCount"`
}
