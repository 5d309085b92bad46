package insight

import "time"

const AnalysisDaily = "DAILY_INSIGHT"

// HistoryEntry is an append-only record of a successfully generated insight.
type HistoryEntry struct {
	Code         string    `json:"code"`
	GeneratedAt  time.Time `json:"generated_at"`
	Text         string    `json:"text"`
	AnalysisType string    `json:"analysis_type"`
	Model        string    `json:"model"`
}
