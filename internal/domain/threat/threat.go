package threat

import "strings"

type Verdict string

const (
	VerdictSafe     Verdict = "SAFE"
	VerdictMalware  Verdict = "MALWARE"
	VerdictPhishing Verdict = "PHISHING"
	VerdictUnknown  Verdict = "UNKNOWN"
)

// ParseVerdict maps free-form classifier output to a Verdict.
func ParseVerdict(s string) Verdict {
	switch v := Verdict(strings.ToUpper(strings.TrimSpace(s))); v {
	case VerdictSafe, VerdictMalware, VerdictPhishing:
		return v
	default:
		return VerdictUnknown
	}
}

// Blocks reports whether the verdict must stop link creation.
func (v Verdict) Blocks() bool {
	return v == VerdictMalware || v == VerdictPhishing
}
