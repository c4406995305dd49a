package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// ToolKind identifies which external tool produced a record.
type ToolKind string

const (
	ToolScanner    ToolKind = "scanner"
	ToolCompliance ToolKind = "compliance"
	ToolPipeline   ToolKind = "pipeline"
)

// Severity is the normalized severity scale shared by all tools.
type Severity string

const (
	SevCritical Severity = "critical"
	SevHigh     Severity = "high"
	SevMedium   Severity = "medium"
	SevLow      Severity = "low"
	SevInfo     Severity = "info"
	SevUnknown  Severity = "unknown"
)

// Location points at the code a record refers to. Tools without code
// locality (compliance controls) leave it nil.
type Location struct {
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Enrichment holds the AI-generated annotation attached after normalization.
type Enrichment struct {
	Explanation string `json:"explanation"`
	Remediation string `json:"remediation"`
}

// Record represents one normalized finding/observation from any tool.
// ID is the merge key across the whole system.
type Record struct {
	ID         string          `json:"id"`
	Tool       ToolKind        `json:"tool"`
	RuleID     string          `json:"rule_id"`
	Title      string          `json:"title"`
	Message    string          `json:"message"`
	Severity   Severity        `json:"severity"`
	Location   *Location       `json:"location,omitempty"`
	Enrichment *Enrichment     `json:"enrichment,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// idMessageCap bounds the message prefix that feeds the identity hash so
// that trailing noise in long messages does not change the id.
const idMessageCap = 64

// DeriveID builds a stable identity for sources that carry no natural id.
// The same (rule, file, line, message) input always hashes to the same id.
func DeriveID(ruleID, file string, line int, message string) string {
	if len(message) > idMessageCap {
		message = message[:idMessageCap]
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", ruleID, file, line, message)))
	return hex.EncodeToString(h[:])[:16]
}

// NormalizeSeverity maps the source vocabularies of all supported tools
// onto the shared scale. Unrecognized or empty input becomes SevUnknown.
func NormalizeSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "blocker":
		return SevCritical
	case "high", "error":
		return SevHigh
	case "medium", "moderate", "warning", "warn":
		return SevMedium
	case "low", "note", "info", "informational":
		return SevLow
	default:
		return SevUnknown
	}
}

// SeverityRank orders severities for display sorting, most severe first.
func SeverityRank(s Severity) int {
	switch s {
	case SevCritical:
		return 0
	case SevHigh:
		return 1
	case SevMedium:
		return 2
	case SevLow:
		return 3
	case SevInfo:
		return 4
	default:
		return 5
	}
}

// ValidSeverity reports whether s already is one of the six enum values.
func ValidSeverity(s Severity) bool {
	switch s {
	case SevCritical, SevHigh, SevMedium, SevLow, SevInfo, SevUnknown:
		return true
	}
	return false
}
