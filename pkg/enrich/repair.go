package enrich

import (
	"encoding/json"
	"strings"
)

// Row is one enrichment tuple extracted from the completion response.
type Row struct {
	ID          string `json:"id"`
	Explanation string `json:"explanation"`
	Remediation string `json:"remediation"`
	Severity    string `json:"severity,omitempty"`
}

// ParseRows turns free-form model output into enrichment rows. Ordered
// fallback pipeline: strip fences, recursive decode, truncation repair.
// The terminal outcome is "no rows" -- never an error, the caller keeps
// the original records.
func ParseRows(text string) []Row {
	s := StripFences(text)
	if rows, ok := decodeRows(s); ok {
		return rows
	}
	if rows, ok := decodeRows(RepairTruncated(s)); ok {
		return rows
	}
	return nil
}

// StripFences removes surrounding markdown code-fence markup, including
// a language tag on the opening fence.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	if j := strings.LastIndex(s, "```"); j >= 0 {
		s = s[:j]
	}
	return strings.TrimSpace(s)
}

// decodeRows attempts up to three rounds of recursive JSON decoding,
// handling a payload that has been JSON-string-encoded one or more times.
func decodeRows(s string) ([]Row, bool) {
	cur := s
	for i := 0; i < 3; i++ {
		var rows []Row
		if err := json.Unmarshal([]byte(cur), &rows); err == nil {
			return rows, true
		}
		var inner string
		if err := json.Unmarshal([]byte(cur), &inner); err == nil {
			cur = inner
			continue
		}
		break
	}
	return nil, false
}

// RepairTruncated salvages a JSON array cut off mid-stream. It scans from
// the first '[' tracking bracket and quote nesting and cuts at the last
// position where nesting returns to zero; if nesting never returns to
// zero it cuts at the last ']' or '}', strips a trailing comma, and
// closes the array.
func RepairTruncated(s string) string {
	start := strings.Index(s, "[")
	if start < 0 {
		return s
	}
	s = s[start:]

	depth := 0
	inString := false
	escaped := false
	lastBalanced := -1
	for i, r := range s {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '[', '{':
			if !inString {
				depth++
			}
		case ']', '}':
			if !inString {
				depth--
				if depth == 0 {
					lastBalanced = i
				}
			}
		}
	}

	if lastBalanced >= 0 {
		return s[:lastBalanced+1]
	}

	cut := strings.LastIndex(s, "]")
	if b := strings.LastIndex(s, "}"); b > cut {
		cut = b
	}
	if cut < 0 {
		return s
	}
	s = strings.TrimRight(s[:cut+1], " \t\n")
	s = strings.TrimSuffix(s, ",")
	if !strings.HasSuffix(s, "]") {
		s += "]"
	}
	return s
}
