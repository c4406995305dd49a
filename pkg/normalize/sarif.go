package normalize

import (
	"encoding/json"

	"github.com/user/scanhub/pkg/model"
)

// Minimal SARIF shapes: only the fields the normalizer reads.
type sarifLog struct {
	Runs []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name  string      `json:"name"`
	Rules []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string `json:"id"`
	ShortDescription struct {
		Text string `json:"text"`
	} `json:"shortDescription"`
	DefaultConfiguration struct {
		Level string `json:"level"`
	} `json:"defaultConfiguration"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	RuleIndex *int            `json:"ruleIndex"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations"`
	// properties is an open bag; severity may hide in it under a couple
	// of conventional keys.
	Properties map[string]any `json:"properties"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation struct {
		ArtifactLocation struct {
			URI string `json:"uri"`
		} `json:"artifactLocation"`
		Region struct {
			StartLine   int `json:"startLine"`
			StartColumn int `json:"startColumn"`
			Snippet     struct {
				Text string `json:"text"`
			} `json:"snippet"`
		} `json:"region"`
	} `json:"physicalLocation"`
}

// IsStructuredReport reports whether the payload carries the structured
// security-report shape (a non-empty "runs" list whose entries hold a
// "results" list). Anything else falls through to the generic path.
func IsStructuredReport(payload []byte) bool {
	var probe struct {
		Runs []struct {
			Results json.RawMessage `json:"results"`
		} `json:"runs"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return false
	}
	return len(probe.Runs) > 0
}

// StructuredReport converts a structured security report into canonical
// records. Rule metadata is cross-referenced from the rule table embedded
// in the same payload; severity resolves from the first of result level,
// result properties, matched rule's configured level.
func StructuredReport(payload []byte, tool model.ToolKind) ([]model.Record, error) {
	var doc sarifLog
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}

	var out []model.Record
	for _, run := range doc.Runs {
		rules := indexRules(run.Tool.Driver.Rules)
		for _, res := range run.Results {
			rule := lookupRule(run.Tool.Driver.Rules, rules, res)

			title := res.RuleID
			if rule != nil && rule.ShortDescription.Text != "" {
				title = rule.ShortDescription.Text
			}

			rec := model.Record{
				Tool:     tool,
				RuleID:   res.RuleID,
				Title:    title,
				Message:  res.Message.Text,
				Severity: resolveSarifSeverity(res, rule),
			}

			var file string
			var line int
			if len(res.Locations) > 0 {
				phys := res.Locations[0].PhysicalLocation
				file = phys.ArtifactLocation.URI
				line = phys.Region.StartLine
				rec.Location = &model.Location{
					File:    file,
					Line:    line,
					Column:  phys.Region.StartColumn,
					Snippet: phys.Region.Snippet.Text,
				}
			}

			rec.ID = model.DeriveID(res.RuleID, file, line, res.Message.Text)
			if raw, err := json.Marshal(res); err == nil {
				rec.Raw = raw
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func indexRules(rules []sarifRule) map[string]int {
	idx := make(map[string]int, len(rules))
	for i, r := range rules {
		idx[r.ID] = i
	}
	return idx
}

func lookupRule(rules []sarifRule, byID map[string]int, res sarifResult) *sarifRule {
	if res.RuleIndex != nil && *res.RuleIndex >= 0 && *res.RuleIndex < len(rules) {
		return &rules[*res.RuleIndex]
	}
	if i, ok := byID[res.RuleID]; ok {
		return &rules[i]
	}
	return nil
}

func resolveSarifSeverity(res sarifResult, rule *sarifRule) model.Severity {
	if res.Level != "" {
		return model.NormalizeSeverity(res.Level)
	}
	if sev := severityFromProperties(res.Properties); sev != model.SevUnknown {
		return sev
	}
	if rule != nil && rule.DefaultConfiguration.Level != "" {
		return model.NormalizeSeverity(rule.DefaultConfiguration.Level)
	}
	return model.SevUnknown
}

// severityFromProperties checks the conventional property keys: a plain
// "severity" string or a numeric CVSS-style "security-severity" score.
func severityFromProperties(props map[string]any) model.Severity {
	if props == nil {
		return model.SevUnknown
	}
	if s, ok := props["severity"].(string); ok && s != "" {
		return model.NormalizeSeverity(s)
	}
	switch v := props["security-severity"].(type) {
	case float64:
		return severityFromScore(v)
	case string:
		var f float64
		if err := json.Unmarshal([]byte(v), &f); err == nil {
			return severityFromScore(f)
		}
	}
	return model.SevUnknown
}

func severityFromScore(score float64) model.Severity {
	switch {
	case score >= 9.0:
		return model.SevCritical
	case score >= 7.0:
		return model.SevHigh
	case score >= 4.0:
		return model.SevMedium
	case score > 0:
		return model.SevLow
	default:
		return model.SevUnknown
	}
}
