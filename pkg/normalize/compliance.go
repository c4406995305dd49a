package normalize

import (
	"encoding/json"

	"github.com/user/scanhub/pkg/model"
)

type complianceReport struct {
	Controls []complianceControl `json:"controls"`
}

type complianceControl struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Status      string `json:"status"` // pass | fail | skip
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
}

// Compliance converts a posture-service control report. Only failed
// controls become records; controls carry no code location.
func Compliance(payload []byte, tool model.ToolKind) ([]model.Record, error) {
	var doc complianceReport
	if err := json.Unmarshal(payload, &doc); err != nil {
		// Some revisions of the posture service return the bare list.
		return Generic(payload, tool)
	}

	var out []model.Record
	for _, c := range doc.Controls {
		if c.Status == "pass" || c.Status == "skip" {
			continue
		}
		rec := model.Record{
			ID:       model.DeriveID(c.ID, "", 0, c.Description),
			Tool:     tool,
			RuleID:   c.ID,
			Title:    c.Title,
			Message:  c.Description,
			Severity: model.NormalizeSeverity(c.Severity),
		}
		if c.Reference != "" {
			rec.Location = &model.Location{URL: c.Reference}
		}
		if raw, err := json.Marshal(c); err == nil {
			rec.Raw = raw
		}
		out = append(out, rec)
	}
	return out, nil
}
