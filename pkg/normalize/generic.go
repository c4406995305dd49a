package normalize

import (
	"encoding/json"

	"github.com/user/scanhub/pkg/model"
)

// PlaceholderRule marks records whose source carried no rule identifier.
const PlaceholderRule = "unclassified"

type genericEntry struct {
	ID          string `json:"id"`
	RuleID      string `json:"ruleId"`
	RuleIDSnake string `json:"rule_id"`
	CheckID     string `json:"check_id"`
	Title       string `json:"title"`
	Name        string `json:"name"`
	Message     string `json:"message"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Level       string `json:"level"`
	File        string `json:"file"`
	Path        string `json:"path"`
	Line        int    `json:"line"`
	Column      int    `json:"column"`
	URL         string `json:"url"`
	Snippet     string `json:"snippet"`
}

// Generic converts a flat list of loosely-shaped records best-effort.
// Unknown fields fall back to defaults; an empty list is an empty record
// set, not an error.
func Generic(payload []byte, tool model.ToolKind) ([]model.Record, error) {
	var entries []genericEntry
	if err := json.Unmarshal(payload, &entries); err != nil {
		// Some tools wrap the list in {"results": [...]}.
		var wrapped struct {
			Results []genericEntry `json:"results"`
		}
		if err2 := json.Unmarshal(payload, &wrapped); err2 != nil {
			return nil, err
		}
		entries = wrapped.Results
	}

	var rawEntries []json.RawMessage
	if err := json.Unmarshal(payload, &rawEntries); err != nil {
		rawEntries = nil
	}

	out := make([]model.Record, 0, len(entries))
	for i, e := range entries {
		rec := genericRecord(e, tool)
		if rawEntries != nil && i < len(rawEntries) {
			rec.Raw = rawEntries[i]
		}
		out = append(out, rec)
	}
	return out, nil
}

func genericRecord(e genericEntry, tool model.ToolKind) model.Record {
	ruleID := firstNonEmpty(e.RuleID, e.RuleIDSnake, e.CheckID)
	if ruleID == "" {
		ruleID = PlaceholderRule
	}
	message := firstNonEmpty(e.Message, e.Description)
	title := firstNonEmpty(e.Title, e.Name, ruleID)
	file := firstNonEmpty(e.File, e.Path)

	rec := model.Record{
		ID:       e.ID,
		Tool:     tool,
		RuleID:   ruleID,
		Title:    title,
		Message:  message,
		Severity: model.NormalizeSeverity(firstNonEmpty(e.Severity, e.Level)),
	}
	if rec.ID == "" {
		rec.ID = model.DeriveID(ruleID, file, e.Line, message)
	}
	if file != "" || e.URL != "" {
		rec.Location = &model.Location{
			File:    file,
			Line:    e.Line,
			Column:  e.Column,
			URL:     e.URL,
			Snippet: e.Snippet,
		}
	}
	return rec
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
