package enrich

import (
	_ "embed"
)

//go:embed prompts/enrich_prompt.md
var enrichPrompt string

// GetEnrichPrompt returns the instruction block prepended to the
// sanitized findings batch.
func GetEnrichPrompt() string {
	return enrichPrompt
}
