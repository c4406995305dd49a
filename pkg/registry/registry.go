package registry

import (
	"fmt"
	"regexp"

	"github.com/user/scanhub/pkg/model"
	"github.com/user/scanhub/pkg/normalize"
)

// NormalizeFunc converts one raw result payload into canonical records.
type NormalizeFunc func(payload []byte, tool model.ToolKind) ([]model.Record, error)

// Descriptor binds a tool kind to its remote endpoints, its completion
// marker pattern and its normalizer. Descriptors are immutable after
// startup; one completion regex per tool lives here and nowhere else.
type Descriptor struct {
	Tool              model.ToolKind
	StartPath         string
	LogsPath          string
	ResultPath        string
	CompletionPattern *regexp.Regexp
	Normalize         NormalizeFunc
}

var descriptors = map[model.ToolKind]Descriptor{
	model.ToolScanner: {
		Tool:              model.ToolScanner,
		StartPath:         "/api/scanner/start",
		LogsPath:          "/api/scanner/logs",
		ResultPath:        "/api/scanner/result",
		CompletionPattern: regexp.MustCompile(`scanner-results-[\w.-]+\.json`),
		Normalize:         scannerNormalize,
	},
	model.ToolCompliance: {
		Tool:              model.ToolCompliance,
		StartPath:         "/api/compliance/start",
		LogsPath:          "/api/compliance/logs",
		ResultPath:        "/api/compliance/result",
		CompletionPattern: regexp.MustCompile(`compliance-report-[\w.-]+\.json`),
		Normalize:         normalize.Compliance,
	},
	model.ToolPipeline: {
		Tool:              model.ToolPipeline,
		StartPath:         "/api/pipeline/start",
		LogsPath:          "/api/pipeline/logs",
		ResultPath:        "/api/pipeline/result",
		CompletionPattern: regexp.MustCompile(`pipeline-audit-[\w.-]+\.json`),
		Normalize:         normalize.Pipeline,
	},
}

// scannerNormalize prefers the structured-report path when the payload
// carries that shape and degrades to the generic one otherwise.
func scannerNormalize(payload []byte, tool model.ToolKind) ([]model.Record, error) {
	if normalize.IsStructuredReport(payload) {
		return normalize.StructuredReport(payload, tool)
	}
	return normalize.Generic(payload, tool)
}

// ForTool resolves the descriptor for a tool kind. An unknown kind is a
// programming error, not a runtime condition, so it panics.
func ForTool(kind model.ToolKind) Descriptor {
	d, ok := descriptors[kind]
	if !ok {
		panic(fmt.Sprintf("registry: unknown tool kind %q", kind))
	}
	return d
}

// Tools lists the registered tool kinds in a fixed order.
func Tools() []model.ToolKind {
	return []model.ToolKind{model.ToolScanner, model.ToolCompliance, model.ToolPipeline}
}

// Validate checks the descriptor table invariants: every tool has
// endpoints, a normalizer, and a completion pattern distinct from every
// other tool's. A violation is a configuration error.
func Validate() error {
	seen := make(map[string]model.ToolKind)
	for _, kind := range Tools() {
		d := descriptors[kind]
		if d.StartPath == "" || d.LogsPath == "" || d.ResultPath == "" {
			return fmt.Errorf("registry: tool %q has incomplete endpoints", kind)
		}
		if d.Normalize == nil {
			return fmt.Errorf("registry: tool %q has no normalizer", kind)
		}
		if d.CompletionPattern == nil {
			return fmt.Errorf("registry: tool %q has no completion pattern", kind)
		}
		pat := d.CompletionPattern.String()
		if other, dup := seen[pat]; dup {
			return fmt.Errorf("registry: tools %q and %q share completion pattern %q", other, kind, pat)
		}
		seen[pat] = kind
	}
	return nil
}
