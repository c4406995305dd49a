package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/user/scanhub/pkg/model"
)

// Rule ids for the pipeline-audit signals this normalizer derives itself.
const (
	RuleMutableImageTag = "pipeline/mutable-image-tag"
	RuleIgnoredFailure  = "pipeline/ignored-failure"
)

type pipelineAudit struct {
	Pipeline string          `json:"pipeline"`
	Stages   []pipelineStage `json:"stages"`
}

type pipelineStage struct {
	Name         string `json:"name"`
	Image        string `json:"image"`
	AllowFailure bool   `json:"allow_failure"`
	File         string `json:"file"`
	Line         int    `json:"line"`
}

// Pipeline inspects a CI/CD audit payload for domain-specific signals:
// stages pulling a mutable build-artifact tag and stages configured to
// ignore failures. Detection reads the nested stage fields directly
// rather than a generic schema.
func Pipeline(payload []byte, tool model.ToolKind) ([]model.Record, error) {
	var doc pipelineAudit
	if err := json.Unmarshal(payload, &doc); err != nil {
		return Generic(payload, tool)
	}

	var out []model.Record
	for _, st := range doc.Stages {
		raw, _ := json.Marshal(st)

		if tag, mutable := mutableTag(st.Image); mutable {
			msg := fmt.Sprintf("stage %q pulls image %q by mutable tag %q", st.Name, st.Image, tag)
			out = append(out, model.Record{
				ID:       model.DeriveID(RuleMutableImageTag, st.File, st.Line, msg),
				Tool:     tool,
				RuleID:   RuleMutableImageTag,
				Title:    "Mutable image tag",
				Message:  msg,
				Severity: model.SevMedium,
				Location: stageLocation(st),
				Raw:      raw,
			})
		}

		if st.AllowFailure {
			msg := fmt.Sprintf("stage %q is configured to ignore failures", st.Name)
			out = append(out, model.Record{
				ID:       model.DeriveID(RuleIgnoredFailure, st.File, st.Line, msg),
				Tool:     tool,
				RuleID:   RuleIgnoredFailure,
				Title:    "Stage failures ignored",
				Message:  msg,
				Severity: model.SevLow,
				Location: stageLocation(st),
				Raw:      raw,
			})
		}
	}
	return out, nil
}

func stageLocation(st pipelineStage) *model.Location {
	if st.File == "" {
		return nil
	}
	return &model.Location{File: st.File, Line: st.Line}
}

// mutableTag reports whether an image reference can move under the
// pipeline: no digest pin and either no tag, "latest", or a floating
// channel tag.
func mutableTag(image string) (string, bool) {
	if image == "" || strings.Contains(image, "@sha256:") {
		return "", false
	}
	idx := strings.LastIndex(image, ":")
	// No tag at all, or the colon belongs to a registry port.
	if idx < 0 || strings.Contains(image[idx:], "/") {
		return "latest", true
	}
	tag := image[idx+1:]
	switch tag {
	case "latest", "main", "master", "edge", "nightly":
		return tag, true
	}
	return tag, false
}
