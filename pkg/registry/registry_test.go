package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/scanhub/pkg/model"
)

func TestForToolResolvesAllKinds(t *testing.T) {
	for _, kind := range Tools() {
		d := ForTool(kind)
		assert.Equal(t, kind, d.Tool)
		assert.NotNil(t, d.Normalize)
		assert.NotNil(t, d.CompletionPattern)
	}
}

func TestForToolUnknownPanics(t *testing.T) {
	assert.Panics(t, func() { ForTool(model.ToolKind("fuzzer")) })
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate())
}

func TestCompletionPatternsAreToolSpecific(t *testing.T) {
	line := "done: scanner-results-octocat-hello-world-20240101T000000Z.json"
	assert.True(t, ForTool(model.ToolScanner).CompletionPattern.MatchString(line))
	assert.False(t, ForTool(model.ToolCompliance).CompletionPattern.MatchString(line))
	assert.False(t, ForTool(model.ToolPipeline).CompletionPattern.MatchString(line))
}

func TestScannerNormalizeDispatch(t *testing.T) {
	d := ForTool(model.ToolScanner)

	structured := `{"runs":[{"tool":{"driver":{"name":"x"}},"results":[{"ruleId":"R1","level":"error","message":{"text":"m"}}]}]}`
	recs, err := d.Normalize([]byte(structured), model.ToolScanner)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.SevHigh, recs[0].Severity)

	adhoc := `[{"ruleId":"R2","message":"m2"}]`
	recs, err = d.Normalize([]byte(adhoc), model.ToolScanner)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "R2", recs[0].RuleID)
}

func TestApplyOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adapters.yaml")
	content := "scanner:\n  logs_path: /v2/scanner/logs\n  completion_pattern: 'sast-out-[\\w.-]+\\.json'\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	orig := descriptors[model.ToolScanner]
	t.Cleanup(func() { descriptors[model.ToolScanner] = orig })

	require.NoError(t, ApplyOverrides(path))
	d := ForTool(model.ToolScanner)
	assert.Equal(t, "/v2/scanner/logs", d.LogsPath)
	assert.True(t, d.CompletionPattern.MatchString("sast-out-x.json"))
	// Untouched fields keep their defaults.
	assert.Equal(t, "/api/scanner/start", d.StartPath)
}

func TestApplyOverridesRejectsDuplicatePattern(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adapters.yaml")
	// Same pattern as the compliance tool: must be rejected, not silently kept.
	content := "scanner:\n  completion_pattern: 'compliance-report-[\\w.-]+\\.json'\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	orig := descriptors[model.ToolScanner]
	t.Cleanup(func() { descriptors[model.ToolScanner] = orig })

	assert.Error(t, ApplyOverrides(path))
}
