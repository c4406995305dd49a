package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/scanhub/pkg/model"
)

func TestLifecycleSuccess(t *testing.T) {
	m := NewManager()
	s := m.For(model.ToolScanner)

	var phases []Phase
	s.Subscribe(func(snap Snapshot) { phases = append(phases, snap.Phase) })

	assert.Equal(t, PhaseIdle, s.Snapshot().Phase)

	s.Starting("octocat/hello-world")
	s.Scanning("t1", "octocat/hello-world")
	s.Completed()

	assert.Equal(t, []Phase{PhaseStarting, PhaseScanning, PhaseCompleted}, phases)
	snap := s.Snapshot()
	assert.Equal(t, "t1", snap.TaskID)
	assert.Equal(t, "octocat/hello-world", snap.Repo)
	assert.NotEmpty(t, snap.Events)
}

func TestStartFailureIsTerminalUntilRestart(t *testing.T) {
	m := NewManager()
	s := m.For(model.ToolCompliance)

	s.Starting("subject")
	s.Fail(errors.New("no task handle"))
	snap := s.Snapshot()
	assert.Equal(t, PhaseError, snap.Phase)
	assert.Contains(t, snap.Err, "no task handle")

	// A new start request transitions back through starting.
	s.Starting("subject")
	snap = s.Snapshot()
	assert.Equal(t, PhaseStarting, snap.Phase)
	assert.Empty(t, snap.Err)
}

func TestSessionsAreIndependent(t *testing.T) {
	m := NewManager()
	a := m.For(model.ToolScanner)
	b := m.For(model.ToolPipeline)

	a.Starting("s")
	a.Fail(errors.New("boom"))
	b.Starting("s")
	b.Scanning("t2", "")

	assert.Equal(t, PhaseError, a.Snapshot().Phase)
	assert.Equal(t, PhaseScanning, b.Snapshot().Phase)

	require.Len(t, m.Snapshots(), 2)
}

func TestReportDoesNotChangePhase(t *testing.T) {
	m := NewManager()
	s := m.For(model.ToolScanner)
	s.Starting("x")
	s.Scanning("t1", "")

	s.Report("result fetch failed for %s", "scanner-results-a.json")
	snap := s.Snapshot()
	assert.Equal(t, PhaseScanning, snap.Phase)
	assert.Contains(t, snap.Events[len(snap.Events)-1], "result fetch failed")
}

func TestManagerReturnsSameSession(t *testing.T) {
	m := NewManager()
	assert.Same(t, m.For(model.ToolScanner), m.For(model.ToolScanner))
}
