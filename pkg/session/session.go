package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/user/scanhub/pkg/model"
)

// Phase is the lifecycle state of one tool's scan.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseStarting  Phase = "starting"
	PhaseScanning  Phase = "scanning"
	PhaseCompleted Phase = "completed"
	PhaseError     Phase = "error"
)

// Snapshot is the read-only view handed to observers. Consumers never see
// the live session struct.
type Snapshot struct {
	Tool   model.ToolKind
	TaskID string
	Repo   string
	Phase  Phase
	Err    string
	Events []string
}

// Session tracks one tool's scan lifecycle. It is mutated only by the
// polling engine and the caller that initiated the scan.
type Session struct {
	mu     sync.Mutex
	tool   model.ToolKind
	taskID string
	repo   string
	phase  Phase
	err    string
	events []string

	observers []func(Snapshot)
}

func newSession(tool model.ToolKind) *Session {
	return &Session{tool: tool, phase: PhaseIdle}
}

// Starting marks the instant a start request is issued.
func (s *Session) Starting(subject string) {
	s.mu.Lock()
	s.phase = PhaseStarting
	s.taskID = ""
	s.repo = subject
	s.err = ""
	s.events = nil
	s.logLocked("start requested for %s", subject)
	s.notifyLocked()
	s.mu.Unlock()
}

// Scanning records the obtained task handle and enters the scanning phase.
func (s *Session) Scanning(taskID, repo string) {
	s.mu.Lock()
	s.phase = PhaseScanning
	s.taskID = taskID
	if repo != "" {
		s.repo = repo
	}
	s.logLocked("task %s accepted", taskID)
	s.notifyLocked()
	s.mu.Unlock()
}

// Completed marks natural end-of-stream.
func (s *Session) Completed() {
	s.mu.Lock()
	s.phase = PhaseCompleted
	s.logLocked("scan completed")
	s.notifyLocked()
	s.mu.Unlock()
}

// Fail enters the terminal error phase. Only a new Starting call leaves it.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	s.phase = PhaseError
	s.err = err.Error()
	s.logLocked("scan failed: %v", err)
	s.notifyLocked()
	s.mu.Unlock()
}

// Report appends a non-fatal event to the session's human-readable log
// without changing phase (e.g. a result-fetch failure for one marker).
func (s *Session) Report(format string, args ...any) {
	s.mu.Lock()
	s.logLocked(format, args...)
	s.notifyLocked()
	s.mu.Unlock()
}

// Reset returns the session to idle and clears its history.
func (s *Session) Reset() {
	s.mu.Lock()
	s.phase = PhaseIdle
	s.taskID = ""
	s.repo = ""
	s.err = ""
	s.events = nil
	s.notifyLocked()
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers an observer invoked on every state change with a
// fresh snapshot. Observers run synchronously; keep them cheap.
func (s *Session) Subscribe(fn func(Snapshot)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Session) snapshotLocked() Snapshot {
	events := make([]string, len(s.events))
	copy(events, s.events)
	return Snapshot{
		Tool:   s.tool,
		TaskID: s.taskID,
		Repo:   s.repo,
		Phase:  s.phase,
		Err:    s.err,
		Events: events,
	}
}

func (s *Session) logLocked(format string, args ...any) {
	line := fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	s.events = append(s.events, line)
}

func (s *Session) notifyLocked() {
	snap := s.snapshotLocked()
	for _, fn := range s.observers {
		fn(snap)
	}
}

// Manager owns one independent session per tool. There is no combined
// scan phase; a dashboard reads each tool's session separately.
type Manager struct {
	mu       sync.Mutex
	sessions map[model.ToolKind]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[model.ToolKind]*Session)}
}

// For returns the session for a tool, creating an idle one on first use.
func (m *Manager) For(tool model.ToolKind) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[tool]
	if !ok {
		s = newSession(tool)
		m.sessions[tool] = s
	}
	return s
}

// Snapshots returns the current view of every known session.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}
