package poller

import (
	"fmt"
	"strings"
	"sync"

	"github.com/user/scanhub/pkg/model"
)

// LogBuffer accumulates log output from every tool in one place. Lines
// are prefixed with the tool kind so concurrent scans interleave without
// clobbering each other.
type LogBuffer struct {
	mu    sync.Mutex
	lines []string
}

func NewLogBuffer() *LogBuffer {
	return &LogBuffer{}
}

func (b *LogBuffer) Append(tool model.ToolKind, line string) {
	b.mu.Lock()
	b.lines = append(b.lines, fmt.Sprintf("[%s] %s", tool, line))
	b.mu.Unlock()
}

// Lines returns a copy of the buffered lines in append order.
func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.lines))
	copy(out, b.lines)
	return out
}

// Tail returns the last n lines.
func (b *LogBuffer) Tail(n int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > len(b.lines) {
		n = len(b.lines)
	}
	out := make([]string, n)
	copy(out, b.lines[len(b.lines)-n:])
	return out
}

func (b *LogBuffer) String() string {
	return strings.Join(b.Lines(), "\n")
}
