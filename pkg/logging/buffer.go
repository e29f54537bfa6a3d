package logging

import (
	"strings"
	"sync"
)

// ActivityLog keeps the most recent server log lines in a fixed-size ring.
type ActivityLog struct {
	mu    sync.RWMutex
	lines []string
	next  int
	full  bool
}

// DefaultActivitySize is the number of lines kept by Activity.
const DefaultActivitySize = 64

// Activity receives every INFO+ server log line for the /api/log/latest endpoint.
var Activity = NewActivityLog(DefaultActivitySize)

// NewActivityLog creates a ring holding up to size lines (at least one).
func NewActivityLog(size int) *ActivityLog {
	return &ActivityLog{lines: make([]string, max(size, 1))}
}

// Write implements io.Writer. Each call is one record from a slog handler.
func (a *ActivityLog) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")

	a.mu.Lock()
	defer a.mu.Unlock()
	a.lines[a.next] = line
	a.next = (a.next + 1) % len(a.lines)
	if a.next == 0 {
		a.full = true
	}
	return len(p), nil
}

// Last returns the most recent line, or "" before anything was logged.
func (a *ActivityLog) Last() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.full && a.next == 0 {
		return ""
	}
	return a.lines[(a.next-1+len(a.lines))%len(a.lines)]
}

// Recent returns up to n lines, oldest first.
func (a *ActivityLog) Recent(n int) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	count := a.next
	if a.full {
		count = len(a.lines)
	}
	n = min(n, count)
	if n <= 0 {
		return nil
	}

	out := make([]string, 0, n)
	start := a.next - n
	for i := range n {
		out = append(out, a.lines[(start+i+len(a.lines))%len(a.lines)])
	}
	return out
}
