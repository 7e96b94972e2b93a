package classify

import (
	"strings"
	"sync"
)

// Entry is one plain output line of a run.
type Entry struct {
	Text    string
	IsError bool
}

// Transcript accumulates every non-request line a script printed, flagging
// error-like lines as they arrive. One Transcript belongs to one execution
// and is returned with its outcome; it is never shared across executions.
//
// Contract:
// - Concurrency: safe for concurrent use; the dispatcher appends while the
// supervisor may read after a timeout.
type Transcript struct {
	classifier *Classifier

	mu      sync.Mutex
	entries []Entry
	errors  int
}

// NewTranscript returns an empty transcript flagging lines with c.
func NewTranscript(c *Classifier) *Transcript {
	return &Transcript{classifier: c}
}

// Line appends one output line.
func (t *Transcript) Line(line string) {
	e := Entry{Text: line, IsError: t.classifier.IsErrorLine(line)}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
	if e.IsError {
		t.errors++
	}
}

// Entries returns a snapshot of all lines.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

// Text returns every line joined by newlines.
func (t *Transcript) Text() string {
	return strings.Join(t.lines(func(Entry) bool { return true }), "\n")
}

// Output returns the purely informational lines.
func (t *Transcript) Output() string {
	return strings.Join(t.lines(func(e Entry) bool { return !e.IsError }), "\n")
}

// Diagnostics returns the error-flagged lines.
func (t *Transcript) Diagnostics() string {
	return strings.Join(t.lines(func(e Entry) bool { return e.IsError }), "\n")
}

// HasErrors reports whether any error-like line was seen.
func (t *Transcript) HasErrors() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errors > 0
}

// Excerpt returns a bounded tail of the diagnostics, falling back to plain
// output when nothing looked like an error.
func (t *Transcript) Excerpt() string {
	if t.HasErrors() {
		return Excerpt(t.lines(func(e Entry) bool { return e.IsError }))
	}
	return Excerpt(t.lines(func(Entry) bool { return true }))
}

func (t *Transcript) lines(keep func(Entry) bool) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		if keep(e) {
			out = append(out, e.Text)
		}
	}
	return out
}
