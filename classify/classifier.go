package classify

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"

	"github.com/jonwraymond/scriptbridge/failure"
)

// MaxExcerpt bounds the excerpt attached to a failure, in runes.
const MaxExcerpt = 200

// excerptLines is how many trailing diagnostic lines an excerpt keeps.
const excerptLines = 3

// Classifier matches text against a folded Vocabulary.
//
// Contract:
// - Concurrency: safe for concurrent use; it holds no mutable state.
type Classifier struct {
	errorMarkers    []string
	indexOutOfRange []string
	noData          []string
	empty           []string
	syntax          []string
	runtime         []string
	process         []string
}

// New returns a Classifier for v. Empty lists fall back to the defaults.
func New(v Vocabulary) *Classifier {
	v = v.merge()
	return &Classifier{
		errorMarkers:    foldAll(v.ErrorMarkers),
		indexOutOfRange: foldAll(v.IndexOutOfRange),
		noData:          foldAll(v.NoData),
		empty:           foldAll(v.Empty),
		syntax:          foldAll(v.Syntax),
		runtime:         foldAll(v.Runtime),
		process:         foldAll(v.Process),
	}
}

// IsErrorLine reports whether line looks like a diagnostic: it contains an
// error marker or is a caret line pointing into source.
func (c *Classifier) IsErrorLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if isCaretLine(trimmed) {
		return true
	}
	return containsAny(fold(trimmed), c.errorMarkers)
}

// Classify maps the accumulated diagnostic text and exit code of a failed
// execution to a failure kind.
func (c *Classifier) Classify(text string, exitCode int) failure.Kind {
	folded := fold(text)
	switch {
	case containsAny(folded, c.indexOutOfRange):
		return failure.IndexOutOfRange
	case containsAny(folded, c.noData):
		return failure.NoDataAvailable
	case containsAny(folded, c.empty):
		return failure.EmptyResult
	case containsAny(folded, c.syntax):
		return failure.SyntaxError
	case containsAny(folded, c.runtime):
		return failure.RuntimeError
	case exitCode == 1, exitCode == 126, exitCode == 127, containsAny(folded, c.process):
		return failure.ProcessError
	default:
		return failure.UnknownError
	}
}

// Failure classifies the transcript of a failed run.
func (c *Classifier) Failure(t *Transcript, exitCode int) *failure.Error {
	kind := c.Classify(t.Text(), exitCode)
	return &failure.Error{
		Kind:     kind,
		Message:  describe(kind, exitCode),
		Excerpt:  t.Excerpt(),
		ExitCode: exitCode,
	}
}

func describe(kind failure.Kind, exitCode int) string {
	switch kind {
	case failure.IndexOutOfRange:
		return "script indexed past the end of a result; the query may have returned no rows"
	case failure.NoDataAvailable:
		return "script found no data to work with"
	case failure.EmptyResult:
		return "script produced an empty result"
	case failure.SyntaxError:
		return "script could not be parsed"
	case failure.RuntimeError:
		return "script raised an exception"
	case failure.ProcessError:
		return "interpreter process failed with exit code " + strconv.Itoa(exitCode)
	default:
		return "script exited with code " + strconv.Itoa(exitCode)
	}
}

// Excerpt returns the last few non-empty lines of lines, tail-truncated to
// MaxExcerpt runes.
func Excerpt(lines []string) string {
	picked := make([]string, 0, excerptLines)
	for i := len(lines) - 1; i >= 0 && len(picked) < excerptLines; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			picked = append(picked, l)
		}
	}
	for i, j := 0, len(picked)-1; i < j; i, j = i+1, j-1 {
		picked[i], picked[j] = picked[j], picked[i]
	}

	out := []rune(strings.Join(picked, "\n"))
	if len(out) <= MaxExcerpt {
		return string(out)
	}
	return "..." + string(out[len(out)-(MaxExcerpt-3):])
}

// fold case-folds s. Casers are stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		out = append(out, fold(s))
	}
	return out
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isCaretLine(s string) bool {
	hasCaret := false
	for _, r := range s {
		switch r {
		case '^':
			hasCaret = true
		case '~', ' ':
		default:
			return false
		}
	}
	return hasCaret
}
