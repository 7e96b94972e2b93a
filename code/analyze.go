package code

import (
	"regexp"
	"strings"
)

// EntryFunction is the conventional name of a script's entry point.
const EntryFunction = "main"

// Strategy selects the harness shape for a script.
type Strategy string

const (
	// Wrapped re-indents a flat script into a harness function.
	Wrapped Strategy = "wrapped"

	// Dynamic executes a self-contained script in a prepared namespace.
	Dynamic Strategy = "dynamic"
)

// Structure summarizes what a script contains.
type Structure struct {
	// HasEntryFunction is set when a top-level function named main exists.
	HasEntryFunction bool

	// HasTopLevelStatements is set when executable, non-assignment
	// statements appear outside any function or class.
	HasTopLevelStatements bool

	// HasTypeDefinitions is set when a top-level class is defined.
	HasTypeDefinitions bool

	// HasAdvancedConstructs is set for decorators and async or generator syntax.
	HasAdvancedConstructs bool

	// Functions lists top-level function names in declaration order.
	Functions []string
}

// Strategy returns Dynamic when any structural flag is set, else Wrapped.
func (s Structure) Strategy() Strategy {
	if s.HasEntryFunction || s.HasTopLevelStatements || s.HasTypeDefinitions || s.HasAdvancedConstructs {
		return Dynamic
	}
	return Wrapped
}

var (
	defPattern      = regexp.MustCompile(`^(async\s+)?def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	classPattern    = regexp.MustCompile(`^class\s+[A-Za-z_]`)
	importPattern   = regexp.MustCompile(`^(import|from)\s`)
	advancedPattern = regexp.MustCompile(`\b(async|await|yield)\b`)
	keywordPattern  = regexp.MustCompile(`^(if|elif|else|for|while|with|try|except|finally|return|raise|assert|del|global|nonlocal|lambda|not|await|yield|break|continue)\b`)
	annotationStart = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*\s*:[^=]`)
)

// Analyze inspects script and reports its structure.
func Analyze(script string) Structure {
	var s Structure
	seen := make(map[string]bool)

	for _, l := range scan(dedent(script)) {
		if advancedPattern.MatchString(l.masked) {
			s.HasAdvancedConstructs = true
		}
		if !l.logicalStart() || l.indent() > 0 {
			continue
		}
		stmt := strings.TrimSpace(l.masked)
		if stmt == "" {
			continue
		}

		switch {
		case strings.HasPrefix(stmt, "@"):
			s.HasAdvancedConstructs = true
		case defPattern.MatchString(stmt):
			m := defPattern.FindStringSubmatch(stmt)
			if m[1] != "" {
				s.HasAdvancedConstructs = true
			}
			name := m[2]
			if name == EntryFunction {
				s.HasEntryFunction = true
			}
			if !seen[name] {
				seen[name] = true
				s.Functions = append(s.Functions, name)
			}
		case classPattern.MatchString(stmt):
			s.HasTypeDefinitions = true
		case importPattern.MatchString(stmt), stmt == "pass", isStringLiteral(stmt):
		case keywordPattern.MatchString(stmt):
			s.HasTopLevelStatements = true
		case isAssignment(stmt):
		default:
			s.HasTopLevelStatements = true
		}
	}
	return s
}

// isAssignment reports whether a masked statement binds a name: a plain,
// augmented or annotated assignment at bracket depth zero.
func isAssignment(stmt string) bool {
	return annotationStart.MatchString(stmt) || assignIndex(stmt) >= 0
}

// assignIndex returns the index of the assignment '=' of a masked statement,
// or -1 when it has none at bracket depth zero.
func assignIndex(stmt string) int {
	depth := 0
	for i := 0; i < len(stmt); i++ {
		switch c := stmt[i]; c {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i+1 < len(stmt) && stmt[i+1] == '=' {
				i++
				continue
			}
			if i > 0 {
				switch stmt[i-1] {
				case '!', '=':
					continue
				case '<', '>':
					// <<= and >>= assign; <= and >= compare.
					if i < 2 || stmt[i-2] != stmt[i-1] {
						continue
					}
				}
			}
			return i
		}
	}
	return -1
}

// boundNames returns the plain names a top-level assignment binds.
// Attribute and subscript targets bind nothing and are skipped.
func boundNames(stmt string) []string {
	var left string
	if annotationStart.MatchString(stmt) {
		left = stmt[:strings.IndexByte(stmt, ':')]
	} else if i := assignIndex(stmt); i >= 0 {
		left = strings.TrimRight(stmt[:i], "+-*/%&|^@<> \t")
	} else {
		return nil
	}
	left = strings.NewReplacer("(", " ", ")", " ", "[", " ", "]", " ").Replace(left)

	var out []string
	for _, part := range strings.Split(left, ",") {
		name := strings.TrimLeft(strings.TrimSpace(part), "*")
		if identifier.MatchString(name) {
			out = append(out, name)
		}
	}
	return out
}

// isStringLiteral reports whether a masked statement is only string
// literals, such as a docstring.
func isStringLiteral(stmt string) bool {
	hasQuote := false
	for i := 0; i < len(stmt); i++ {
		switch c := stmt[i]; {
		case c == '"' || c == '\'':
			hasQuote = true
		case c == ' ' || c == '\t':
		case strings.IndexByte("rRbBuUfF", c) >= 0:
		default:
			return false
		}
	}
	return hasQuote
}

var identPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// usage counts, per identifier, how often it is called (name followed by an
// opening parenthesis) and how often it appears at all, ignoring attribute
// accesses, def headers, strings and comments.
type usage struct {
	calls      map[string]int
	references map[string]int
}

func scanUsage(lines []line) usage {
	u := usage{calls: make(map[string]int), references: make(map[string]int)}
	for _, l := range lines {
		code := l.masked
		for _, loc := range identPattern.FindAllStringIndex(code, -1) {
			start, end := loc[0], loc[1]
			if start > 0 && (isIdentByte(code[start-1]) || code[start-1] == '.') {
				continue
			}
			if w := prevWord(code[:start]); w == "def" || w == "class" {
				continue
			}
			name := code[start:end]
			u.references[name]++
			rest := strings.TrimLeft(code[end:], " \t")
			if strings.HasPrefix(rest, "(") {
				u.calls[name]++
			}
		}
	}
	return u
}

// prevWord returns the identifier immediately before s's trailing spaces.
func prevWord(s string) string {
	s = strings.TrimRight(s, " \t")
	j := len(s)
	for j > 0 && isIdentByte(s[j-1]) {
		j--
	}
	return s[j:]
}
