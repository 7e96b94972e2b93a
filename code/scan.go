package code

import (
	"strings"
)

// line is one physical source line after scanning.
type line struct {
	// raw is the original text without its line terminator.
	raw string

	// masked is raw with string literal contents blanked and comments
	// dropped. Quote characters and f-string expressions are kept.
	masked string

	// inString reports that the line starts inside a multi-line string.
	inString bool

	// depth is the bracket nesting depth at the start of the line.
	depth int

	// continued reports that the previous line ended in a backslash.
	continued bool
}

// logicalStart reports whether the line begins a new logical line.
func (l line) logicalStart() bool {
	return !l.inString && !l.continued && l.depth == 0
}

// indent returns the width of the leading whitespace of the line.
func (l line) indent() int {
	return len(l.raw) - len(strings.TrimLeft(l.raw, " \t"))
}

// stringCtx is one open string literal. Inside an f-string replacement
// field (expr > 0) the scanner is back in code mode.
type stringCtx struct {
	quote   string
	fstring bool
	expr    int
}

func (s stringCtx) triple() bool {
	return len(s.quote) == 3
}

// scan splits src into lines and tracks string, comment and bracket state
// across them so callers can tell code apart from literal text.
func scan(src string) []line {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	rawLines := strings.Split(src, "\n")

	var (
		stack     []stringCtx
		depth     int
		continued bool
		out       = make([]line, 0, len(rawLines))
	)

	for _, raw := range rawLines {
		l := line{
			raw:       raw,
			inString:  len(stack) > 0,
			depth:     depth,
			continued: continued,
		}
		continued = false

		var b strings.Builder
		b.Grow(len(raw))
		escapedEOL := false

		for i := 0; i < len(raw); {
			c := raw[i]

			// String text.
			if n := len(stack); n > 0 && stack[n-1].expr == 0 {
				top := &stack[n-1]
				switch {
				case c == '\\':
					if i+1 >= len(raw) {
						escapedEOL = true
						b.WriteByte(' ')
						i++
						continue
					}
					b.WriteString("  ")
					i += 2
				case top.fstring && c == '{':
					if i+1 < len(raw) && raw[i+1] == '{' {
						b.WriteString("  ")
						i += 2
						continue
					}
					top.expr = 1
					b.WriteByte(' ')
					i++
				case strings.HasPrefix(raw[i:], top.quote):
					b.WriteString(top.quote)
					i += len(top.quote)
					stack = stack[:n-1]
				default:
					b.WriteByte(' ')
					i++
				}
				continue
			}

			// Code, possibly inside an f-string replacement field.
			inExpr := len(stack) > 0
			switch {
			case c == '#':
				i = len(raw)
			case c == '\'' || c == '"':
				quote := string(c)
				if strings.HasPrefix(raw[i:], strings.Repeat(quote, 3)) {
					quote = strings.Repeat(quote, 3)
				}
				stack = append(stack, stringCtx{quote: quote, fstring: hasFPrefix(raw[:i])})
				b.WriteString(quote)
				i += len(quote)
			case c == '\\' && i == len(raw)-1:
				continued = true
				i++
			case inExpr && c == '{':
				stack[len(stack)-1].expr++
				b.WriteByte(c)
				i++
			case inExpr && c == '}':
				top := &stack[len(stack)-1]
				top.expr--
				if top.expr == 0 {
					b.WriteByte(' ')
				} else {
					b.WriteByte(c)
				}
				i++
			case !inExpr && (c == '(' || c == '[' || c == '{'):
				depth++
				b.WriteByte(c)
				i++
			case !inExpr && (c == ')' || c == ']' || c == '}'):
				if depth > 0 {
					depth--
				}
				b.WriteByte(c)
				i++
			default:
				b.WriteByte(c)
				i++
			}
		}

		// Single-quoted strings end at the line break unless escaped; an
		// unterminated one is a syntax error the interpreter will report.
		if !escapedEOL {
			for len(stack) > 0 && !stack[len(stack)-1].triple() {
				stack = stack[:len(stack)-1]
			}
		}

		l.masked = b.String()
		out = append(out, l)
	}
	return out
}

// hasFPrefix reports whether the identifier characters immediately before a
// quote form a string prefix containing f.
func hasFPrefix(before string) bool {
	j := len(before)
	for j > 0 && strings.IndexByte("rRbBuUfF", before[j-1]) >= 0 {
		j--
	}
	prefix := before[j:]
	if prefix == "" || len(prefix) > 2 {
		return false
	}
	if j > 0 && isIdentByte(before[j-1]) {
		return false
	}
	return strings.ContainsAny(prefix, "fF")
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// dedent removes whitespace common to the start of every non-blank line.
func dedent(src string) string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	lines := strings.Split(src, "\n")

	prefix := ""
	first := true
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		ws := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if first {
			prefix, first = ws, false
			continue
		}
		for !strings.HasPrefix(ws, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
		if prefix == "" {
			return src
		}
	}
	if prefix == "" {
		return src
	}
	for i, l := range lines {
		lines[i] = strings.TrimPrefix(l, prefix)
	}
	return strings.Join(lines, "\n")
}
