package code

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"
)

// Framing lines printed around the script body.
const (
	StartLine = "[scriptbridge] script start"
	EndLine   = "[scriptbridge] script end"
)

// Harness names the files and bindings the generated entry point relies on.
type Harness struct {
	// ParamsFile is the parameter file, relative to the working directory.
	// Default: "params.json".
	ParamsFile string

	// Module is the importable capability stub module. Default: "capabilities".
	Module string

	// Params lists the parameter names to bind. Names that are not valid
	// Python identifiers stay reachable through the parameter dict only.
	Params []string
}

func (h Harness) withDefaults() Harness {
	if h.ParamsFile == "" {
		h.ParamsFile = "params.json"
	}
	if h.Module == "" {
		h.Module = "capabilities"
	}
	return h
}

// Assemble combines script with the harness matching s.Strategy().
func Assemble(script string, s Structure, h Harness) (string, error) {
	h = h.withDefaults()
	src := dedent(script)
	lines := scan(src)
	u := scanUsage(lines)

	switch strategy := s.Strategy(); strategy {
	case Wrapped:
		return assembleWrapped(lines, s, u, h)
	case Dynamic:
		return assembleDynamic(src, s, u, h)
	default:
		return "", fmt.Errorf("code: unknown strategy %q", strategy)
	}
}

// Uncalled returns the declared functions never textually called, in
// declaration order.
func Uncalled(script string, s Structure) []string {
	u := scanUsage(scan(dedent(script)))
	return uncalled(s.Functions, u.calls)
}

func uncalled(funcs []string, counts map[string]int) []string {
	var out []string
	for _, name := range funcs {
		if counts[name] == 0 {
			out = append(out, name)
		}
	}
	return out
}

type wrappedData struct {
	Future   []string
	Imports  []string
	Bindings []binding
	Body     []string
	Calls    []string
	Harness
	Start, End string
}

type binding struct {
	Name, Key string
}

var wrappedTemplate = template.Must(template.New("wrapped").Parse(`
{{- range .Future}}{{.}}
{{end -}}
# Generated by scriptbridge (wrapped).
import json as _sb_json
from {{.Module}} import *
{{range .Imports}}{{.}}
{{end}}
with open({{printf "%q" .ParamsFile}}, encoding="utf-8") as _sb_fh:
    _sb_params = _sb_json.load(_sb_fh)


def _sb_script():
{{- range .Bindings}}
    {{.Name}} = _sb_params[{{.Key}}]
{{- end}}
{{- range .Body}}
{{.}}
{{- end}}
{{- range .Calls}}
    {{.}}()
{{- end}}
    pass


print({{printf "%q" .Start}}, flush=True)
_sb_script()
print({{printf "%q" .End}}, flush=True)
`))

func assembleWrapped(lines []line, s Structure, u usage, h Harness) (string, error) {
	d := wrappedData{
		Harness:  h,
		Bindings: bindings(h.Params),
		Calls:    uncalled(s.Functions, u.calls),
		Start:    StartLine,
		End:      EndLine,
	}

	bound := wrappedBindings(lines)
	hoisting := false
	for _, l := range lines {
		// Continuation lines share the state of the statement they extend.
		if l.logicalStart() {
			hoisting = l.indent() == 0 && importPattern.MatchString(strings.TrimSpace(l.masked))
		}

		switch {
		case hoisting && strings.HasPrefix(strings.TrimSpace(l.masked), "from __future__"):
			d.Future = append(d.Future, l.raw)
		case hoisting:
			d.Imports = append(d.Imports, l.raw)
		case l.inString:
			d.Body = append(d.Body, l.raw)
		case strings.TrimSpace(l.raw) == "":
			d.Body = append(d.Body, "")
		case l.logicalStart() && l.indent() > 0:
			d.Body = append(d.Body, "    "+rewriteGlobal(l.raw, bound))
		default:
			d.Body = append(d.Body, "    "+l.raw)
		}
	}

	var b bytes.Buffer
	if err := wrappedTemplate.Execute(&b, d); err != nil {
		return "", fmt.Errorf("code: render wrapped harness: %w", err)
	}
	return b.String(), nil
}

// wrappedBindings returns the names the script binds at top level, which
// become locals of the harness function once wrapped. Imports are hoisted
// and stay module globals.
func wrappedBindings(lines []line) map[string]bool {
	bound := make(map[string]bool)
	for _, l := range lines {
		if !l.logicalStart() || l.indent() > 0 {
			continue
		}
		stmt := strings.TrimSpace(l.masked)
		if importPattern.MatchString(stmt) {
			continue
		}
		if m := defPattern.FindStringSubmatch(stmt); m != nil {
			bound[m[2]] = true
			continue
		}
		for _, name := range boundNames(stmt) {
			bound[name] = true
		}
	}
	return bound
}

var globalPattern = regexp.MustCompile(`^(\s+)global\s+([A-Za-z_][A-Za-z0-9_]*(?:\s*,\s*[A-Za-z_][A-Za-z0-9_]*)*)(\s*(?:[;#].*)?)$`)

// rewriteGlobal turns a global declaration of wrapped top-level names into
// nonlocal, so helpers keep sharing the script's variables. Names the script
// never binds at top level stay global.
func rewriteGlobal(raw string, bound map[string]bool) string {
	m := globalPattern.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	var local, global []string
	for _, name := range strings.Split(m[2], ",") {
		name = strings.TrimSpace(name)
		if bound[name] {
			local = append(local, name)
		} else {
			global = append(global, name)
		}
	}
	if len(local) == 0 {
		return raw
	}
	stmt := "nonlocal " + strings.Join(local, ", ")
	if len(global) > 0 {
		stmt += "; global " + strings.Join(global, ", ")
	}
	return m[1] + stmt + m[3]
}

type dynamicData struct {
	Source string
	Invoke string
	Harness
	Start, End string
}

var dynamicTemplate = template.Must(template.New("dynamic").Parse(`# Generated by scriptbridge (dynamic).
import ast as _sb_ast
import asyncio as _sb_asyncio
import inspect as _sb_inspect
import json as _sb_json

import {{.Module}} as _sb_capabilities

_SB_SOURCE = {{.Source}}
_SB_INVOKE = {{.Invoke}}

with open({{printf "%q" .ParamsFile}}, encoding="utf-8") as _sb_fh:
    _sb_params = _sb_json.load(_sb_fh)


def _sb_settle(value):
    if _sb_inspect.iscoroutine(value):
        return _sb_asyncio.run(value)
    if _sb_inspect.isgenerator(value):
        return list(value)
    return value


def _sb_run():
    namespace = {"__name__": "__main__", "__builtins__": __builtins__}
    for name in _sb_capabilities.__all__:
        namespace[name] = getattr(_sb_capabilities, name)
    namespace.update(_sb_params)
    compiled = compile(_SB_SOURCE, "<script>", "exec", flags=_sb_ast.PyCF_ALLOW_TOP_LEVEL_AWAIT)
    _sb_settle(eval(compiled, namespace))
    for name in _SB_INVOKE:
        target = namespace.get(name)
        if callable(target):
            _sb_settle(target())


print({{printf "%q" .Start}}, flush=True)
_sb_run()
print({{printf "%q" .End}}, flush=True)
`))

func assembleDynamic(src string, s Structure, u usage, h Harness) (string, error) {
	var invoke []string
	if s.HasEntryFunction {
		if u.calls[EntryFunction] == 0 {
			invoke = []string{EntryFunction}
		}
	} else {
		invoke = uncalled(s.Functions, u.references)
	}

	source, err := pyLiteral(src)
	if err != nil {
		return "", err
	}
	names, err := pyLiteral(invoke)
	if err != nil {
		return "", err
	}
	if invoke == nil {
		names = "[]"
	}

	var b bytes.Buffer
	err = dynamicTemplate.Execute(&b, dynamicData{
		Source:  source,
		Invoke:  names,
		Harness: h,
		Start:   StartLine,
		End:     EndLine,
	})
	if err != nil {
		return "", fmt.Errorf("code: render dynamic harness: %w", err)
	}
	return b.String(), nil
}

// pyLiteral renders v as JSON, which doubles as a Python literal for
// strings and lists of strings.
func pyLiteral(v any) (string, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("code: encode literal: %w", err)
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true, "assert": true,
	"async": true, "await": true, "break": true, "class": true, "continue": true,
	"def": true, "del": true, "elif": true, "else": true, "except": true, "finally": true,
	"for": true, "from": true, "global": true, "if": true, "import": true, "in": true,
	"is": true, "lambda": true, "nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true, "with": true, "yield": true,
}

// IsIdentifier reports whether name can be bound as a Python variable.
func IsIdentifier(name string) bool {
	return identifier.MatchString(name) && !pythonKeywords[name] && !strings.HasPrefix(name, "_sb_")
}

func bindings(params []string) []binding {
	names := append([]string(nil), params...)
	sort.Strings(names)
	out := make([]binding, 0, len(names))
	for i, name := range names {
		if i > 0 && names[i-1] == name {
			continue
		}
		if !IsIdentifier(name) {
			continue
		}
		key, _ := pyLiteral(name)
		out = append(out, binding{Name: name, Key: key})
	}
	return out
}
