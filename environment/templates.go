package environment

import (
	"encoding/json"
	"strings"
	"text/template"

	"github.com/jonwraymond/scriptbridge/bridge"
	"github.com/jonwraymond/scriptbridge/capability"
)

var funcs = template.FuncMap{
	"quote": pyQuote,
	"signature": func(params []capability.Param) string {
		parts := make([]string, len(params))
		for i, p := range params {
			parts[i] = p.Name
			if p.Optional {
				parts[i] += "=None"
			}
		}
		return strings.Join(parts, ", ")
	},
	"args": func(params []capability.Param) string {
		var b strings.Builder
		for _, p := range params {
			b.WriteString(", ")
			b.WriteString(p.Name)
		}
		return b.String()
	},
}

// pyQuote renders s as a double-quoted literal valid in both JSON and Python.
func pyQuote(s string) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(b.String(), "\n")
}

type shimData struct {
	RequestMarker, ResponseMarker string
}

var shimTemplate = template.Must(template.New("shim").Funcs(funcs).Parse(`"""Host capability bridge. Generated by scriptbridge; do not edit."""
import itertools
import json
import sys

REQUEST_MARKER = {{quote .RequestMarker}}
RESPONSE_MARKER = {{quote .ResponseMarker}}

_ids = itertools.count(1)


class CapabilityError(Exception):
    """Raised when the host reports a failed capability call."""

    def __init__(self, function, message, kind=None):
        super().__init__(function + ": " + message)
        self.function = function
        self.message = message
        self.kind = kind


def _default(value):
    for attr in ("tolist", "to_dict"):
        method = getattr(value, attr, None)
        if callable(method):
            return method()
    if isinstance(value, (set, frozenset)):
        return list(value)
    return str(value)


def call(function, *args):
    request_id = next(_ids)
    payload = json.dumps(
        {"id": request_id, "function": function, "args": list(args)},
        ensure_ascii=False,
        default=_default,
    )
    sys.stdout.write(REQUEST_MARKER + payload + "\n")
    sys.stdout.flush()

    line = sys.stdin.readline()
    if not line:
        raise CapabilityError(function, "bridge closed")
    line = line.strip()
    if line.startswith(RESPONSE_MARKER):
        line = line[len(RESPONSE_MARKER):]
    reply = json.loads(line)
    if "error" in reply:
        raise CapabilityError(function, reply["error"], reply.get("kind"))
    return reply.get("result")
`))

var stubTemplate = template.Must(template.New("stubs").Funcs(funcs).Parse(`"""Host capabilities. Generated by scriptbridge; do not edit."""
from _bridge import CapabilityError, call as _call

__all__ = [
    "CapabilityError",
{{- range .}}
    {{quote .Name}},
{{- end}}
]
{{range .}}

def {{.Name}}({{signature .Params}}):
    {{quote .Description}}
    return _call({{quote .Name}}{{args .Params}})
{{end -}}
`))

func renderShim(w *strings.Builder) error {
	return shimTemplate.Execute(w, shimData{
		RequestMarker:  bridge.RequestMarker,
		ResponseMarker: bridge.ResponseMarker,
	})
}

func renderStubs(w *strings.Builder, defs []capability.Def) error {
	return stubTemplate.Execute(w, defs)
}
