package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Errors returned by registry operations.
var (
	ErrUnknownCapability  = errors.New("unknown capability")
	ErrInvalidArguments   = errors.New("invalid capability arguments")
	ErrDuplicate          = errors.New("capability already registered")
	ErrInvalidDef         = errors.New("invalid capability definition")
	ErrServiceUnavailable = errors.New("capability service not configured")
)

// Handler executes one capability call. Args are the positional JSON values
// sent by the script; numbers arrive as json.Number. The returned value must
// be JSON-encodable.
type Handler func(ctx context.Context, args []any) (any, error)

// Param describes one positional parameter of a capability.
type Param struct {
	// Name is the Python parameter name used in the generated stub.
	Name string

	// Type is the JSON Schema type of the value ("string", "array", ...).
	// Empty means any JSON value.
	Type string

	// Optional parameters default to None in the stub and are padded with nil
	// when the script omits them.
	Optional bool

	// Description documents the parameter.
	Description string
}

// Def defines a capability and its handler.
type Def struct {
	Name        string
	Description string
	Params      []Param
	ReadOnly    bool
	Tags        []string
	Handler     Handler
}

// Signature renders the Python call signature, e.g. "gen_sql(query_text, table_ref=None)".
func (d Def) Signature() string {
	parts := make([]string, len(d.Params))
	for i, p := range d.Params {
		if p.Optional {
			parts[i] = p.Name + "=None"
		} else {
			parts[i] = p.Name
		}
	}
	return d.Name + "(" + strings.Join(parts, ", ") + ")"
}

func (d Def) validate() error {
	if !isIdentifier(d.Name) {
		return fmt.Errorf("%w: name %q is not an identifier", ErrInvalidDef, d.Name)
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidDef, d.Name)
	}
	seenOptional := false
	for _, p := range d.Params {
		if !isIdentifier(p.Name) {
			return fmt.Errorf("%w: %s parameter %q is not an identifier", ErrInvalidDef, d.Name, p.Name)
		}
		if seenOptional && !p.Optional {
			return fmt.Errorf("%w: %s required parameter %q follows an optional one", ErrInvalidDef, d.Name, p.Name)
		}
		seenOptional = seenOptional || p.Optional
	}
	return nil
}

// Registry is an immutable name -> Def table.
//
// Contract:
// - Concurrency: safe for concurrent use once constructed.
// - Errors: Invoke returns ErrUnknownCapability / ErrInvalidArguments for
// lookup and arity failures; handler errors propagate unchanged.
type Registry struct {
	defs  map[string]Def
	order []string
}

// NewRegistry builds a registry from defs, preserving their order.
func NewRegistry(defs ...Def) (*Registry, error) {
	r := &Registry{defs: make(map[string]Def, len(defs))}
	for _, d := range defs {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, exists := r.defs[d.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, d.Name)
		}
		r.defs[d.Name] = d
		r.order = append(r.order, d.Name)
	}
	return r, nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (Def, bool) {
	d, ok := r.defs[name]
	return d, ok
}

// Names returns capability names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Defs returns definitions in registration order.
func (r *Registry) Defs() []Def {
	out := make([]Def, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}

// Len returns the number of capabilities.
func (r *Registry) Len() int {
	return len(r.order)
}

// Invoke runs the named capability synchronously.
func (r *Registry) Invoke(ctx context.Context, name string, args []any) (any, error) {
	d, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	if len(args) > len(d.Params) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d",
			ErrInvalidArguments, d.Signature(), len(d.Params), len(args))
	}
	for i := len(args); i < len(d.Params); i++ {
		if !d.Params[i].Optional {
			return nil, fmt.Errorf("%w: %s missing argument %q",
				ErrInvalidArguments, d.Signature(), d.Params[i].Name)
		}
	}
	padded := make([]any, len(d.Params))
	copy(padded, args)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Handler(ctx, padded)
}

// isIdentifier reports whether s is a plain ASCII identifier usable as a
// Python name.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
