package capability

import (
	"context"
	"fmt"

	"github.com/jonwraymond/toolfoundation/model"
)

// BackendKind identifies registry-backed tool sources.
const BackendKind = "local"

// Backend exposes a Registry to tool callers that pass named arguments, as
// MCP clients do. Named arguments are mapped onto the positional parameter
// list; unknown names are rejected.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: ErrUnknownCapability / ErrInvalidArguments, or the handler error.
type Backend struct {
	reg  *Registry
	name string
}

// NewBackend wraps r under the given instance name.
func NewBackend(name string, r *Registry) *Backend {
	return &Backend{reg: r, name: name}
}

// Kind returns BackendKind.
func (b *Backend) Kind() string { return BackendKind }

// Name returns the instance name.
func (b *Backend) Name() string { return b.name }

// ListTools returns the MCP metadata of every capability.
func (b *Backend) ListTools(_ context.Context) ([]model.Tool, error) {
	return b.reg.Tools(), nil
}

// Execute invokes a capability with named arguments.
func (b *Backend) Execute(ctx context.Context, tool string, args map[string]any) (any, error) {
	d, ok := b.reg.Lookup(tool)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, tool)
	}
	known := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		known[p.Name] = true
	}
	for name := range args {
		if !known[name] {
			return nil, fmt.Errorf("%w: %s has no parameter %q", ErrInvalidArguments, d.Signature(), name)
		}
	}

	// Trailing omitted optionals are left off so Invoke pads them.
	positional := make([]any, 0, len(d.Params))
	last := -1
	for i, p := range d.Params {
		v, present := args[p.Name]
		if present {
			last = i
		} else if !p.Optional {
			return nil, fmt.Errorf("%w: %s missing argument %q", ErrInvalidArguments, d.Signature(), p.Name)
		}
		positional = append(positional, v)
	}
	return b.reg.Invoke(ctx, tool, positional[:last+1])
}
