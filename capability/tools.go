package capability

import (
	"fmt"

	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/search"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Namespace is the tool namespace capabilities are published under.
const Namespace = "bridge"

// ToolID returns the canonical discovery id for a capability name.
func ToolID(name string) string {
	return Namespace + ":" + name
}

// Tools describes every capability as a model.Tool. Positional parameters
// become input schema properties; "x-position" records their order.
func (r *Registry) Tools() []model.Tool {
	out := make([]model.Tool, 0, len(r.order))
	for _, d := range r.Defs() {
		out = append(out, d.tool())
	}
	return out
}

func (d Def) tool() model.Tool {
	properties := make(map[string]any, len(d.Params))
	required := make([]any, 0, len(d.Params))
	for i, p := range d.Params {
		prop := map[string]any{"x-position": i}
		if p.Type != "" {
			prop["type"] = p.Type
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if !p.Optional {
			required = append(required, p.Name)
		}
	}

	return model.Tool{
		Tool: mcp.Tool{
			Name:        d.Name,
			Title:       d.Signature(),
			Description: d.Description,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
			Annotations: &mcp.ToolAnnotations{ReadOnlyHint: d.ReadOnly},
		},
		Namespace: Namespace,
		Tags:      model.NormalizeTags(d.Tags),
	}
}

// Catalog is a searchable, documented view of a registry.
type Catalog struct {
	Index index.Index
	Docs  *tooldoc.InMemoryStore
}

// NewCatalog indexes every capability of r for BM25 search and registers
// its documentation. Each tool is bound to a local backend named after the
// capability.
func NewCatalog(r *Registry) (*Catalog, error) {
	idx := index.NewInMemoryIndex(index.IndexOptions{
		Searcher: search.NewBM25Searcher(search.BM25Config{}),
	})
	docs := tooldoc.NewInMemoryStore(tooldoc.StoreOptions{Index: idx})

	for _, d := range r.Defs() {
		if err := idx.RegisterTool(d.tool(), model.NewLocalBackend(d.Name)); err != nil {
			return nil, fmt.Errorf("register %s: %w", d.Name, err)
		}
		if err := docs.RegisterDoc(ToolID(d.Name), tooldoc.DocEntry{
			Summary: d.Description,
			Notes:   "Python: " + d.Signature(),
		}); err != nil {
			return nil, fmt.Errorf("document %s: %w", d.Name, err)
		}
	}
	return &Catalog{Index: idx, Docs: docs}, nil
}

// Search returns capabilities matching query, best match first.
func (c *Catalog) Search(query string, limit int) ([]index.Summary, error) {
	return c.Index.Search(query, limit)
}

// Describe returns the documentation of a capability by name.
func (c *Catalog) Describe(name string, level tooldoc.DetailLevel) (tooldoc.ToolDoc, error) {
	return c.Docs.DescribeTool(ToolID(name), level)
}
