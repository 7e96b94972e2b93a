package capability

import (
	"context"
	"encoding/json"
	"fmt"
)

// Reporter receives step and progress messages emitted by a script.
type Reporter interface {
	ReportStep(ctx context.Context, message string) error
	ReportProgress(ctx context.Context, message string) error
}

// QueryGenerator turns a natural-language question about a table into SQL.
type QueryGenerator interface {
	GenerateSQL(ctx context.Context, queryText, tableRef string) (string, error)
}

// QueryRunner executes SQL and returns the result rows. Runners may return a
// *failure.Error of a data-access kind; it reaches the caller unchanged.
type QueryRunner interface {
	ExecSQL(ctx context.Context, sql string) ([]map[string]any, error)
}

// Visualization is one structured payload emitted by a vis_* capability.
type Visualization struct {
	// Kind is the emitter name without the "vis_" prefix, e.g. "pie_chart".
	Kind string `json:"kind"`

	// Payload maps parameter names to the values the script passed.
	Payload map[string]any `json:"payload"`
}

// VisualizationSink forwards visualizations to the reporting surface.
type VisualizationSink interface {
	Emit(ctx context.Context, v Visualization) error
}

// Services bundles the collaborators behind the standard capabilities.
// A nil collaborator makes its capabilities fail with ErrServiceUnavailable.
type Services struct {
	Reporter       Reporter
	Generator      QueryGenerator
	Runner         QueryRunner
	Visualizations VisualizationSink
}

// Standard capability names.
const (
	ReportStep      = "report_step"
	ReportProgress  = "report_progress"
	GenSQL          = "gen_sql"
	ExecSQL         = "exec_sql"
	VisTextbox      = "vis_textbox"
	VisTextblock    = "vis_textblock"
	VisSingleBar    = "vis_single_bar"
	VisClusteredBar = "vis_clustered_bar"
	VisPieChart     = "vis_pie_chart"
	VisTable        = "vis_table"
)

// Standard returns a registry with the fixed capability surface wired to svc.
func Standard(svc Services) (*Registry, error) {
	message := []Param{{Name: "message", Type: "string", Description: "Text shown to the user"}}
	chart := []Param{
		{Name: "title", Type: "string"},
		{Name: "data"},
		{Name: "x_label", Type: "string", Optional: true},
		{Name: "y_label", Type: "string", Optional: true},
	}

	defs := []Def{
		{
			Name:        ReportStep,
			Description: "Report the start of an analysis step",
			Params:      message,
			Tags:        []string{"report"},
			Handler:     svc.reportStep,
		},
		{
			Name:        ReportProgress,
			Description: "Report intermediate progress within a step",
			Params:      message,
			Tags:        []string{"report"},
			Handler:     svc.reportProgress,
		},
		{
			Name:        GenSQL,
			Description: "Generate a SQL query for a natural language question about a table",
			Params: []Param{
				{Name: "query_text", Type: "string", Description: "Question to answer"},
				{Name: "table_ref", Optional: true, Description: "Table name or reference"},
			},
			ReadOnly: true,
			Tags:     []string{"sql", "query"},
			Handler:  svc.genSQL,
		},
		{
			Name:        ExecSQL,
			Description: "Execute a SQL query and return its rows as a list of objects",
			Params:      []Param{{Name: "sql", Type: "string"}},
			ReadOnly:    true,
			Tags:        []string{"sql", "query"},
			Handler:     svc.execSQL,
		},
		svc.visualization(VisTextbox, "Emit a plain text box",
			[]Param{{Name: "content", Type: "string"}}),
		svc.visualization(VisTextblock, "Emit a titled block of text",
			[]Param{{Name: "title", Type: "string"}, {Name: "content", Type: "string"}}),
		svc.visualization(VisSingleBar, "Emit a single-series bar chart", chart),
		svc.visualization(VisClusteredBar, "Emit a clustered multi-series bar chart", chart),
		svc.visualization(VisPieChart, "Emit a pie chart",
			[]Param{{Name: "title", Type: "string"}, {Name: "data"}}),
		svc.visualization(VisTable, "Emit a table of rows",
			[]Param{{Name: "title", Type: "string"}, {Name: "data"}}),
	}
	return NewRegistry(defs...)
}

func (s Services) reportStep(ctx context.Context, args []any) (any, error) {
	if s.Reporter == nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, ReportStep)
	}
	return nil, s.Reporter.ReportStep(ctx, text(args[0]))
}

func (s Services) reportProgress(ctx context.Context, args []any) (any, error) {
	if s.Reporter == nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, ReportProgress)
	}
	return nil, s.Reporter.ReportProgress(ctx, text(args[0]))
}

func (s Services) genSQL(ctx context.Context, args []any) (any, error) {
	if s.Generator == nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, GenSQL)
	}
	return s.Generator.GenerateSQL(ctx, text(args[0]), text(args[1]))
}

func (s Services) execSQL(ctx context.Context, args []any) (any, error) {
	if s.Runner == nil {
		return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, ExecSQL)
	}
	rows, err := s.Runner.ExecSQL(ctx, text(args[0]))
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return rows, nil
}

func (s Services) visualization(name, description string, params []Param) Def {
	return Def{
		Name:        name,
		Description: description,
		Params:      params,
		Tags:        []string{"visualization"},
		Handler: func(ctx context.Context, args []any) (any, error) {
			if s.Visualizations == nil {
				return nil, fmt.Errorf("%w: %s", ErrServiceUnavailable, name)
			}
			payload := make(map[string]any, len(params))
			for i, p := range params {
				if args[i] == nil && p.Optional {
					continue
				}
				payload[p.Name] = args[i]
			}
			return nil, s.Visualizations.Emit(ctx, Visualization{
				Kind:    name[len("vis_"):],
				Payload: payload,
			})
		},
	}
}

// text renders a JSON argument as a string. Strings pass through, null
// becomes "", and anything else is JSON-encoded.
func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
