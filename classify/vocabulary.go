// Package classify separates diagnostic output from plain output and maps
// the diagnostics of a failed script onto the failure taxonomy.
//
// Classification is deliberately heuristic: the interpreter's native
// exceptions are only observable as text. The precedence is fixed and other
// code branches on the result, so matching must stay as it is:
//
//  1. data-access signatures: IndexOutOfRange, NoDataAvailable, EmptyResult
//  2. syntax signatures: SyntaxError
//  3. runtime signatures: RuntimeError
//  4. process-level signatures or exit code 1: ProcessError
//  5. anything else: UnknownError
package classify

// Vocabulary holds the case-insensitive phrase lists driving classification.
// Every list may be overridden from configuration.
type Vocabulary struct {
	// ErrorMarkers flag a single output line as error-like.
	ErrorMarkers []string `yaml:"error_markers"`

	// IndexOutOfRange, NoData and Empty are the data-access signatures, from
	// most to least specific.
	IndexOutOfRange []string `yaml:"index_out_of_range"`
	NoData          []string `yaml:"no_data"`
	Empty           []string `yaml:"empty"`

	// Syntax and Runtime are interpreter exception signatures.
	Syntax  []string `yaml:"syntax"`
	Runtime []string `yaml:"runtime"`

	// Process are process-level signatures such as permission failures.
	Process []string `yaml:"process"`
}

// DefaultVocabulary returns the built-in phrase lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		ErrorMarkers: []string{
			"error", "exception", "traceback", "failed", "invalid",
			`file "`, "syntax", "indent",
		},
		IndexOutOfRange: []string{"index out of range", "indexerror"},
		NoData: []string{
			"no data", "keyerror",
			"没有数据", "无数据", "暂无数据",
			"keine daten", "aucune donnée", "sin datos",
		},
		Empty:  []string{"empty"},
		Syntax: []string{"syntaxerror", "invalid syntax", "indentationerror"},
		Runtime: []string{
			"nameerror", "typeerror", "valueerror",
			"attributeerror", "zerodivisionerror", "runtimeerror",
		},
		Process: []string{
			"permission denied", "command not found",
			"no such file or directory", "not recognized as an internal or external command",
		},
	}
}

// merge returns v with empty lists replaced by the defaults.
func (v Vocabulary) merge() Vocabulary {
	d := DefaultVocabulary()
	pick := func(custom, fallback []string) []string {
		if len(custom) > 0 {
			return custom
		}
		return fallback
	}
	return Vocabulary{
		ErrorMarkers:    pick(v.ErrorMarkers, d.ErrorMarkers),
		IndexOutOfRange: pick(v.IndexOutOfRange, d.IndexOutOfRange),
		NoData:          pick(v.NoData, d.NoData),
		Empty:           pick(v.Empty, d.Empty),
		Syntax:          pick(v.Syntax, d.Syntax),
		Runtime:         pick(v.Runtime, d.Runtime),
		Process:         pick(v.Process, d.Process),
	}
}
