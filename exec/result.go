package exec

import (
	"time"

	"github.com/jonwraymond/scriptbridge/bridge"
	"github.com/jonwraymond/scriptbridge/code"
	"github.com/jonwraymond/scriptbridge/failure"
)

// Request is one script execution. It is owned by the caller and not
// modified.
type Request struct {
	// Script is the Python source to run.
	Script string

	// Params are bound as names inside the script. Values must be
	// JSON-encodable.
	Params map[string]any

	// CallerID identifies the caller in logs and in the Outcome.
	CallerID string
}

// Outcome describes a finished execution.
type Outcome struct {
	// InvocationID uniquely identifies this execution.
	InvocationID string

	// CallerID is copied from the Request.
	CallerID string

	// Strategy is the harness shape chosen for the script.
	Strategy code.Strategy

	// PID is the interpreter process id, 0 if it never started. The process
	// and its group are gone by the time Execute returns.
	PID int

	// ExitCode is the interpreter exit status, or -1 if it was killed or
	// never started.
	ExitCode int

	// Output holds informational lines, including the framing lines.
	Output string

	// Diagnostics holds the lines that looked like errors.
	Diagnostics string

	// Calls lists the capability calls made by the script.
	Calls []bridge.CallRecord

	// Duration is the total execution time.
	Duration time.Duration

	// Failure is set when the execution failed. Execute returns the same value
	// as its error.
	Failure *failure.Error
}

// OK returns true if the execution succeeded.
func (o Outcome) OK() bool {
	return o.Failure == nil
}
