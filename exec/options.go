package exec

import (
	"errors"
	"os"
	"time"

	"github.com/jonwraymond/scriptbridge/capability"
	"github.com/jonwraymond/scriptbridge/classify"
	"github.com/jonwraymond/scriptbridge/supervisor"
)

// Default configuration values.
const (
	DefaultInterpreter = "python3"
	DefaultTimeout     = supervisor.DefaultTimeout
	DefaultDrainGrace  = supervisor.DefaultDrainGrace
)

// DefaultInterpreterArgs keeps the child's streams unbuffered.
var DefaultInterpreterArgs = []string{"-u"}

// Errors returned by Options validation.
var (
	ErrRegistryRequired = errors.New("exec: Registry is required")
	ErrInvalidTimeout   = errors.New("exec: Timeout must not be negative")
)

// Options configures an Executor.
type Options struct {
	// Registry holds the capabilities scripts may call.
	// Required.
	Registry *capability.Registry

	// Interpreter is the executable that runs the entry point.
	// Default: "python3"
	Interpreter string

	// InterpreterArgs precede the entry point file name.
	// Default: ["-u"]
	InterpreterArgs []string

	// Timeout is the wall-clock ceiling per execution.
	// Default: 300s
	Timeout time.Duration

	// DrainGrace bounds protocol draining after a timeout kill.
	// Default: 2s
	DrainGrace time.Duration

	// WorkDir is where per-execution directories are created.
	// Default: os.TempDir()
	WorkDir string

	// Env replaces the inherited interpreter environment when non-nil.
	Env []string

	// Vocabulary tunes diagnostic classification. Empty lists fall back to
	// the defaults individually.
	Vocabulary classify.Vocabulary

	// Logger receives lifecycle events. Optional.
	Logger Logger

	// Metrics records execution metrics. Optional.
	Metrics *Metrics
}

// validate checks that required fields are set.
func (o *Options) validate() error {
	if o.Registry == nil {
		return ErrRegistryRequired
	}
	if o.Timeout < 0 || o.DrainGrace < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// applyDefaults sets default values for unset optional fields.
func (o *Options) applyDefaults() {
	if o.Interpreter == "" {
		o.Interpreter = DefaultInterpreter
	}
	if o.InterpreterArgs == nil {
		o.InterpreterArgs = append([]string(nil), DefaultInterpreterArgs...)
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.DrainGrace == 0 {
		o.DrainGrace = DefaultDrainGrace
	}
	if o.WorkDir == "" {
		o.WorkDir = os.TempDir()
	}
	if o.Logger == nil {
		o.Logger = nopLogger{}
	}
}
