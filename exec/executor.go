package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/scriptbridge/bridge"
	"github.com/jonwraymond/scriptbridge/classify"
	"github.com/jonwraymond/scriptbridge/code"
	"github.com/jonwraymond/scriptbridge/environment"
	"github.com/jonwraymond/scriptbridge/failure"
	"github.com/jonwraymond/scriptbridge/supervisor"
)

// Executor runs scripts.
//
// Contract:
// - Concurrency: safe for concurrent use. Each Execute call owns its own
// directory, process and protocol session.
// - Errors: Execute returns nil or a *failure.Error, never another type.
// - Cleanup: the working directory and process group are gone when
// Execute returns.
type Executor struct {
	opts       Options
	builder    environment.Builder
	classifier *classify.Classifier
	dispatcher *bridge.Dispatcher
	supervisor *supervisor.Supervisor
}

// New creates an Executor with the given options.
func New(opts Options) (*Executor, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	dispatcher, err := bridge.New(bridge.Config{Invoker: opts.Registry, Logger: opts.Logger})
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}

	return &Executor{
		opts:       opts,
		builder:    environment.Builder{WorkDir: opts.WorkDir, Registry: opts.Registry},
		classifier: classify.New(opts.Vocabulary),
		dispatcher: dispatcher,
		supervisor: &supervisor.Supervisor{Logger: opts.Logger},
	}, nil
}

// Execute runs req.Script to completion. On failure it returns the Outcome
// together with the same *failure.Error stored in Outcome.Failure.
func (e *Executor) Execute(ctx context.Context, req Request) (out Outcome, err error) {
	start := time.Now()
	out = Outcome{
		InvocationID: uuid.NewString(),
		CallerID:     req.CallerID,
		ExitCode:     -1,
	}
	log := e.opts.Logger

	defer func() {
		if r := recover(); r != nil {
			err = failure.New(failure.UnknownError, "panic during execution: %v", r)
		}
		out.Duration = time.Since(start)
		if err != nil {
			fe := failure.From(err)
			out.Failure, err = fe, fe
			log.Warn("script execution failed",
				"invocation", out.InvocationID, "caller", out.CallerID,
				"kind", fe.Kind, "exit_code", out.ExitCode, "excerpt", fe.Excerpt)
		} else {
			log.Info("script execution succeeded",
				"invocation", out.InvocationID, "caller", out.CallerID,
				"calls", len(out.Calls), "duration", out.Duration)
		}
		e.opts.Metrics.observe(out)
	}()

	env, err := e.builder.Build(req.Params)
	if err != nil {
		return out, err
	}
	defer func() {
		if rerr := env.Remove(); rerr != nil {
			log.Error("remove environment", "invocation", out.InvocationID, "dir", env.Dir, "error", rerr)
		}
	}()
	log.Info("environment built", "invocation", out.InvocationID, "dir", env.Dir)

	structure := code.Analyze(req.Script)
	out.Strategy = structure.Strategy()
	log.Info("strategy selected", "invocation", out.InvocationID, "strategy", out.Strategy,
		"functions", structure.Functions)

	entry, err := code.Assemble(req.Script, structure, code.Harness{
		ParamsFile: environment.ParamsFile,
		Module:     environment.StubModule,
		Params:     paramNames(req.Params),
	})
	if err != nil {
		return out, failure.Wrap(failure.UnknownError, err, "assemble harness")
	}
	if _, err := env.WriteEntry(entry); err != nil {
		return out, err
	}

	transcript := classify.NewTranscript(e.classifier)
	session := e.dispatcher.Session(transcript)

	// Capability handlers stop at the ceiling along with the process.
	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	res, runErr := e.supervisor.Run(ctx, supervisor.Spec{
		Path:       e.opts.Interpreter,
		Args:       append(append([]string(nil), e.opts.InterpreterArgs...), environment.EntryFile),
		Dir:        env.Dir,
		Env:        e.opts.Env,
		Timeout:    e.opts.Timeout,
		DrainGrace: e.opts.DrainGrace,
	}, func(r io.Reader, w io.Writer) error {
		return session.Serve(callCtx, r, w)
	})

	report := session.Report()
	out.PID = res.PID
	out.ExitCode = res.ExitCode
	out.Output = transcript.Output()
	out.Diagnostics = transcript.Diagnostics()
	out.Calls = report.Calls
	if res.AttachErr != nil {
		log.Warn("bridge session ended with error", "invocation", out.InvocationID, "error", res.AttachErr)
	}

	return out, e.outcomeError(res, runErr, report, transcript)
}

// outcomeError applies the outcome rules in order: timeout, supervisor
// failure, pending capability failure, clean exit, classified exit.
func (e *Executor) outcomeError(res supervisor.Result, runErr error, report bridge.Report, t *classify.Transcript) error {
	switch {
	case errors.Is(runErr, supervisor.ErrTimeout):
		return &failure.Error{
			Kind:     failure.TimeoutError,
			Message:  fmt.Sprintf("script exceeded the %s time ceiling", e.opts.Timeout),
			Excerpt:  t.Excerpt(),
			ExitCode: res.ExitCode,
			Err:      runErr,
		}
	case runErr != nil:
		return runErr
	case report.Failure != nil:
		fe := *report.Failure
		if fe.Excerpt == "" {
			fe.Excerpt = t.Excerpt()
		}
		fe.ExitCode = res.ExitCode
		return &fe
	case res.ExitCode == 0:
		return nil
	default:
		return e.classifier.Failure(t, res.ExitCode)
	}
}

func paramNames(params map[string]any) []string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	return names
}
