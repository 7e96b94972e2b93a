// Package exec runs generated Python scripts against a registry of host
// capabilities and reports a typed outcome.
//
// An [Executor] ties the pipeline together for each call to
// [Executor.Execute]:
//
//   - build an isolated working directory with the bridge shim, capability
//     stubs and parameters
//   - analyze the script and assemble the matching harness
//   - spawn the interpreter under a time ceiling and serve capability calls
//     over its standard streams
//   - classify diagnostics into a [failure.Kind] when the run fails
//   - remove the directory and any surviving processes
//
// # Basic Usage
//
//	reg, _ := capability.Standard(capability.Services{
//	    Reporter:       reporter,
//	    Generator:      generator,
//	    Runner:         runner,
//	    Visualizations: sink,
//	})
//
//	executor, err := exec.New(exec.Options{Registry: reg})
//	if err != nil {
//	    return err
//	}
//
//	outcome, err := executor.Execute(ctx, exec.Request{
//	    Script: "rows = exec_sql(gen_sql(question))\nvis_table('Result', rows)\n",
//	    Params: map[string]any{"question": "monthly revenue"},
//	})
//	if errors.Is(err, failure.ErrNoDataAvailable) {
//	    // The query returned nothing.
//	}
//
// # Failures
//
// Every error returned by Execute is a [*failure.Error]. A classified failure
// raised by a capability takes precedence over anything inferred from the
// interpreter's exit status. The Outcome is returned alongside the error so
// output and call traces remain available.
//
// # Configuration
//
// [Options] can be filled from YAML with [LoadSettings] and [Settings.Apply].
// Logging goes to any [Logger]; [NewZapLogger] adapts a *zap.Logger. Prometheus
// collectors are optional through [NewMetrics].
package exec
