package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonwraymond/scriptbridge/capability"
	"github.com/jonwraymond/scriptbridge/exec"
)

type runFlags struct {
	paramsFile   string
	params       []string
	configFile   string
	fixturesFile string
	python       string
	timeout      time.Duration
	debug        bool
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run SCRIPT",
		Short: "Run a script file",
		Long: `Run a generated Python script.

Capabilities are served locally: report_step and report_progress are logged,
gen_sql returns the question unchanged, exec_sql answers from a YAML fixtures
file keyed by SQL text, and visualizations are printed as JSON lines.

Examples:
  scriptbridge run analysis.py --param question='"monthly revenue"'
  scriptbridge run analysis.py --params params.json --fixtures rows.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd, args[0], f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.paramsFile, "params", "", "JSON file with the parameter object")
	fl.StringArrayVar(&f.params, "param", nil, "parameter as key=value; JSON values are decoded")
	fl.StringVar(&f.configFile, "config", "", "YAML settings file")
	fl.StringVar(&f.fixturesFile, "fixtures", "", "YAML map of SQL text to result rows")
	fl.StringVar(&f.python, "python", "", "interpreter to run (default python3)")
	fl.DurationVar(&f.timeout, "timeout", 0, "execution time ceiling (default 5m)")
	fl.BoolVar(&f.debug, "debug", false, "development logging")
	return cmd
}

func runScript(cmd *cobra.Command, path string, f runFlags) error {
	logger, err := newZap(f.debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	script, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	params, err := loadParams(f.paramsFile, f.params)
	if err != nil {
		return err
	}
	fixtures, err := loadFixtures(f.fixturesFile)
	if err != nil {
		return err
	}

	opts, err := buildOptions(f)
	if err != nil {
		return err
	}

	svc := &localServices{log: logger, fixtures: fixtures, out: cmd.OutOrStdout()}
	reg, err := capability.Standard(capability.Services{
		Reporter:       svc,
		Generator:      svc,
		Runner:         svc,
		Visualizations: svc,
	})
	if err != nil {
		return err
	}
	opts.Registry = reg
	opts.Logger = exec.NewZapLogger(logger)

	executor, err := exec.New(opts)
	if err != nil {
		return err
	}

	outcome, err := executor.Execute(cmd.Context(), exec.Request{
		Script:   string(script),
		Params:   params,
		CallerID: "cli",
	})
	if outcome.Output != "" {
		fmt.Fprintln(cmd.OutOrStdout(), outcome.Output)
	}
	if outcome.Diagnostics != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), outcome.Diagnostics)
	}
	logger.Info("execution finished",
		zap.String("invocation", outcome.InvocationID),
		zap.Int("pid", outcome.PID),
		zap.String("strategy", string(outcome.Strategy)),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Int("calls", len(outcome.Calls)),
		zap.Duration("duration", outcome.Duration))
	return err
}

// buildOptions layers environment variables, then the config file, then
// flags.
func buildOptions(f runFlags) (exec.Options, error) {
	var opts exec.Options
	if v := os.Getenv(envPython); v != "" {
		opts.Interpreter = v
	}
	if v := os.Getenv(envTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return opts, fmt.Errorf("%s: %w", envTimeout, err)
		}
		opts.Timeout = d
	}
	if v := os.Getenv(envWorkDir); v != "" {
		opts.WorkDir = v
	}

	if f.configFile != "" {
		s, err := exec.LoadSettings(f.configFile)
		if err != nil {
			return opts, err
		}
		s.Apply(&opts)
	}

	if f.python != "" {
		opts.Interpreter = f.python
	}
	if f.timeout != 0 {
		opts.Timeout = f.timeout
	}
	return opts, nil
}

func newZap(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

// loadParams merges the params file with key=value flags, flags winning.
func loadParams(file string, pairs []string) (map[string]any, error) {
	params := map[string]any{}
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read params: %w", err)
		}
		if err := json.Unmarshal(data, &params); err != nil {
			return nil, fmt.Errorf("parse params %s: %w", file, err)
		}
	}
	for _, kv := range pairs {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: want key=value", kv)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		params[key] = v
	}
	return params, nil
}
