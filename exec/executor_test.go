package exec

import (
	"context"
	"errors"
	"os"
	osexec "os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/scriptbridge/capability"
	"github.com/jonwraymond/scriptbridge/code"
	"github.com/jonwraymond/scriptbridge/failure"
)

type fakeServices struct {
	mu     sync.Mutex
	steps  []string
	vis    []capability.Visualization
	rows   []map[string]any
	rowErr error
}

func (s *fakeServices) ReportStep(_ context.Context, m string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, m)
	return nil
}

func (s *fakeServices) ReportProgress(ctx context.Context, m string) error {
	return s.ReportStep(ctx, "progress: "+m)
}

func (s *fakeServices) GenerateSQL(_ context.Context, q, table string) (string, error) {
	return "SELECT * FROM " + table + " -- " + q, nil
}

func (s *fakeServices) ExecSQL(context.Context, string) ([]map[string]any, error) {
	return s.rows, s.rowErr
}

func (s *fakeServices) Emit(_ context.Context, v capability.Visualization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vis = append(s.vis, v)
	return nil
}

func requirePython(t *testing.T) string {
	t.Helper()
	python, err := osexec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available")
	}
	return python
}

func newExecutor(t *testing.T, svc *fakeServices, mutate func(*Options)) (*Executor, string) {
	t.Helper()
	reg, err := capability.Standard(capability.Services{
		Reporter: svc, Generator: svc, Runner: svc, Visualizations: svc,
	})
	require.NoError(t, err)

	workDir := t.TempDir()
	opts := Options{Registry: reg, WorkDir: workDir, Timeout: 30 * time.Second}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	return e, workDir
}

func assertCleanedUp(t *testing.T, workDir string) {
	t.Helper()
	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "environment directory left behind")
}

func TestExecute_WrappedScriptCallsCapabilities(t *testing.T) {
	requirePython(t)
	svc := &fakeServices{rows: []map[string]any{{"id": 1, "total": 9.5}}}
	e, workDir := newExecutor(t, svc, nil)

	out, err := e.Execute(context.Background(), Request{
		Script:   "rows = exec_sql(gen_sql(question, 'orders'))\nshown = vis_table('Orders', rows)\n",
		Params:   map[string]any{"question": "总收入"},
		CallerID: "test",
	})
	require.NoError(t, err, out.Output+out.Diagnostics)

	assert.True(t, out.OK())
	assert.Equal(t, code.Wrapped, out.Strategy)
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "test", out.CallerID)
	assert.NotEmpty(t, out.InvocationID)
	assert.Contains(t, out.Output, code.StartLine)
	assert.Contains(t, out.Output, code.EndLine)

	require.Len(t, out.Calls, 3)
	assert.Equal(t, []any{"总收入", "orders"}, out.Calls[0].Args)
	assert.Equal(t, "SELECT * FROM orders -- 总收入", out.Calls[0].Result)
	require.Len(t, svc.vis, 1)
	assert.Equal(t, "table", svc.vis[0].Kind)
	assert.Equal(t, "Orders", svc.vis[0].Payload["title"])
	assertCleanedUp(t, workDir)
}

func TestExecute_UncalledFunctionsRunOnce(t *testing.T) {
	requirePython(t)
	tests := []struct {
		name     string
		script   string
		strategy code.Strategy
		want     []string
	}{
		{
			name:     "wrapped appends calls for uncalled definitions",
			script:   "def a():\n    report_step('a')\ndef b():\n    report_step('b')\n    a()\n",
			strategy: code.Wrapped,
			want:     []string{"b", "a"},
		},
		{
			name:     "dynamic invokes entry function",
			script:   "import json\ndef helper():\n    report_step('helper')\ndef main():\n    report_step('main')\n",
			strategy: code.Dynamic,
			want:     []string{"main"},
		},
		{
			name:     "dynamic does not invoke an entry function twice",
			script:   "def main():\n    report_step('main')\n\nif __name__ == '__main__':\n    main()\n",
			strategy: code.Dynamic,
			want:     []string{"main"},
		},
		{
			name:     "dynamic invokes unreferenced functions",
			script:   "print('ready')\ndef a():\n    report_step('a')\n",
			strategy: code.Dynamic,
			want:     []string{"a"},
		},
		{
			name:     "wrapped helper updates a top-level variable it declares global",
			script:   "count = 1\ndef a():\n    global count\n    count += 1\n    report_step(str(count))\n",
			strategy: code.Wrapped,
			want:     []string{"2"},
		},
		{
			name:     "self-recursive function counts as called",
			script:   "def walk(n):\n    report_step(str(n))\n    if n > 0:\n        walk(n - 1)\n",
			strategy: code.Wrapped,
			want:     nil,
		},
		{
			name:     "async entry function",
			script:   "async def main():\n    report_step('async')\n",
			strategy: code.Dynamic,
			want:     []string{"async"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeServices{}
			e, _ := newExecutor(t, svc, nil)
			out, err := e.Execute(context.Background(), Request{Script: tt.script})
			require.NoError(t, err, out.Output+out.Diagnostics)
			assert.Equal(t, tt.strategy, out.Strategy)
			assert.Equal(t, tt.want, svc.steps)
		})
	}
}

func TestExecute_ParamsAreBoundNames(t *testing.T) {
	requirePython(t)
	svc := &fakeServices{}
	e, _ := newExecutor(t, svc, nil)

	_, err := e.Execute(context.Background(), Request{
		Script: "report_step(f'{name} {count}')\n",
		Params: map[string]any{"name": "ü", "count": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ü 3"}, svc.steps)
}

func TestExecute_ClassifiesFailures(t *testing.T) {
	requirePython(t)
	tests := []struct {
		name   string
		script string
		kind   failure.Kind
	}{
		{"index out of range", "x = []\nprint(x[1])\n", failure.IndexOutOfRange},
		{"key error", "d = {}\nprint(d['missing'])\n", failure.NoDataAvailable},
		{"syntax error", "def f(:\n    pass\n", failure.SyntaxError},
		{"name error", "print(undefined_name)\n", failure.RuntimeError},
		{"bare exit code 1", "import sys\nsys.exit(1)\n", failure.ProcessError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, workDir := newExecutor(t, &fakeServices{}, nil)
			out, err := e.Execute(context.Background(), Request{Script: tt.script})
			require.Error(t, err)

			var fe *failure.Error
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.kind, fe.Kind, out.Diagnostics)
			assert.Same(t, fe, out.Failure)
			assert.NotEqual(t, 0, out.ExitCode)
			assertCleanedUp(t, workDir)
		})
	}
}

func TestExecute_CapabilityFailureWins(t *testing.T) {
	requirePython(t)
	svc := &fakeServices{rowErr: failure.New(failure.NoDataAvailable, "no rows for query")}
	e, _ := newExecutor(t, svc, nil)

	out, err := e.Execute(context.Background(), Request{
		Script: "try:\n    exec_sql('SELECT 1')\nexcept CapabilityError as exc:\n    print('caught', exc.kind)\n",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrNoDataAvailable))
	assert.Equal(t, 0, out.ExitCode)
	assert.Contains(t, out.Output+out.Diagnostics, "caught NoDataAvailable")
}

func TestExecute_Timeout(t *testing.T) {
	requirePython(t)
	e, workDir := newExecutor(t, &fakeServices{}, func(o *Options) {
		o.Timeout = time.Second
		o.DrainGrace = 200 * time.Millisecond
	})

	start := time.Now()
	out, err := e.Execute(context.Background(), Request{Script: "import time\nprint('sleeping')\ntime.sleep(30)\n"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ErrTimeout))
	assert.Less(t, time.Since(start), 15*time.Second)
	assert.Contains(t, out.Output, "sleeping")
	assertCleanedUp(t, workDir)
}

func TestExecute_MissingInterpreter(t *testing.T) {
	e, workDir := newExecutor(t, &fakeServices{}, func(o *Options) {
		o.Interpreter = filepath.Join(t.TempDir(), "no-such-python")
	})

	out, err := e.Execute(context.Background(), Request{Script: "x = 1\n"})
	require.Error(t, err)
	assert.Equal(t, failure.ProcessError, failure.KindOf(err))
	assert.Equal(t, -1, out.ExitCode)
	assertCleanedUp(t, workDir)
}

func TestExecute_EnvironmentFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	e, _ := newExecutor(t, &fakeServices{}, func(o *Options) {
		o.WorkDir = filepath.Join(file, "sub")
	})

	_, err := e.Execute(context.Background(), Request{Script: "x = 1\n"})
	require.Error(t, err)
	assert.Equal(t, failure.ProcessError, failure.KindOf(err))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, ErrRegistryRequired)

	reg, err := capability.NewRegistry()
	require.NoError(t, err)
	_, err = New(Options{Registry: reg, Timeout: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidTimeout)
}

func TestOptions_Defaults(t *testing.T) {
	var o Options
	o.applyDefaults()
	assert.Equal(t, "python3", o.Interpreter)
	assert.Equal(t, []string{"-u"}, o.InterpreterArgs)
	assert.Equal(t, 300*time.Second, o.Timeout)
	assert.Equal(t, 2*time.Second, o.DrainGrace)
	assert.Equal(t, os.TempDir(), o.WorkDir)
	assert.NotNil(t, o.Logger)
}
