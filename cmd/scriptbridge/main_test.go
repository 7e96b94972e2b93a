package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jonwraymond/scriptbridge/capability"
	"github.com/jonwraymond/scriptbridge/failure"
)

func TestCapabilitiesCmd_Lists(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"capabilities"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "gen_sql(query_text, table_ref=None)")
	assert.Contains(t, out.String(), "vis_single_bar(title, data, x_label=None, y_label=None)")
	assert.Equal(t, 10, strings.Count(out.String(), "\n"))
}

func TestCapabilitiesCmd_Search(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"capabilities", "--search", "pie", "--limit", "10"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "vis_pie_chart(title, data)")
}

func TestLoadParams(t *testing.T) {
	file := filepath.Join(t.TempDir(), "params.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"question":"总数","limit":5}`), 0o600))

	params, err := loadParams(file, []string{"limit=10", "table=orders", `tags=["a","b"]`})
	require.NoError(t, err)
	assert.Equal(t, "总数", params["question"])
	assert.Equal(t, float64(10), params["limit"])
	assert.Equal(t, "orders", params["table"])
	assert.Equal(t, []any{"a", "b"}, params["tags"])

	_, err = loadParams("", []string{"novalue"})
	assert.Error(t, err)
}

func TestLocalServices_Fixtures(t *testing.T) {
	file := filepath.Join(t.TempDir(), "rows.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
"SELECT  region,   total FROM\tsales":
  - {region: north, total: 10}
  - {region: south, total: 7}
"SELECT 1 WHERE false": []
? |
  SELECT name
    FROM users
: [{name: ada}]
`), 0o600))

	fixtures, err := loadFixtures(file)
	require.NoError(t, err)
	svc := &localServices{log: zap.NewNop(), fixtures: fixtures}
	ctx := context.Background()

	rows, err := svc.ExecSQL(ctx, "SELECT region, total FROM sales")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "north", rows[0]["region"])

	rows, err = svc.ExecSQL(ctx, "SELECT 1 WHERE false")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = svc.ExecSQL(ctx, "SELECT name FROM users")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ada", rows[0]["name"])

	_, err = svc.ExecSQL(ctx, "SELECT missing")
	assert.True(t, errors.Is(err, failure.ErrNoDataAvailable))

	sql, err := svc.GenerateSQL(ctx, "revenue by region", "sales")
	require.NoError(t, err)
	assert.Equal(t, "revenue by region", sql)
}

func TestLocalServices_EmitWritesJSONLines(t *testing.T) {
	var out bytes.Buffer
	svc := &localServices{log: zap.NewNop(), out: &out}
	require.NoError(t, svc.Emit(context.Background(), capability.Visualization{
		Kind:    "textbox",
		Payload: map[string]any{"content": "hi"},
	}))
	assert.JSONEq(t, `{"kind":"textbox","payload":{"content":"hi"}}`, strings.TrimSpace(out.String()))
}

func TestBuildOptions_Precedence(t *testing.T) {
	t.Setenv(envPython, "/env/python")
	t.Setenv(envTimeout, "45s")
	t.Setenv(envWorkDir, "/env/work")

	config := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(config, []byte("interpreter: /config/python\n"), 0o600))

	opts, err := buildOptions(runFlags{configFile: config, timeout: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, "/config/python", opts.Interpreter)
	assert.Equal(t, time.Minute, opts.Timeout)
	assert.Equal(t, "/env/work", opts.WorkDir)

	t.Setenv(envTimeout, "soon")
	_, err = buildOptions(runFlags{})
	assert.Error(t, err)
}

func TestCallCmd(t *testing.T) {
	file := filepath.Join(t.TempDir(), "rows.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`"SELECT 1": [{n: 1}]`+"\n"), 0o600))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"call", capability.ExecSQL, "--fixtures", file, "--arg", "sql=SELECT 1"})
	require.NoError(t, root.Execute())
	assert.JSONEq(t, `[{"n":1}]`, strings.TrimSpace(out.String()))

	root = newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"call", capability.ExecSQL, "--arg", "query=SELECT 1"})
	err := root.Execute()
	assert.ErrorIs(t, err, capability.ErrInvalidArguments)
}
