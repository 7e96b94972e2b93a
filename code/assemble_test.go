package code

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func assemble(t *testing.T, script string, h Harness) string {
	t.Helper()
	out, err := Assemble(script, Analyze(script), h)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	return out
}

func TestAssemble_WrappedReindentsAndCallsUncalled(t *testing.T) {
	script := "import os\nx = 1\ndef a():\n    b()\ndef b():\n    pass\ndef c():\n    pass\n"
	out := assemble(t, script, Harness{})

	for _, want := range []string{
		"def _sb_script():\n",
		"    x = 1\n",
		"    def a():\n        b()\n",
		"    a()\n    c()\n    pass\n",
		"from capabilities import *\n",
		`with open("params.json", encoding="utf-8")`,
		`print("[scriptbridge] script start", flush=True)`,
		`print("[scriptbridge] script end", flush=True)`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("wrapped harness missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "    b()\n    c()") {
		t.Errorf("called function b was invoked again:\n%s", out)
	}
	if strings.Contains(out, "    import os") {
		t.Errorf("import was not hoisted:\n%s", out)
	}
	if i, j := strings.Index(out, "import os\n"), strings.Index(out, "def _sb_script"); i < 0 || i > j {
		t.Errorf("import os not at module scope:\n%s", out)
	}
}

func TestAssemble_WrappedRewritesGlobalsOfWrappedNames(t *testing.T) {
	script := "import os\ncount = 1\nx, (y, z) = 1, (2, 3)\nobj.attr = 4\n" +
		"def a():\n    global count, total  # shared\n    count += 1\n" +
		"def b():\n    global os; global y\n    global total\n    global attr\n"
	out := assemble(t, script, Harness{})

	for _, want := range []string{
		"        nonlocal count; global total  # shared\n",
		"        global os; global y\n",
		"        global total\n",
		"        global attr\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("wrapped harness missing %q:\n%s", want, out)
		}
	}
}

func TestBoundNames(t *testing.T) {
	tests := []struct {
		stmt string
		want []string
	}{
		{"x = 1", []string{"x"}},
		{"x += 1", []string{"x"}},
		{"x //= 2", []string{"x"}},
		{"a, *rest = items", []string{"a", "rest"}},
		{"(a, b), c = pairs", []string{"a", "b", "c"}},
		{"limit: int = 5", []string{"limit"}},
		{"rows[0] = 1", nil},
		{"obj.attr = 1", nil},
		{"f(x=1)", nil},
	}
	for _, tt := range tests {
		got := boundNames(tt.stmt)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("boundNames(%q) = %v, want %v", tt.stmt, got, tt.want)
		}
	}
}

func TestAssemble_WrappedKeepsStringContinuations(t *testing.T) {
	script := "text = \"\"\"\nline two\n\"\"\"\n"
	out := assemble(t, script, Harness{})
	if !strings.Contains(out, "    text = \"\"\"\nline two\n\"\"\"\n") {
		t.Errorf("multi-line string content was re-indented:\n%s", out)
	}
}

func TestAssemble_WrappedHoistsFutureImportsFirst(t *testing.T) {
	out := assemble(t, "from __future__ import annotations\nx = 1\n", Harness{})
	if !strings.HasPrefix(out, "from __future__ import annotations\n") {
		t.Errorf("future import not first:\n%s", out)
	}
}

func TestAssemble_WrappedHoistsMultiLineImports(t *testing.T) {
	out := assemble(t, "from os import (\n    path,\n    sep,\n)\nx = path\n", Harness{})
	if !strings.Contains(out, "\nfrom os import (\n    path,\n    sep,\n)\n") {
		t.Errorf("multi-line import not hoisted intact:\n%s", out)
	}
}

func TestAssemble_WrappedBindsParams(t *testing.T) {
	out := assemble(t, "x = 1\n", Harness{Params: []string{"table", "limit", "not valid", "class", "table"}})
	for _, want := range []string{
		"    limit = _sb_params[\"limit\"]\n    table = _sb_params[\"table\"]\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("wrapped harness missing %q:\n%s", want, out)
		}
	}
	for _, bad := range []string{"class = ", "not valid = "} {
		if strings.Contains(out, bad) {
			t.Errorf("invalid identifier bound: %q", bad)
		}
	}
}

func TestAssemble_Dynamic(t *testing.T) {
	tests := []struct {
		name   string
		script string
		invoke string
	}{
		{
			name:   "entry function never called",
			script: "def main():\n    print('hi')\n",
			invoke: `_SB_INVOKE = ["main"]`,
		},
		{
			name:   "entry function called by script",
			script: "def main():\n    pass\n\nif __name__ == \"__main__\":\n    main()\n",
			invoke: `_SB_INVOKE = []`,
		},
		{
			name:   "unreferenced functions without entry",
			script: "print(1)\ndef helper():\n    return 1\ndef report():\n    helper()\n",
			invoke: `_SB_INVOKE = ["report"]`,
		},
		{
			name:   "referenced function is not invoked",
			script: "class A:\n    pass\ndef build():\n    return A()\nfactory = build\n",
			invoke: `_SB_INVOKE = []`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := assemble(t, tt.script, Harness{})
			if !strings.Contains(out, tt.invoke+"\n") {
				t.Errorf("dynamic harness missing %q:\n%s", tt.invoke, out)
			}
			if !strings.Contains(out, `compile(_SB_SOURCE, "<script>", "exec"`) {
				t.Errorf("dynamic harness does not compile the embedded source:\n%s", out)
			}
		})
	}
}

func TestAssemble_DynamicEmbedsSourceVerbatim(t *testing.T) {
	out := assemble(t, "print(\"<ünïcode>\")\ndef helper():\n    pass\n", Harness{Module: "caps"})
	if !strings.Contains(out, `_SB_SOURCE = "print(\"<ünïcode>\")\ndef helper():\n    pass\n"`) {
		t.Errorf("source not embedded as a literal:\n%s", out)
	}
	if !strings.Contains(out, "import caps as _sb_capabilities\n") {
		t.Errorf("custom module not imported:\n%s", out)
	}
}

func TestAssemble_CompilesUnderPython(t *testing.T) {
	python, err := exec.LookPath("python3")
	if err != nil {
		t.Skip("python3 not available")
	}

	scripts := map[string]string{
		"wrapped": "import os\n\"\"\"doc\"\"\"\nx = '''a\nb'''\ndef f():\n    return x\n",
		"future":  "from __future__ import annotations\ny: int = 2\n",
		"dynamic": "async def main():\n    await helper()\nasync def helper():\n    pass\n",
		"empty":   "",
		"global":  "count = 1\ndef a():\n    global count\n    count += 1\n",
	}
	dir := t.TempDir()
	for name, script := range scripts {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".py")
			out := assemble(t, script, Harness{Params: []string{"limit"}})
			if err := os.WriteFile(path, []byte(out), 0o600); err != nil {
				t.Fatal(err)
			}
			cmd := exec.Command(python, "-m", "py_compile", path)
			if msg, err := cmd.CombinedOutput(); err != nil {
				t.Errorf("py_compile failed: %v\n%s\n%s", err, msg, out)
			}
		})
	}
}
