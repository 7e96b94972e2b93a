package exec

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseSettings_Apply(t *testing.T) {
	s, err := ParseSettings([]byte(`
interpreter: /opt/python/bin/python3
interpreter_args: ["-u", "-X", "utf8"]
timeout: 90s
drain_grace: 500ms
vocabulary:
  no_data:
    - "no rows"
`))
	if err != nil {
		t.Fatalf("ParseSettings() error = %v", err)
	}

	o := Options{WorkDir: "/keep"}
	s.Apply(&o)

	if o.Interpreter != "/opt/python/bin/python3" {
		t.Errorf("Interpreter = %q", o.Interpreter)
	}
	if len(o.InterpreterArgs) != 3 || o.InterpreterArgs[2] != "utf8" {
		t.Errorf("InterpreterArgs = %v", o.InterpreterArgs)
	}
	if o.Timeout != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", o.Timeout)
	}
	if o.DrainGrace != 500*time.Millisecond {
		t.Errorf("DrainGrace = %v, want 500ms", o.DrainGrace)
	}
	if o.WorkDir != "/keep" {
		t.Errorf("WorkDir = %q, want unchanged", o.WorkDir)
	}
	if len(o.Vocabulary.NoData) != 1 || o.Vocabulary.NoData[0] != "no rows" {
		t.Errorf("Vocabulary.NoData = %v", o.Vocabulary.NoData)
	}
	if o.Vocabulary.Syntax != nil {
		t.Errorf("Vocabulary.Syntax = %v, want nil so defaults apply", o.Vocabulary.Syntax)
	}
}

func TestParseSettings_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "interpreterr: python\n"},
		{"bad duration", "timeout: soon\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSettings([]byte(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseSettings_Empty(t *testing.T) {
	s, err := ParseSettings(nil)
	if err != nil {
		t.Fatalf("ParseSettings(nil) error = %v", err)
	}
	if s.Interpreter != "" || s.Timeout != 0 {
		t.Errorf("expected zero settings, got %+v", s)
	}
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	if err := os.WriteFile(path, []byte("timeout: 2m\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if time.Duration(s.Timeout) != 2*time.Minute {
		t.Errorf("Timeout = %v, want 2m", time.Duration(s.Timeout))
	}

	if _, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
