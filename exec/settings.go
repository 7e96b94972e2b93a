package exec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/scriptbridge/classify"
)

// Settings is the file form of the tunable Options. Zero values leave the
// corresponding option untouched.
//
// Example:
//
//	interpreter: /usr/bin/python3
//	timeout: 2m
//	vocabulary:
//	  no_data:
//	    - "no rows"
type Settings struct {
	Interpreter     string              `yaml:"interpreter"`
	InterpreterArgs []string            `yaml:"interpreter_args"`
	Timeout         Duration            `yaml:"timeout"`
	DrainGrace      Duration            `yaml:"drain_grace"`
	WorkDir         string              `yaml:"work_dir"`
	Vocabulary      classify.Vocabulary `yaml:"vocabulary"`
}

// Duration is a time.Duration written as a Go duration string ("90s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// LoadSettings reads Settings from a YAML file.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("exec: read settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes Settings from YAML. Unknown keys are rejected.
func ParseSettings(data []byte) (Settings, error) {
	var s Settings
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("exec: parse settings: %w", err)
	}
	return s, nil
}

// Apply overlays the non-zero settings onto o.
func (s Settings) Apply(o *Options) {
	if s.Interpreter != "" {
		o.Interpreter = s.Interpreter
	}
	if s.InterpreterArgs != nil {
		o.InterpreterArgs = append([]string(nil), s.InterpreterArgs...)
	}
	if s.Timeout != 0 {
		o.Timeout = time.Duration(s.Timeout)
	}
	if s.DrainGrace != 0 {
		o.DrainGrace = time.Duration(s.DrainGrace)
	}
	if s.WorkDir != "" {
		o.WorkDir = s.WorkDir
	}
	overlay(&o.Vocabulary.ErrorMarkers, s.Vocabulary.ErrorMarkers)
	overlay(&o.Vocabulary.IndexOutOfRange, s.Vocabulary.IndexOutOfRange)
	overlay(&o.Vocabulary.NoData, s.Vocabulary.NoData)
	overlay(&o.Vocabulary.Empty, s.Vocabulary.Empty)
	overlay(&o.Vocabulary.Syntax, s.Vocabulary.Syntax)
	overlay(&o.Vocabulary.Runtime, s.Vocabulary.Runtime)
	overlay(&o.Vocabulary.Process, s.Vocabulary.Process)
}

func overlay(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = append([]string(nil), src...)
	}
}
