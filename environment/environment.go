// Package environment materializes the per-invocation working directory a
// script runs in: the bridge shim, capability stubs generated from the
// registry, the parameter file, and later the assembled entry point.
package environment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jonwraymond/scriptbridge/capability"
)

// File names inside an environment directory.
const (
	ShimFile   = "_bridge.py"
	StubFile   = "capabilities.py"
	ParamsFile = "params.json"
	EntryFile  = "main.py"

	// StubModule is the import name of StubFile.
	StubModule = "capabilities"

	dirPrefix = "scriptbridge-"
)

// ErrRemoved is returned when writing to an environment after Remove.
var ErrRemoved = errors.New("environment: already removed")

// Builder creates environments.
type Builder struct {
	// WorkDir is the parent of every environment directory.
	// Default: os.TempDir().
	WorkDir string

	// Registry provides the capability stubs. Required.
	Registry *capability.Registry
}

// Environment is one invocation's working directory. It is owned by a single
// invocation and must be removed when the invocation ends.
type Environment struct {
	// ID is the unique suffix of the directory name.
	ID string

	// Dir is the absolute directory path.
	Dir string

	// HarnessFiles lists the generated support files.
	HarnessFiles []string

	// ParamsFile is the absolute path of the parameter file.
	ParamsFile string

	mu      sync.Mutex
	removed bool
}

// Build creates a fresh directory populated with the shim, the stubs and the
// parameter file. A partially written directory is removed on failure.
func (b Builder) Build(params map[string]any) (*Environment, error) {
	if b.Registry == nil {
		return nil, errors.New("environment: registry is required")
	}
	parent := b.WorkDir
	if parent == "" {
		parent = os.TempDir()
	}

	id := uuid.NewString()
	dir, err := filepath.Abs(filepath.Join(parent, dirPrefix+id))
	if err != nil {
		return nil, fmt.Errorf("environment: resolve directory: %w", err)
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("environment: create work dir: %w", err)
	}
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, fmt.Errorf("environment: create directory: %w", err)
	}

	env := &Environment{ID: id, Dir: dir, ParamsFile: filepath.Join(dir, ParamsFile)}
	if err := env.populate(b.Registry, params); err != nil {
		_ = env.Remove()
		return nil, err
	}
	return env, nil
}

func (e *Environment) populate(reg *capability.Registry, params map[string]any) error {
	var shim, stubs strings.Builder
	if err := renderShim(&shim); err != nil {
		return fmt.Errorf("environment: render shim: %w", err)
	}
	if err := renderStubs(&stubs, reg.Defs()); err != nil {
		return fmt.Errorf("environment: render stubs: %w", err)
	}
	data, err := encodeParams(params)
	if err != nil {
		return err
	}

	files := []struct {
		name string
		data []byte
	}{
		{ShimFile, []byte(shim.String())},
		{StubFile, []byte(stubs.String())},
		{ParamsFile, data},
	}
	for _, f := range files {
		if err := e.write(f.name, f.data); err != nil {
			return err
		}
		if f.name != ParamsFile {
			e.HarnessFiles = append(e.HarnessFiles, filepath.Join(e.Dir, f.name))
		}
	}
	return nil
}

// encodeParams renders params as a UTF-8 JSON object with non-ASCII and HTML
// characters written raw.
func encodeParams(params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(params); err != nil {
		return nil, fmt.Errorf("environment: encode parameters: %w", err)
	}
	return b.Bytes(), nil
}

// WriteEntry writes the assembled entry point and returns its path.
func (e *Environment) WriteEntry(source string) (string, error) {
	if err := e.write(EntryFile, []byte(source)); err != nil {
		return "", err
	}
	return e.EntryPath(), nil
}

// EntryPath returns the path of the entry point file.
func (e *Environment) EntryPath() string {
	return filepath.Join(e.Dir, EntryFile)
}

func (e *Environment) write(name string, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return ErrRemoved
	}
	if err := os.WriteFile(filepath.Join(e.Dir, name), data, 0o600); err != nil {
		return fmt.Errorf("environment: write %s: %w", name, err)
	}
	return nil
}

// Remove deletes the directory recursively. It is safe to call repeatedly.
func (e *Environment) Remove() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return nil
	}
	if err := os.RemoveAll(e.Dir); err != nil {
		return fmt.Errorf("environment: remove %s: %w", e.Dir, err)
	}
	e.removed = true
	return nil
}
