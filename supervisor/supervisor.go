// Package supervisor runs one interpreter process under a hard time ceiling
// and guarantees it is gone, together with its descendants, on every path.
//
// The child's error stream is merged into its output stream through a single
// pipe, so diagnostics and protocol lines arrive in the order they were
// written. The caller attaches to the output and input streams while the
// supervisor waits for exit.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Defaults applied to a zero Spec.
const (
	DefaultTimeout    = 300 * time.Second
	DefaultDrainGrace = 2 * time.Second
)

var (
	// ErrTimeout is returned when the process outlives its ceiling.
	ErrTimeout = errors.New("supervisor: time ceiling exceeded")

	// ErrAbandoned is recorded as Result.AttachErr when the attach function
	// did not return within the drain grace period after a kill.
	ErrAbandoned = errors.New("supervisor: attach abandoned after kill")
)

// utf8Env is appended to the child environment unless already set.
var utf8Env = []string{
	"PYTHONIOENCODING=utf-8",
	"PYTHONUTF8=1",
	"PYTHONUNBUFFERED=1",
	"PYTHONDONTWRITEBYTECODE=1",
	"LC_ALL=C.UTF-8",
}

// Spec describes a process to run.
type Spec struct {
	// Path is the executable, resolved through PATH when not absolute.
	Path string

	// Args are the arguments after the executable name.
	Args []string

	// Dir is the working directory.
	Dir string

	// Env replaces the inherited environment when non-nil. The UTF-8
	// variables are added either way.
	Env []string

	// Timeout is the wall-clock ceiling. Default: DefaultTimeout.
	Timeout time.Duration

	// DrainGrace bounds how long attach may run after a timeout kill.
	// Default: DefaultDrainGrace.
	DrainGrace time.Duration
}

// AttachFunc serves the child's merged output and its input. It must return
// once out reaches EOF or fails.
type AttachFunc func(out io.Reader, in io.Writer) error

// Result describes a finished process.
type Result struct {
	// PID of the child, 0 if it never started.
	PID int

	// ExitCode is the exit status, or -1 if killed by a signal.
	ExitCode int

	// Duration is the time from start until the child was reaped.
	Duration time.Duration

	// TimedOut reports that the ceiling expired before the child exited.
	TimedOut bool

	// AttachErr is the error returned by the attach function, if any.
	AttachErr error
}

// Logger is an optional structured logger. *slog.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Supervisor runs processes. The zero value is ready to use.
//
// Contract:
// - Concurrency: safe for concurrent Run calls.
// - Cleanup: when Run returns, the process group has been killed and the
// output pipe closed, whatever the outcome.
type Supervisor struct {
	Logger Logger
}

// Run starts spec, hands its streams to attach, and waits for exit or the
// ceiling. A nonzero exit is reported in Result, not as an error. It returns
// ErrTimeout when the ceiling expired and ctx.Err() when ctx was canceled.
func (s *Supervisor) Run(ctx context.Context, spec Spec, attach AttachFunc) (Result, error) {
	res := Result{ExitCode: -1}
	if spec.Path == "" {
		return res, errors.New("supervisor: path is required")
	}
	if spec.Timeout <= 0 {
		spec.Timeout = DefaultTimeout
	}
	if spec.DrainGrace <= 0 {
		spec.DrainGrace = DefaultDrainGrace
	}
	if attach == nil {
		attach = discard
	}

	ctx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	cmd := exec.Command(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = withUTF8(spec.Env)
	setProcessGroup(cmd)

	pr, pw, err := os.Pipe()
	if err != nil {
		return res, fmt.Errorf("supervisor: output pipe: %w", err)
	}
	defer pr.Close()
	cmd.Stdout = pw
	cmd.Stderr = pw

	stdin, err := cmd.StdinPipe()
	if err != nil {
		pw.Close()
		return res, fmt.Errorf("supervisor: input pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		pw.Close()
		return res, fmt.Errorf("supervisor: start %s: %w", spec.Path, err)
	}
	// The child holds its own copy; ours must go so EOF can arrive.
	pw.Close()
	res.PID = cmd.Process.Pid
	s.info("process started", "pid", res.PID, "path", spec.Path)

	defer func() {
		if kerr := killProcessTree(cmd.Process); kerr != nil {
			s.warn("kill process group", "pid", res.PID, "error", kerr)
		}
	}()

	attachDone := make(chan error, 1)
	go func() { attachDone <- attach(pr, stdin) }()

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	select {
	case <-waitDone:
		res.Duration = time.Since(start)
		res.ExitCode = cmd.ProcessState.ExitCode()
		// Descendants may still hold the pipe open.
		_ = killProcessTree(cmd.Process)

		select {
		case res.AttachErr = <-attachDone:
		case <-ctx.Done():
			pr.Close()
			res.AttachErr = s.drain(attachDone, spec.DrainGrace)
		}
		s.info("process exited", "pid", res.PID, "exit_code", res.ExitCode, "duration", res.Duration)
		return res, nil

	case <-ctx.Done():
		_ = killProcessTree(cmd.Process)
		<-waitDone
		res.Duration = time.Since(start)
		if cmd.ProcessState != nil {
			res.ExitCode = cmd.ProcessState.ExitCode()
		}
		pr.Close()
		res.AttachErr = s.drain(attachDone, spec.DrainGrace)

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			res.TimedOut = true
			s.warn("process killed at time ceiling", "pid", res.PID, "timeout", spec.Timeout)
			return res, ErrTimeout
		}
		s.warn("process killed on cancellation", "pid", res.PID)
		return res, ctx.Err()
	}
}

func (s *Supervisor) drain(done <-chan error, grace time.Duration) error {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		s.warn("attach did not finish after kill", "grace", grace)
		return ErrAbandoned
	}
}

func (s *Supervisor) info(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Info(msg, args...)
	}
}

func (s *Supervisor) warn(msg string, args ...any) {
	if s.Logger != nil {
		s.Logger.Warn(msg, args...)
	}
}

func discard(out io.Reader, _ io.Writer) error {
	_, err := io.Copy(io.Discard, out)
	return err
}

// withUTF8 returns env, or the inherited environment when env is nil, with
// the UTF-8 variables added where the key is not already present.
func withUTF8(env []string) []string {
	if env == nil {
		env = os.Environ()
	}
	out := append([]string(nil), env...)
	for _, kv := range utf8Env {
		key := kv[:strings.IndexByte(kv, '=')+1]
		present := false
		for _, existing := range env {
			if strings.HasPrefix(existing, key) {
				present = true
				break
			}
		}
		if !present {
			out = append(out, kv)
		}
	}
	return out
}
