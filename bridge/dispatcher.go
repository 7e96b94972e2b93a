package bridge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jonwraymond/scriptbridge/failure"
)

// ErrConfiguration is returned by New for an incomplete Config.
var ErrConfiguration = errors.New("bridge: invalid configuration")

// Invoker runs capability calls. *capability.Registry implements it.
type Invoker interface {
	Invoke(ctx context.Context, name string, args []any) (any, error)
}

// LineSink receives every output line that is not a bridge request.
// *classify.Transcript implements it.
type LineSink interface {
	Line(text string)
}

// Logger is an optional structured logger. *slog.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config configures a Dispatcher.
type Config struct {
	// Invoker executes capability calls. Required.
	Invoker Invoker

	// Codec encodes payloads. Default: JSONCodec.
	Codec Codec

	// Logger receives per-call events. Optional.
	Logger Logger
}

// CallRecord captures one capability call made by a script.
type CallRecord struct {
	// ID is the request id chosen by the script.
	ID int64 `json:"id"`

	// Capability is the called capability name.
	Capability string `json:"capability"`

	// Args are the positional arguments as sent.
	Args []any `json:"args,omitempty"`

	// Result is the value returned to the script on success.
	Result any `json:"result,omitempty"`

	// Error is the failure message sent to the script, if any.
	Error string `json:"error,omitempty"`

	// Kind is the failure kind for classified capability failures.
	Kind failure.Kind `json:"kind,omitempty"`

	// DurationMs is the handler execution time in milliseconds.
	DurationMs int64 `json:"durationMs"`
}

// Report summarizes the traffic of one session.
type Report struct {
	// Requests counts request lines, including malformed ones.
	Requests int

	// Calls lists decoded calls in arrival order.
	Calls []CallRecord

	// Failure is the first classified failure returned by a capability.
	// It takes precedence over any exit-status heuristics.
	Failure *failure.Error
}

// Dispatcher creates sessions that share an Invoker and Codec.
//
// Contract:
// - Concurrency: safe for concurrent use; each Session is single-use.
// - Errors: capability errors are sent to the script, never returned.
type Dispatcher struct {
	invoker Invoker
	codec   Codec
	logger  Logger
}

// New creates a Dispatcher.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("%w: invoker is required", ErrConfiguration)
	}
	d := &Dispatcher{invoker: cfg.Invoker, codec: cfg.Codec, logger: cfg.Logger}
	if d.codec == nil {
		d.codec = JSONCodec{}
	}
	return d, nil
}

// Session starts serving state for one script run. Non-request lines go to
// sink, which may be nil.
func (d *Dispatcher) Session(sink LineSink) *Session {
	return &Session{d: d, sink: sink}
}

// Session serves the protocol for one script run.
type Session struct {
	d    *Dispatcher
	sink LineSink

	mu     sync.Mutex
	report Report
}

// Report returns a snapshot of the traffic so far.
func (s *Session) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.report
	r.Calls = append([]CallRecord(nil), s.report.Calls...)
	return r
}

// Serve reads lines from r until EOF, answering requests on w. It returns nil
// on EOF, or the read or write error that ended serving. A reply that cannot
// be written means the script is gone.
func (s *Session) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	for {
		text, err := br.ReadString('\n')
		if text != "" {
			if werr := s.handleLine(ctx, strings.TrimRight(text, "\r\n"), w); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("bridge: read: %w", err)
		}
	}
}

func (s *Session) handleLine(ctx context.Context, text string, w io.Writer) error {
	i := strings.Index(text, RequestMarker)
	if i < 0 {
		s.emit(text)
		return nil
	}
	// Interleaved stderr text can precede the marker on the same line.
	if i > 0 {
		s.emit(text[:i])
	}
	resp := s.dispatch(ctx, []byte(text[i+len(RequestMarker):]))
	return s.reply(resp, w)
}

func (s *Session) emit(text string) {
	if s.sink != nil {
		s.sink.Line(text)
	}
}

func (s *Session) dispatch(ctx context.Context, payload []byte) Response {
	s.mu.Lock()
	s.report.Requests++
	s.mu.Unlock()

	req, err := s.d.codec.DecodeRequest(payload)
	if err != nil {
		s.warn("malformed bridge request", "error", err)
		return Response{ID: MalformedID, Error: err.Error()}
	}

	start := time.Now()
	result, err := s.invoke(ctx, req)
	rec := CallRecord{
		ID:         req.ID,
		Capability: req.Function,
		Args:       req.Args,
		DurationMs: time.Since(start).Milliseconds(),
	}

	resp := Response{ID: req.ID}
	if err != nil {
		resp.Error = err.Error()
		var fe *failure.Error
		if errors.As(err, &fe) {
			resp.Kind = fe.Kind
		}
		rec.Error, rec.Kind = resp.Error, resp.Kind
		s.record(rec, fe)
		s.warn("capability failed", "capability", req.Function, "id", req.ID, "error", err)
		return resp
	}

	resp.Result = result
	rec.Result = result
	s.record(rec, nil)
	s.info("capability called", "capability", req.Function, "id", req.ID, "duration_ms", rec.DurationMs)
	return resp
}

// invoke runs one call, turning a handler panic into an UnknownError so the
// script gets a reply and the host keeps serving.
func (s *Session) invoke(ctx context.Context, req Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = failure.New(failure.UnknownError, "capability %s panicked: %v", req.Function, r)
		}
	}()
	return s.d.invoker.Invoke(ctx, req.Function, req.Args)
}

func (s *Session) record(rec CallRecord, fe *failure.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Calls = append(s.report.Calls, rec)
	if fe != nil && s.report.Failure == nil {
		s.report.Failure = fe
	}
}

func (s *Session) reply(resp Response, w io.Writer) error {
	data, err := s.d.codec.EncodeResponse(resp)
	if err != nil {
		s.warn("encode bridge response", "id", resp.ID, "error", err)
		data, err = s.d.codec.EncodeResponse(Response{
			ID:    resp.ID,
			Error: fmt.Sprintf("result not encodable: %v", err),
		})
		if err != nil {
			return fmt.Errorf("bridge: encode response: %w", err)
		}
	}

	line := make([]byte, 0, len(ResponseMarker)+len(data)+1)
	line = append(line, ResponseMarker...)
	line = append(line, data...)
	line = append(line, '\n')
	if _, err := w.Write(line); err != nil {
		return fmt.Errorf("bridge: write response: %w", err)
	}
	return nil
}

func (s *Session) info(msg string, args ...any) {
	if s.d.logger != nil {
		s.d.logger.Info(msg, args...)
	}
}

func (s *Session) warn(msg string, args ...any) {
	if s.d.logger != nil {
		s.d.logger.Warn(msg, args...)
	}
}
