package exec

import "go.uber.org/zap"

// Logger is an optional structured logger taking alternating key-value
// pairs. *slog.Logger satisfies it directly.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Logging is best-effort and never changes an execution's outcome.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// ZapLogger adapts a *zap.Logger to Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps l. A nil l yields a no-op logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{sugar: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Info implements Logger.
func (z *ZapLogger) Info(msg string, args ...any) { z.sugar.Infow(msg, args...) }

// Warn implements Logger.
func (z *ZapLogger) Warn(msg string, args ...any) { z.sugar.Warnw(msg, args...) }

// Error implements Logger.
func (z *ZapLogger) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }
