package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds pipeline-run-scoped logging context: which stage and
// operation is active, and which file the run is processing, so every log
// line emitted during that run carries the same correlation fields without
// every call site having to pass them explicitly.
type LogContext struct {
	Stage     string // envelope, privkey, chunk, fec, framer, frame, manifest
	Op        string // seal, unseal, encode, decode, assemble, disassemble
	InputPath string
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a run processing inputPath.
func NewLogContext(inputPath string) *LogContext {
	return &LogContext{
		InputPath: inputPath,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		Stage:     lc.Stage,
		Op:        lc.Op,
		InputPath: lc.InputPath,
		StartTime: lc.StartTime,
	}
}

// WithStage returns a copy with the stage set
func (lc *LogContext) WithStage(stage string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Stage = stage
	}
	return clone
}

// WithOp returns a copy with the operation set
func (lc *LogContext) WithOp(op string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Op = op
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
