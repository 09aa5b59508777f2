// Package logging provides the structured JSON logger used across the
// simulation kernel. Log lines carry typed fields (model, scenario, block,
// sim_time) so batch runs remain greppable per scenario; log output goes to
// stderr by default, keeping stdout free for result tables.
package logging

import (
	"io"
	"sync"
	"time"
)

// Level orders log severities from chattiest to most urgent.
type Level int

const (
	// DebugLevel traces per-step engine activity; off outside development.
	DebugLevel Level = iota
	// InfoLevel is the default: run lifecycle and fault injections.
	InfoLevel
	// WarnLevel flags recoverable oddities worth a look after the batch.
	WarnLevel
	// ErrorLevel marks aborted runs; a clean batch logs none of these.
	ErrorLevel
)

// String returns the level label emitted in log entries.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel reads a level name in either case, accepting "warning" as an
// alias. Unrecognized names fall back to InfoLevel.
func ParseLevel(s string) Level {
	switch s {
	case "DEBUG", "debug":
		return DebugLevel
	case "INFO", "info":
		return InfoLevel
	case "WARN", "warn", "WARNING", "warning":
		return WarnLevel
	case "ERROR", "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Field is one key-value attribute of a log entry. Build them with the
// constructors in this package rather than by hand.
type Field struct {
	Key   string
	Value any
}

// Logger is the structured logging interface the engine depends on.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger carrying the given fields on every
	// entry, used to scope a logger to one scenario run.
	With(fields ...Field) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// JSONLogger writes one JSON object per line to a writer. Safe for
// concurrent use by parallel scenario workers sharing one writer.
type JSONLogger struct {
	writer io.Writer
	level  Level
	fields []Field
	mu     sync.Mutex
}

// LogEntry is the wire form of one log line.
type LogEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NopLogger discards everything. It is the default for library callers that
// pass no logger.
type NopLogger struct{}

func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Warn(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (n NopLogger) With(fields ...Field) Logger     { return n }
func (NopLogger) SetLevel(level Level)              {}
func (NopLogger) GetLevel() Level                   { return InfoLevel }

// NewNopLogger returns a logger that discards all output.
func NewNopLogger() Logger {
	return NopLogger{}
}

// TimedOperation measures one operation from StartTimer to one of the End
// calls, attaching the elapsed time as a latency field.
type TimedOperation struct {
	logger Logger
	msg    string
	start  time.Time
	fields []Field
}
