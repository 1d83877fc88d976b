package log

import (
	"fmt"
	"log"
	"strings"
)

// Logger is the minimal leveled logging interface consumed by the engines.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	WithFields(fields ...any) Logger
}

// Level represents log severity. Higher values are more verbose: a logger at
// LevelInfo emits error, warn, and info entries but suppresses debug.
type Level uint8

const (
	// LevelError enables only error entries.
	LevelError Level = iota
	// LevelWarn enables error and warn entries.
	LevelWarn
	// LevelInfo enables error, warn, and info entries.
	LevelInfo
	// LevelDebug enables everything.
	LevelDebug
)

// String returns the string representation of a log level.
func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name to a Level constant.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(name) {
	case "error":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	}

	return LevelError, fmt.Errorf("not a valid level: %q", name)
}

// controlCharReplacer escapes control characters that can forge fake log
// entries or inject false audit lines (CWE-117).
var controlCharReplacer = strings.NewReplacer(
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func sanitize(s string) string {
	return controlCharReplacer.Replace(s)
}

func sanitizeArgs(args []any) []any {
	sanitized := make([]any, len(args))
	for i, arg := range args {
		if s, ok := arg.(string); ok {
			sanitized[i] = sanitize(s)
		} else {
			sanitized[i] = arg
		}
	}

	return sanitized
}

// GoLogger is the standard library implementation of Logger. String arguments
// are sanitized against log injection.
type GoLogger struct {
	Level  Level
	fields []any
}

// Enabled reports whether entries at the given level are emitted.
func (l *GoLogger) Enabled(level Level) bool {
	if l == nil {
		return false
	}

	return l.Level >= level
}

func (l *GoLogger) emit(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}

	prefix := level.String() + ": "
	if len(l.fields) > 0 {
		prefix = fmt.Sprintf("%s%v ", prefix, sanitizeArgs(l.fields))
	}

	log.Print(prefix + fmt.Sprintf(sanitize(format), sanitizeArgs(args)...))
}

// Debugf implements Logger.
func (l *GoLogger) Debugf(format string, args ...any) {
	l.emit(LevelDebug, format, args...)
}

// Infof implements Logger.
func (l *GoLogger) Infof(format string, args ...any) {
	l.emit(LevelInfo, format, args...)
}

// Warnf implements Logger.
func (l *GoLogger) Warnf(format string, args ...any) {
	l.emit(LevelWarn, format, args...)
}

// Errorf implements Logger.
func (l *GoLogger) Errorf(format string, args ...any) {
	l.emit(LevelError, format, args...)
}

// WithFields returns a child logger carrying additional key/value context.
//
//nolint:ireturn
func (l *GoLogger) WithFields(fields ...any) Logger {
	if l == nil {
		return &GoLogger{}
	}

	combined := make([]any, 0, len(l.fields)+len(fields))
	combined = append(combined, l.fields...)
	combined = append(combined, fields...)

	return &GoLogger{Level: l.Level, fields: combined}
}
