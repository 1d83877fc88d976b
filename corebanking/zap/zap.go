package zap

import (
	"fmt"

	logpkg "github.com/LerianStudio/lib-corebanking/corebanking/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger adapts a zap SugaredLogger to the core log.Logger interface.
type Logger struct {
	sugar *zap.SugaredLogger
}

// Compile-time assertion: *Logger implements log.Logger.
var _ logpkg.Logger = (*Logger)(nil)

// NewProduction returns a production-configured zap logger at the given level.
func NewProduction(level logpkg.Level) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(toZapLevel(level))

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return &Logger{sugar: base.Sugar()}, nil
}

// NewDevelopment returns a development-configured zap logger with debug enabled.
func NewDevelopment() (*Logger, error) {
	base, err := zap.NewDevelopment(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}

	return &Logger{sugar: base.Sugar()}, nil
}

// Wrap adapts an existing zap logger.
func Wrap(base *zap.Logger) *Logger {
	return &Logger{sugar: base.Sugar()}
}

func (l *Logger) must() *zap.SugaredLogger {
	if l == nil || l.sugar == nil {
		return zap.NewNop().Sugar()
	}

	return l.sugar
}

// Debugf implements log.Logger.
func (l *Logger) Debugf(format string, args ...any) {
	l.must().Debugf(format, args...)
}

// Infof implements log.Logger.
func (l *Logger) Infof(format string, args ...any) {
	l.must().Infof(format, args...)
}

// Warnf implements log.Logger.
func (l *Logger) Warnf(format string, args ...any) {
	l.must().Warnf(format, args...)
}

// Errorf implements log.Logger.
func (l *Logger) Errorf(format string, args ...any) {
	l.must().Errorf(format, args...)
}

// WithFields implements log.Logger, attaching alternating key/value context.
//
//nolint:ireturn
func (l *Logger) WithFields(fields ...any) logpkg.Logger {
	return &Logger{sugar: l.must().With(fields...)}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.must().Sync()
}

func toZapLevel(level logpkg.Level) zapcore.Level {
	switch level {
	case logpkg.LevelDebug:
		return zapcore.DebugLevel
	case logpkg.LevelInfo:
		return zapcore.InfoLevel
	case logpkg.LevelWarn:
		return zapcore.WarnLevel
	case logpkg.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
