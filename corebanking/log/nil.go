package log

// NoneLogger discards every log entry. It is the default logger for engines
// constructed without an explicit one.
type NoneLogger struct{}

// Debugf implements Logger and discards the entry.
func (NoneLogger) Debugf(string, ...any) {}

// Infof implements Logger and discards the entry.
func (NoneLogger) Infof(string, ...any) {}

// Warnf implements Logger and discards the entry.
func (NoneLogger) Warnf(string, ...any) {}

// Errorf implements Logger and discards the entry.
func (NoneLogger) Errorf(string, ...any) {}

// WithFields implements Logger and returns the same discarding logger.
//
//nolint:ireturn
func (n NoneLogger) WithFields(...any) Logger { return n }
