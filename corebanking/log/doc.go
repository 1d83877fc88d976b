// Package log defines the logging contract used across the core.
//
// Engines log through the Logger interface so the host service can plug its
// own implementation. GoLogger wraps the standard library logger and NoneLogger
// discards everything; a zap-backed implementation lives in the zap subpackage.
package log
