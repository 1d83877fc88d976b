// Package zap provides a go.uber.org/zap implementation of the log.Logger
// interface used by the core engines.
package zap
