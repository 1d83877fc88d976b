// Package backoff provides exponential backoff with full jitter for bounded
// retry loops, such as re-running an optimistic balance update after a
// version conflict.
package backoff
