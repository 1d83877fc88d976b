// Package schedule runs the batch entry points on a cron cadence.
//
// A Scheduler invokes registered jobs at the times their 5-field cron
// expression matches, passing the scheduled tick as the job's explicit as-of
// time so a run processes the same period regardless of when it actually
// executes. Job failures are logged and never stop the scheduler; the
// engines' batch operations isolate per-item failures themselves.
package schedule
