package corebanking

// BatchFailure reports one failed item of a batch sweep.
type BatchFailure struct {
	Key string
	Err error
}

// BatchResult summarizes a batch sweep. Item failures are isolated: the sweep
// continues past them and reports them here instead of aborting.
type BatchResult struct {
	Processed int
	Skipped   int
	Failures  []BatchFailure
}

// Fail records a failed item.
func (r *BatchResult) Fail(key string, err error) {
	r.Failures = append(r.Failures, BatchFailure{Key: key, Err: err})
}
