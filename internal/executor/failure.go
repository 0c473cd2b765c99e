package executor

import "sync/atomic"

// FailureFlag is a single executor's monotonic clean->dirty failure flag.
// It never transitions back to clean: once a stage fails, it stays
// failed for the rest of the run.
type FailureFlag struct {
	failed atomic.Bool
}

// MarkFailed transitions the flag to failed. Idempotent.
func (f *FailureFlag) MarkFailed() {
	f.failed.Store(true)
}

// Failed reports the current state. Readers may observe a stale "clean"
// result for up to one timeout interval; the next precheck cycle
// re-checks, which is the liveness argument the pipeline's deadlock-
// freedom invariant relies on.
func (f *FailureFlag) Failed() bool {
	return f.failed.Load()
}

// FailureObserver is the read-only view every executor's precheck
// consults to answer "has any peer already failed?" It holds no locks:
// each FailureFlag is independently monotonic, so observers never need to
// coordinate with writers beyond the atomic load/store already built into
// FailureFlag.
type FailureObserver struct {
	flags []*FailureFlag
}

// NewFailureObserver builds an observer over the given flags, one per
// executor in the pipeline.
func NewFailureObserver(flags []*FailureFlag) *FailureObserver {
	return &FailureObserver{flags: flags}
}

// AnyFailed reports whether any executor sharing this observer has
// recorded a failure.
func (o *FailureObserver) AnyFailed() bool {
	for _, f := range o.flags {
		if f.Failed() {
			return true
		}
	}
	return false
}
