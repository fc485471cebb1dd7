package blockrev

import "time"

// Metrics receives pipeline measurements.
//
// ObserveOperation is called from I/O goroutines and must be safe for
// concurrent use. A nil Metrics records nothing.
type Metrics interface {
	// ObserveOperation records one completed read, write or sync.
	ObserveOperation(kind OpKind, bytes int, d time.Duration, err error)
	// ObserveCancel records the outcome of cancelling outstanding operations.
	ObserveCancel(res CancelResult)
	// ObserveRun records a finished run.
	ObserveRun(stats Stats, d time.Duration, err error)
}

func observeOperation(m Metrics, kind OpKind, bytes int, d time.Duration, err error) {
	if m != nil {
		m.ObserveOperation(kind, bytes, d, err)
	}
}

func observeCancel(m Metrics, res CancelResult) {
	if m != nil {
		m.ObserveCancel(res)
	}
}

func observeRun(m Metrics, stats Stats, d time.Duration, err error) {
	if m != nil {
		m.ObserveRun(stats, d, err)
	}
}
