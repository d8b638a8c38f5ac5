package domain

import "time"

// CheckResult is the outcome of checking one product. Err is nil on success;
// otherwise Observation is nil and nothing was written.
type CheckResult struct {
	ProductID   uint
	Observation *Observation
	Transitions TransitionSet
	Deliveries  []DeliveryOutcome
	Err         error
	StartedAt   time.Time
	Duration    time.Duration
}

func (r CheckResult) OK() bool {
	return r.Err == nil
}

func (r CheckResult) FailureKind() ErrorKind {
	return KindOf(r.Err)
}

// BatchResult collects the per-product outcomes of a sweep. ListErr is set when
// the active product list could not be loaded at all.
type BatchResult struct {
	RunID   string
	Results []CheckResult
	ListErr error
}

func (b BatchResult) Summary() (checked, failed, skipped, alerts int) {
	for _, r := range b.Results {
		switch {
		case r.OK():
			checked++
		case r.FailureKind() == KindAlreadyChecking || r.FailureKind() == KindCancelled:
			skipped++
		default:
			failed++
		}
		alerts += len(r.Deliveries)
	}
	return checked, failed, skipped, alerts
}
