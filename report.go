package ddns

import (
	"errors"
	"time"
)

// Result is the outcome of one target in a cycle. Exactly one of Outcome and Err is meaningful.
type Result struct {
	Target  Target
	Outcome Outcome
	Err     error
}

// Report describes a reconciliation cycle.
// A cycle aborted by discovery or zone resolution has a partial report.
type Report struct {
	Started   time.Time
	Addresses map[Family]Address
	Results   []Result
}

// Err joins the errors of every failed target, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

// Count returns how many targets ended with action a. Failed targets are not counted.
func (r Report) Count(a Action) int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil && res.Outcome.Action == a {
			n++
		}
	}
	return n
}

// Failed returns how many targets could not be reconciled.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}
