package model

import "time"

// PlanKind distinguishes the two kinds of mutant test plans.
type PlanKind int

const (
	// PlanEarlyResult means the mutant's status is already known and no test runs.
	PlanEarlyResult PlanKind = iota
	// PlanRun means the mutant must be tested in a worker.
	PlanRun
)

func (k PlanKind) String() string {
	switch k {
	case PlanEarlyResult:
		return "early-result"
	case PlanRun:
		return "run"
	default:
		return "unknown"
	}
}

// MutantTestPlan is the decision taken for one mutant in one run.
// For PlanEarlyResult the Mutant carries its final status; for PlanRun the
// RunOptions describe how to test it.
type MutantTestPlan struct {
	Kind       PlanKind
	Mutant     Mutant
	RunOptions MutantRunOptions
	// NetTime is the summed dry-run time of the tests the mutant will run.
	NetTime time.Duration
}
