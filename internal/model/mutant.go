// Package model defines the data structures for mutation testing.
package model

import (
	"fmt"
	"time"
)

// MutantStatus is the final (or pending) state of a mutant.
// Values follow the mutation testing report schema.
type MutantStatus string

const (
	// Pending means the mutant has not been tested yet.
	Pending MutantStatus = "Pending"
	// Killed indicates at least one test failed because of the mutant.
	Killed MutantStatus = "Killed"
	// Survived indicates every test passed with the mutant active.
	Survived MutantStatus = "Survived"
	// NoCoverage indicates no test executes the mutated code.
	NoCoverage MutantStatus = "NoCoverage"
	// Timeout indicates the run exceeded its time budget or hit limit.
	Timeout MutantStatus = "Timeout"
	// RuntimeError indicates the test runner failed while testing the mutant.
	RuntimeError MutantStatus = "RuntimeError"
	// CompileError indicates the mutant does not compile.
	CompileError MutantStatus = "CompileError"
	// Ignored indicates the mutant was excluded from testing.
	Ignored MutantStatus = "Ignored"
)

func (s MutantStatus) String() string {
	return string(s)
}

// Detected reports whether the status counts as detected for the mutation score.
func (s MutantStatus) Detected() bool {
	return s == Killed || s == Timeout
}

// Undetected reports whether the status counts as undetected for the mutation score.
func (s MutantStatus) Undetected() bool {
	return s == Survived || s == NoCoverage
}

// Mutant is a single candidate code change produced by the mutation generator.
// The identifying fields never change after generation; the result fields are
// attached once the mutant reaches a final status.
type Mutant struct {
	ID           string
	FileName     string
	MutatorName  string
	Replacement  string
	Location     Location
	IgnoreReason string

	Status         MutantStatus
	StatusReason   string
	KilledBy       []string
	CoveredBy      []string
	TestsCompleted int
	Static         bool
	Duration       time.Duration
}

// WithResult returns a copy of the mutant with the result fields set.
func (mt Mutant) WithResult(status MutantStatus, reason string) Mutant {
	mt.Status = status
	mt.StatusReason = reason

	return mt
}

// HasResult reports whether the mutant already carries a final status.
func (mt Mutant) HasResult() bool {
	return mt.Status != "" && mt.Status != Pending
}

// Apply returns content with the mutant's replacement spliced in at its location.
func (mt Mutant) Apply(content []byte) ([]byte, error) {
	start, end, err := mt.Location.Offsets(content)
	if err != nil {
		return nil, fmt.Errorf("mutant %s in %s: %w", mt.ID, mt.FileName, err)
	}

	mutated := make([]byte, 0, len(content)-(end-start)+len(mt.Replacement))
	mutated = append(mutated, content[:start]...)
	mutated = append(mutated, mt.Replacement...)
	mutated = append(mutated, content[end:]...)

	return mutated, nil
}
