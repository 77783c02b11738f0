package domain

import (
	"log/slog"
	"sort"
	"time"

	m "mutiny.dev/pkg/mutiny/internal/model"
)

// TestCoverage indexes the coverage reported by the dry run.
type TestCoverage struct {
	hasCoverage   bool
	static        map[string]bool
	hits          map[string]int
	testsByID     map[string]m.TestResult
	testsByMutant map[string][]m.TestResult
	tests         []m.TestResult
}

// NewTestCoverage builds the index from the dry run tests and coverage. Nil
// coverage means coverage analysis was off.
func NewTestCoverage(tests []m.TestResult, coverage *m.CoverageData) *TestCoverage {
	tc := &TestCoverage{
		hasCoverage:   coverage != nil,
		static:        map[string]bool{},
		hits:          map[string]int{},
		testsByID:     make(map[string]m.TestResult, len(tests)),
		testsByMutant: map[string][]m.TestResult{},
		tests:         tests,
	}

	for _, test := range tests {
		tc.testsByID[test.ID] = test
	}

	if coverage == nil {
		return tc
	}

	for id, hits := range coverage.Static {
		if hits > 0 {
			tc.static[id] = true
		}

		tc.hits[id] += hits
	}

	var unknown []string

	for testID, mutants := range coverage.PerTest {
		test, ok := tc.testsByID[testID]
		if !ok {
			unknown = append(unknown, testID)
			continue
		}

		for id, hits := range mutants {
			if hits <= 0 {
				continue
			}

			tc.hits[id] += hits
			tc.testsByMutant[id] = append(tc.testsByMutant[id], test)
		}
	}

	for id := range tc.testsByMutant {
		sort.Slice(tc.testsByMutant[id], func(i, j int) bool {
			return tc.testsByMutant[id][i].ID < tc.testsByMutant[id][j].ID
		})
	}

	if len(unknown) > 0 {
		sort.Strings(unknown)
		slog.Warn("Coverage reported for tests that did not run in the dry run, ignoring them", "tests", unknown)
	}

	return tc
}

// HasCoverage reports whether coverage analysis produced data.
func (tc *TestCoverage) HasCoverage() bool {
	return tc.hasCoverage
}

// HasStaticCoverage reports whether the mutant is hit outside any test.
func (tc *TestCoverage) HasStaticCoverage(id string) bool {
	return tc.static[id]
}

// TestsByMutantID returns the tests covering the mutant, ordered by test id.
func (tc *TestCoverage) TestsByMutantID(id string) []m.TestResult {
	return tc.testsByMutant[id]
}

// HitsByMutantID returns how often the mutant was hit during the dry run.
func (tc *TestCoverage) HitsByMutantID(id string) (int, bool) {
	hits, ok := tc.hits[id]

	return hits, ok
}

// TestsByID returns the dry run tests keyed by id.
func (tc *TestCoverage) TestsByID() map[string]m.TestResult {
	return tc.testsByID
}

// Tests returns the dry run tests in the order they ran.
func (tc *TestCoverage) Tests() []m.TestResult {
	return tc.tests
}

// NetTime sums the dry run time of the given tests.
func NetTime(tests []m.TestResult) time.Duration {
	var total time.Duration

	for _, test := range tests {
		total += test.TimeSpent
	}

	return total
}
