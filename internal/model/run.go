package model

import "time"

// CoverageAnalysis selects how much coverage data the dry run collects.
type CoverageAnalysis string

const (
	// CoverageOff collects nothing; every mutant runs every test.
	CoverageOff CoverageAnalysis = "off"
	// CoverageAll collects which mutants are hit by the suite as a whole.
	CoverageAll CoverageAnalysis = "all"
	// CoveragePerTest collects which tests hit which mutants.
	CoveragePerTest CoverageAnalysis = "perTest"
)

// MutantActivation tells the runner when the active mutant must be switched on.
type MutantActivation string

const (
	// ActivationStatic activates the mutant before any test code is loaded.
	ActivationStatic MutantActivation = "static"
	// ActivationRuntime activates the mutant only while tests execute.
	ActivationRuntime MutantActivation = "runtime"
)

// MutantCoverage maps a mutant id to its hit count.
type MutantCoverage map[string]int

// CoverageData is the coverage reported by a dry run.
type CoverageData struct {
	Static  MutantCoverage            `json:"static"`
	PerTest map[string]MutantCoverage `json:"perTest"`
}

// Capabilities advertises optional test runner behaviour.
type Capabilities struct {
	// ReloadEnvironment is true when the runner reloads the test environment
	// (fresh module state) on every run.
	ReloadEnvironment bool `json:"reloadEnvironment"`
	// CountsHits is true when mutant runs report HitCount, so a hit limit can
	// stop mutants stuck in a loop.
	CountsHits bool `json:"countsHits"`
}

// DryRunOptions configures the initial test run.
type DryRunOptions struct {
	Timeout          time.Duration
	CoverageAnalysis CoverageAnalysis
	DisableBail      bool
	// Mutants lets runners that derive coverage from source positions map
	// their coverage data to mutant ids.
	Mutants []Mutant
}

// MutantRunOptions configures a single mutant run.
type MutantRunOptions struct {
	ActiveMutant Mutant
	// TestFilter lists the tests to run; nil runs every test.
	TestFilter        []string
	Timeout           time.Duration
	HitLimit          *int
	DisableBail       bool
	MutantActivation  MutantActivation
	ReloadEnvironment bool
	// SandboxFileName is the absolute path of the mutated file inside the worker sandbox.
	SandboxFileName string
}

// TestStatus is the outcome of a single test.
type TestStatus string

// Test outcomes.
const (
	TestPassed  TestStatus = "passed"
	TestFailed  TestStatus = "failed"
	TestSkipped TestStatus = "skipped"
)

// TestResult is the result of one test during the dry run.
type TestResult struct {
	ID             string
	Name           string
	FileName       string
	Status         TestStatus
	TimeSpent      time.Duration
	FailureMessage string
}

// DryRunStatus is the outcome of the dry run as a whole.
type DryRunStatus string

// Dry run outcomes.
const (
	DryRunComplete DryRunStatus = "complete"
	DryRunError    DryRunStatus = "error"
	DryRunTimeout  DryRunStatus = "timeout"
)

// DryRunResult is what a test runner reports for the initial test run.
type DryRunResult struct {
	Status       DryRunStatus
	Tests        []TestResult
	Coverage     *CoverageData
	ErrorMessage string
	Reason       string
}

// MutantRunStatus is the raw outcome of a mutant run as reported by a runner.
type MutantRunStatus string

// Mutant run outcomes.
const (
	RunKilled   MutantRunStatus = "killed"
	RunSurvived MutantRunStatus = "survived"
	RunTimeout  MutantRunStatus = "timeout"
	RunError    MutantRunStatus = "error"
)

// MutantRunResult is what a test runner reports for a mutant run.
type MutantRunResult struct {
	Status         MutantRunStatus
	KilledBy       []string
	FailureMessage string
	NrOfTests      int
	Reason         string
	ErrorMessage   string
	// CompileError marks an error result caused by the mutant failing to build.
	CompileError bool
	// HitCount is the number of instrumented hits observed, when the runner counts them.
	HitCount *int
}

// CheckStatus is the outcome of a checker.
type CheckStatus string

// Checker outcomes.
const (
	CheckPassed       CheckStatus = "passed"
	CheckCompileError CheckStatus = "compileError"
)

// CheckResult is the checker verdict for one mutant.
type CheckResult struct {
	Status CheckStatus
	Reason string
}
