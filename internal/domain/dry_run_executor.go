package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	m "mutiny.dev/pkg/mutiny/internal/model"
	"mutiny.dev/pkg/mutiny/pkg"
)

var (
	// ErrConfig marks failures caused by the project or its configuration
	// rather than by mutiny, such as failing tests before any mutation.
	ErrConfig = errors.New("configuration error")
	// ErrDryRunFailed is returned when the initial test run did not complete.
	ErrDryRunFailed = errors.New("initial test run failed")
)

// DryRunOptions configures the initial test run.
type DryRunOptions struct {
	Timeout          time.Duration
	CoverageAnalysis m.CoverageAnalysis
	DisableBail      bool
	// AllowEmpty lets a project without tests pass the initial test run.
	AllowEmpty bool
}

// DryRunSummary is what the rest of the run needs to know about the initial test run.
type DryRunSummary struct {
	Result   m.DryRunResult
	Coverage *TestCoverage
	// NetTime is the summed duration of all tests.
	NetTime time.Duration
	// Overhead is the wall time of the run not spent in tests.
	Overhead time.Duration
	// CountsHits is true when the test runner reports hit counts for mutant runs.
	CountsHits bool
}

// DryRunExecutor runs the initial test run that validates the project and
// collects coverage.
type DryRunExecutor interface {
	Execute(ctx context.Context, runners *pkg.Pool[*TestRunnerWorker], mutants []m.Mutant) (DryRunSummary, error)
}

type dryRunExecutor struct {
	options DryRunOptions
}

// NewDryRunExecutor creates a DryRunExecutor.
func NewDryRunExecutor(options DryRunOptions) DryRunExecutor {
	return &dryRunExecutor{options: options}
}

type timedDryRun struct {
	result     m.DryRunResult
	wall       time.Duration
	countsHits bool
}

func (d *dryRunExecutor) Execute(ctx context.Context, runners *pkg.Pool[*TestRunnerWorker], mutants []m.Mutant) (DryRunSummary, error) {
	options := m.DryRunOptions{
		Timeout:          d.options.Timeout,
		CoverageAnalysis: d.options.CoverageAnalysis,
		DisableBail:      d.options.DisableBail,
		Mutants:          mutants,
	}

	slog.Info("Starting initial test run", "coverageAnalysis", options.CoverageAnalysis, "timeout", options.Timeout)

	inputs := make(chan m.DryRunOptions, 1)
	inputs <- options
	close(inputs)

	outcomes := pkg.Schedule(ctx, runners, inputs, func(ctx context.Context, worker *TestRunnerWorker, options m.DryRunOptions) (timedDryRun, error) {
		started := time.Now()
		result, err := worker.DryRun(ctx, options)

		return timedDryRun{result: result, wall: time.Since(started), countsHits: worker.Capabilities().CountsHits}, err
	})

	outcome, ok := <-outcomes
	for range outcomes {
	}

	if !ok {
		if err := ctx.Err(); err != nil {
			return DryRunSummary{}, err
		}

		return DryRunSummary{}, fmt.Errorf("%w: no result", ErrDryRunFailed)
	}

	if outcome.Err != nil {
		slog.Error("Failed to run initial test run", "error", outcome.Err)
		return DryRunSummary{}, fmt.Errorf("%w: %w", ErrDryRunFailed, outcome.Err)
	}

	summary, err := d.validate(outcome.Value.result)
	if err != nil {
		return DryRunSummary{}, err
	}

	summary.Overhead = max(0, outcome.Value.wall-summary.NetTime)
	summary.CountsHits = outcome.Value.countsHits

	slog.Info("Initial test run succeeded",
		"tests", len(summary.Result.Tests),
		"netTime", summary.NetTime,
		"overhead", summary.Overhead,
		"coverage", summary.Coverage.HasCoverage(),
	)

	return summary, nil
}

func (d *dryRunExecutor) validate(result m.DryRunResult) (DryRunSummary, error) {
	switch result.Status {
	case m.DryRunComplete:
	case m.DryRunTimeout:
		return DryRunSummary{}, fmt.Errorf("%w: timed out after %s", ErrDryRunFailed, d.options.Timeout)
	default:
		return DryRunSummary{}, fmt.Errorf("%w: %s", ErrDryRunFailed, result.ErrorMessage)
	}

	var failed []string

	for _, test := range result.Tests {
		if test.Status != m.TestFailed {
			continue
		}

		line := test.Name
		if test.FailureMessage != "" {
			line += ": " + strings.TrimSpace(test.FailureMessage)
		}

		failed = append(failed, line)
	}

	if len(failed) > 0 {
		return DryRunSummary{}, fmt.Errorf("%w: there were failed tests in the initial test run:\n%s", ErrConfig, strings.Join(failed, "\n"))
	}

	if len(result.Tests) == 0 {
		if !d.options.AllowEmpty {
			return DryRunSummary{}, fmt.Errorf("%w: no tests were executed, set allow_empty to run without tests", ErrConfig)
		}

		slog.Warn("No tests were found, every covered mutant will survive")
	}

	coverage := result.Coverage
	if d.options.CoverageAnalysis == m.CoverageOff {
		coverage = nil
	} else if coverage == nil {
		slog.Warn("Test runner reported no coverage, running every test for every mutant", "coverageAnalysis", d.options.CoverageAnalysis)
	}

	return DryRunSummary{
		Result:   result,
		Coverage: NewTestCoverage(result.Tests, coverage),
		NetTime:  NetTime(result.Tests),
	}, nil
}
