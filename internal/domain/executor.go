package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mutiny.dev/pkg/mutiny/internal/adapter"
	m "mutiny.dev/pkg/mutiny/internal/model"
	"mutiny.dev/pkg/mutiny/pkg"
)

var errMutantRun = errors.New("mutant run failed")

// MutationTestExecutor runs the whole mutation testing pipeline for a set of
// mutants: initial test run, planning, compile checks and mutant runs.
type MutationTestExecutor interface {
	// Execute tests every mutant and returns them, in plan order, with their
	// final status.
	Execute(ctx context.Context, mutants []m.Mutant, previous *m.Report) ([]m.Mutant, DryRunSummary, error)
	// Plan stops after planning; no mutant is run.
	Plan(ctx context.Context, mutants []m.Mutant, previous *m.Report) ([]m.MutantTestPlan, DryRunSummary, error)
}

// ExecutorDeps wires a MutationTestExecutor.
type ExecutorDeps struct {
	Runners *pkg.Pool[*TestRunnerWorker]
	// Checkers may be nil when no checker is configured.
	Checkers *pkg.Pool[*CheckerWorker]
	Tokens   *ConcurrencyTokenProvider
	DryRun   DryRunExecutor
	Planner  MutantTestPlanner
	Reporter Reporter
	Metrics  adapter.Metrics
}

type mutationTestExecutor struct {
	ExecutorDeps
}

// NewMutationTestExecutor creates a MutationTestExecutor.
func NewMutationTestExecutor(deps ExecutorDeps) MutationTestExecutor {
	if deps.Metrics == nil {
		deps.Metrics = adapter.NoopMetrics{}
	}

	if deps.Reporter == nil {
		deps.Reporter = Reporters{}
	}

	return &mutationTestExecutor{ExecutorDeps: deps}
}

func (e *mutationTestExecutor) Plan(ctx context.Context, mutants []m.Mutant, previous *m.Report) ([]m.MutantTestPlan, DryRunSummary, error) {
	summary, err := e.DryRun.Execute(ctx, e.Runners, mutants)
	if e.Tokens != nil {
		e.Tokens.DryRunDone()
	}

	if err != nil {
		return nil, DryRunSummary{}, err
	}

	e.Reporter.OnDryRunCompleted(ctx, summary.Result)

	plans := e.Planner.Plan(ctx, mutants, summary, previous)
	e.Reporter.OnPlanReady(ctx, plans)

	return plans, summary, nil
}

func (e *mutationTestExecutor) Execute(ctx context.Context, mutants []m.Mutant, previous *m.Report) ([]m.Mutant, DryRunSummary, error) {
	plans, summary, err := e.Plan(ctx, mutants, previous)
	if err != nil {
		return nil, DryRunSummary{}, err
	}

	plans, err = e.check(ctx, plans)
	if err != nil {
		return nil, summary, err
	}

	results, err := e.run(ctx, plans)
	if err != nil {
		return nil, summary, err
	}

	tested := make([]m.Mutant, 0, len(plans))

	for _, plan := range plans {
		mt, ok := results[plan.Mutant.ID]
		if !ok {
			return nil, summary, fmt.Errorf("mutant %s was never tested", plan.Mutant.ID)
		}

		tested = append(tested, mt)
	}

	e.Reporter.OnAllMutantsTested(ctx, tested)

	return tested, summary, nil
}

// check compiles every mutant that would otherwise run and turns the ones
// that fail into compile errors. The checker pool is disposed afterwards and
// its concurrency handed to the test runners.
func (e *mutationTestExecutor) check(ctx context.Context, plans []m.MutantTestPlan) ([]m.MutantTestPlan, error) {
	defer e.freeCheckers(ctx)

	if e.Checkers == nil {
		return plans, nil
	}

	inputs := make(chan int, len(plans))

	for i, plan := range plans {
		if plan.Kind == m.PlanRun {
			inputs <- i
		}
	}

	close(inputs)

	if len(inputs) == 0 {
		return plans, nil
	}

	slog.Info("Checking mutants", "mutants", len(inputs))

	checked := append([]m.MutantTestPlan(nil), plans...)

	outcomes := pkg.Schedule(ctx, e.Checkers, inputs, func(ctx context.Context, worker *CheckerWorker, i int) (m.CheckResult, error) {
		return worker.Check(ctx, plans[i].Mutant)
	})

	var (
		errs     []error
		rejected int
	)

	for outcome := range outcomes {
		if outcome.Err != nil {
			errs = append(errs, outcome.Err)
			continue
		}

		if outcome.Value.Status == m.CheckPassed {
			continue
		}

		rejected++
		checked[outcome.Input] = earlyResult(plans[outcome.Input].Mutant.WithResult(m.CompileError, outcome.Value.Reason))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("check mutants: %w", errors.Join(errs...))
	}

	slog.Info("Mutants checked", "compileErrors", rejected)

	return checked, nil
}

func (e *mutationTestExecutor) freeCheckers(ctx context.Context) {
	if e.Tokens != nil {
		e.Tokens.FreeCheckers()
	}

	if e.Checkers == nil {
		return
	}

	if err := e.Checkers.Dispose(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("Failed to dispose checkers", "error", err)
	}
}

// run reports early results right away and schedules every other plan on the
// test runner pool. Results are keyed by mutant id.
func (e *mutationTestExecutor) run(ctx context.Context, plans []m.MutantTestPlan) (map[string]m.Mutant, error) {
	results := make(map[string]m.Mutant, len(plans))
	inputs := make(chan m.MutantTestPlan, len(plans))

	for _, plan := range plans {
		if plan.Kind == m.PlanEarlyResult {
			e.report(ctx, results, plan.Mutant)
			continue
		}

		inputs <- plan
	}

	close(inputs)

	if len(inputs) == 0 {
		return results, nil
	}

	slog.Info("Testing mutants", "mutants", len(inputs), "earlyResults", len(results))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := pkg.Schedule(runCtx, e.Runners, inputs, func(ctx context.Context, worker *TestRunnerWorker, plan m.MutantTestPlan) (m.Mutant, error) {
		started := time.Now()

		result, err := worker.Run(ctx, plan)
		if err != nil {
			return m.Mutant{}, fmt.Errorf("%w: worker %d: %w", errMutantRun, worker.ID(), err)
		}

		mt := interpretRunResult(plan, result)
		mt.Duration = time.Since(started)

		return mt, nil
	})

	var fatal error

	for outcome := range outcomes {
		switch {
		case outcome.Err == nil:
			e.report(ctx, results, outcome.Value)
		case fatal != nil:
		case errors.Is(outcome.Err, errMutantRun),
			errors.Is(outcome.Err, pkg.ErrNoWorkers),
			errors.Is(outcome.Err, pkg.ErrPoolDisposed),
			errors.Is(outcome.Err, context.Canceled),
			errors.Is(outcome.Err, context.DeadlineExceeded):
			fatal = outcome.Err

			slog.Error("Failed to test mutant, stopping the run", "mutant", outcome.Input.Mutant.ID, "error", outcome.Err)
			cancel()
		default:
			// The worker could not be created; its token stays available for the next mutant.
			slog.Warn("Failed to start worker for mutant", "mutant", outcome.Input.Mutant.ID, "error", outcome.Err)
			e.report(ctx, results, outcome.Input.Mutant.WithResult(m.RuntimeError, outcome.Err.Error()))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if fatal != nil {
		return nil, fatal
	}

	return results, nil
}

func (e *mutationTestExecutor) report(ctx context.Context, results map[string]m.Mutant, mt m.Mutant) {
	results[mt.ID] = mt

	e.Metrics.MutantTested(mt.Status, mt.Duration)
	e.Reporter.OnMutantTested(ctx, mt)
}

func interpretRunResult(plan m.MutantTestPlan, result m.MutantRunResult) m.Mutant {
	mt := plan.Mutant
	mt.TestsCompleted = result.NrOfTests

	if limit := plan.RunOptions.HitLimit; limit != nil && result.HitCount != nil && *result.HitCount > *limit {
		return mt.WithResult(m.Timeout, fmt.Sprintf("Hit limit reached (%d/%d)", *result.HitCount, *limit))
	}

	switch result.Status {
	case m.RunKilled:
		killedBy := result.KilledBy
		if !plan.RunOptions.DisableBail && len(killedBy) > 1 {
			killedBy = killedBy[:1]
		}

		mt = mt.WithResult(m.Killed, result.FailureMessage)
		mt.KilledBy = killedBy

		return mt
	case m.RunSurvived:
		return mt.WithResult(m.Survived, "")
	case m.RunTimeout:
		return mt.WithResult(m.Timeout, result.Reason)
	case m.RunError:
		if result.CompileError {
			return mt.WithResult(m.CompileError, result.ErrorMessage)
		}

		return mt.WithResult(m.RuntimeError, result.ErrorMessage)
	default:
		return mt.WithResult(m.RuntimeError, fmt.Sprintf("unknown run status %q", result.Status))
	}
}
