package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"mutiny.dev/pkg/mutiny/internal/adapter"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

// Worker kinds reported to metrics.
const (
	WorkerKindTestRunner = "test-runner"
	WorkerKindChecker    = "checker"
)

// WorkerIDs hands out unique worker ids shared by all pools of a run.
type WorkerIDs struct {
	next atomic.Int32
}

// Next returns a fresh id.
func (ids *WorkerIDs) Next() int {
	return int(ids.next.Add(1)) - 1
}

// TestRunnerWorker owns one sandbox and the test runner working inside it.
type TestRunnerWorker struct {
	id        int
	sandboxes SandboxManager
	create    adapter.TestRunnerFactory
	metrics   adapter.Metrics

	sandbox Sandbox
	runner  adapter.TestRunner
}

// NewTestRunnerWorkerFactory returns the create function of a test runner pool.
func NewTestRunnerWorkerFactory(sandboxes SandboxManager, create adapter.TestRunnerFactory, metrics adapter.Metrics, ids *WorkerIDs) func() *TestRunnerWorker {
	if metrics == nil {
		metrics = adapter.NoopMetrics{}
	}

	return func() *TestRunnerWorker {
		return &TestRunnerWorker{id: ids.Next(), sandboxes: sandboxes, create: create, metrics: metrics}
	}
}

// ID returns the worker id.
func (w *TestRunnerWorker) ID() int {
	return w.id
}

// Init creates the sandbox and starts the test runner.
func (w *TestRunnerWorker) Init(ctx context.Context) error {
	sandbox, err := w.sandboxes.Create(ctx, w.id)
	if err != nil {
		return fmt.Errorf("create sandbox for worker %d: %w", w.id, err)
	}

	w.sandbox = sandbox
	w.runner = w.create(sandbox.Dir())

	if err := w.runner.Init(ctx); err != nil {
		return fmt.Errorf("init test runner of worker %d: %w", w.id, err)
	}

	w.metrics.WorkerCreated(WorkerKindTestRunner)
	slog.Debug("Started test runner worker", "worker", w.id, "dir", sandbox.Dir())

	return nil
}

// Dispose stops the test runner. The sandbox directory is owned by the sandbox manager.
func (w *TestRunnerWorker) Dispose(ctx context.Context) error {
	if w.runner == nil {
		return nil
	}

	if err := w.runner.Dispose(ctx); err != nil {
		return fmt.Errorf("dispose test runner of worker %d: %w", w.id, err)
	}

	return nil
}

// Capabilities returns the capabilities of the worker's test runner.
func (w *TestRunnerWorker) Capabilities() m.Capabilities {
	return w.runner.Capabilities()
}

// DryRun runs the initial test run.
func (w *TestRunnerWorker) DryRun(ctx context.Context, options m.DryRunOptions) (m.DryRunResult, error) {
	return w.runner.DryRun(ctx, options)
}

// Run activates the planned mutant in the sandbox, runs its tests and
// deactivates it again. Runner failures become an error result; a returned
// error means the sandbox could not be prepared or the run was cancelled.
func (w *TestRunnerWorker) Run(ctx context.Context, plan m.MutantTestPlan) (m.MutantRunResult, error) {
	path, err := w.sandbox.Activate(ctx, plan.Mutant)
	if err != nil {
		return m.MutantRunResult{}, fmt.Errorf("activate mutant %s: %w", plan.Mutant.ID, err)
	}

	options := plan.RunOptions
	options.SandboxFileName = string(path)

	result, runErr := w.runner.MutantRun(ctx, options)

	if err := w.sandbox.Deactivate(context.WithoutCancel(ctx)); err != nil {
		return m.MutantRunResult{}, fmt.Errorf("deactivate mutant %s: %w", plan.Mutant.ID, err)
	}

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return m.MutantRunResult{}, ctxErr
		}

		slog.Warn("Test runner failed while testing mutant", "worker", w.id, "mutant", plan.Mutant.ID, "error", runErr)

		return m.MutantRunResult{Status: m.RunError, ErrorMessage: runErr.Error()}, nil
	}

	return result, nil
}

// CheckerWorker owns one sandbox and the checkers validating mutants in it.
type CheckerWorker struct {
	id        int
	sandboxes SandboxManager
	factories []adapter.CheckerFactory
	metrics   adapter.Metrics

	sandbox  Sandbox
	checkers []adapter.Checker
}

// NewCheckerWorkerFactory returns the create function of a checker pool.
func NewCheckerWorkerFactory(sandboxes SandboxManager, factories []adapter.CheckerFactory, metrics adapter.Metrics, ids *WorkerIDs) func() *CheckerWorker {
	if metrics == nil {
		metrics = adapter.NoopMetrics{}
	}

	return func() *CheckerWorker {
		return &CheckerWorker{id: ids.Next(), sandboxes: sandboxes, factories: factories, metrics: metrics}
	}
}

// Init creates the sandbox and starts every checker.
func (w *CheckerWorker) Init(ctx context.Context) error {
	sandbox, err := w.sandboxes.Create(ctx, w.id)
	if err != nil {
		return fmt.Errorf("create sandbox for checker %d: %w", w.id, err)
	}

	w.sandbox = sandbox

	for _, factory := range w.factories {
		checker := factory(sandbox.Dir())
		w.checkers = append(w.checkers, checker)

		if err := checker.Init(ctx); err != nil {
			return fmt.Errorf("init checker of worker %d: %w", w.id, err)
		}
	}

	w.metrics.WorkerCreated(WorkerKindChecker)

	return nil
}

// Dispose stops every checker.
func (w *CheckerWorker) Dispose(ctx context.Context) error {
	var errs []error

	for _, checker := range w.checkers {
		if err := checker.Dispose(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Check runs the checkers against the mutant until one of them rejects it.
func (w *CheckerWorker) Check(ctx context.Context, mt m.Mutant) (m.CheckResult, error) {
	if _, err := w.sandbox.Activate(ctx, mt); err != nil {
		return m.CheckResult{}, fmt.Errorf("activate mutant %s: %w", mt.ID, err)
	}

	defer func() {
		if err := w.sandbox.Deactivate(context.WithoutCancel(ctx)); err != nil {
			slog.Error("Failed to deactivate mutant after check", "mutant", mt.ID, "error", err)
		}
	}()

	for _, checker := range w.checkers {
		results, err := checker.Check(ctx, []m.Mutant{mt})
		if err != nil {
			return m.CheckResult{}, fmt.Errorf("check mutant %s: %w", mt.ID, err)
		}

		if result, ok := results[mt.ID]; ok && result.Status != m.CheckPassed {
			return result, nil
		}
	}

	return m.CheckResult{Status: m.CheckPassed}, nil
}
