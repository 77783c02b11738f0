package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mutiny.dev/pkg/mutiny/internal/adapter"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

const (
	maxRetries   = 2
	crashMessage = "Test runner crashed. Tried twice to restart to no avail. Last time the error message was: %s"
)

// Restart reasons reported to metrics.
const (
	RestartCrash     = "crash"
	RestartTimeout   = "timeout"
	RestartMaxRuns   = "max-runs"
	RestartReloadEnv = "reload-environment"
)

// TestRunnerOptions configures the decorator chain built around every raw test runner.
type TestRunnerOptions struct {
	// MaxTestRunnerReuse restarts a runner after this many mutant runs; 0 never restarts.
	MaxTestRunnerReuse int
	Metrics            adapter.Metrics
}

// NewTestRunnerFactory wraps create so that every runner it produces is
// decorated with, from the outside in, crash retries, timeouts, restarts after
// a number of runs and environment reloads.
func NewTestRunnerFactory(create adapter.TestRunnerFactory, options TestRunnerOptions) adapter.TestRunnerFactory {
	metrics := options.Metrics
	if metrics == nil {
		metrics = adapter.NoopMetrics{}
	}

	return func(dir m.Path) adapter.TestRunner {
		raw := func() adapter.TestRunner { return create(dir) }
		reload := func() adapter.TestRunner { return NewReloadEnvironmentDecorator(raw, metrics) }
		maxRuns := func() adapter.TestRunner { return NewMaxRunsDecorator(reload, options.MaxTestRunnerReuse, metrics) }
		timeout := func() adapter.TestRunner { return NewTimeoutDecorator(maxRuns, metrics) }

		return NewRetryDecorator(timeout, metrics)
	}
}

// runnerDecorator forwards every call to an inner runner that it can replace
// with a fresh one produced on demand.
type runnerDecorator struct {
	produce func() adapter.TestRunner
	metrics adapter.Metrics

	mu    sync.Mutex
	inner adapter.TestRunner
}

func newRunnerDecorator(produce func() adapter.TestRunner, metrics adapter.Metrics) *runnerDecorator {
	if metrics == nil {
		metrics = adapter.NoopMetrics{}
	}

	return &runnerDecorator{produce: produce, metrics: metrics, inner: produce()}
}

func (d *runnerDecorator) current() adapter.TestRunner {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.inner
}

func (d *runnerDecorator) Init(ctx context.Context) error {
	return d.current().Init(ctx)
}

func (d *runnerDecorator) DryRun(ctx context.Context, options m.DryRunOptions) (m.DryRunResult, error) {
	return d.current().DryRun(ctx, options)
}

func (d *runnerDecorator) MutantRun(ctx context.Context, options m.MutantRunOptions) (m.MutantRunResult, error) {
	return d.current().MutantRun(ctx, options)
}

func (d *runnerDecorator) Dispose(ctx context.Context) error {
	return d.current().Dispose(ctx)
}

func (d *runnerDecorator) Capabilities() m.Capabilities {
	return d.current().Capabilities()
}

// restart disposes the inner runner, which kills any run in flight, and
// replaces it with a freshly initialized one.
func (d *runnerDecorator) restart(ctx context.Context, reason string) error {
	d.mu.Lock()
	old := d.inner
	fresh := d.produce()
	d.inner = fresh
	d.mu.Unlock()

	d.metrics.WorkerRestarted(reason)

	if err := old.Dispose(ctx); err != nil {
		slog.Warn("Failed to dispose test runner during restart", "reason", reason, "error", err)
	}

	if err := fresh.Init(ctx); err != nil {
		return fmt.Errorf("restart test runner (%s): %w", reason, err)
	}

	slog.Debug("Restarted test runner", "reason", reason)

	return nil
}

// RetryDecorator restarts a crashed runner and retries the run.
type RetryDecorator struct {
	*runnerDecorator
}

// NewRetryDecorator wraps the runners produced by produce.
func NewRetryDecorator(produce func() adapter.TestRunner, metrics adapter.Metrics) *RetryDecorator {
	return &RetryDecorator{runnerDecorator: newRunnerDecorator(produce, metrics)}
}

func isCrash(err error) bool {
	return errors.Is(err, adapter.ErrProcessCrashed) || errors.Is(err, adapter.ErrOutOfMemory)
}

// retry runs fn up to maxRetries+1 times, restarting the inner runner after
// every crash. crash holds the last crash message when every attempt crashed.
func retry[R any](ctx context.Context, d *runnerDecorator, fn func(adapter.TestRunner) (R, error)) (result R, crash string, err error) {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err = fn(d.current())
		if err == nil || !isCrash(err) || ctx.Err() != nil {
			return result, "", err
		}

		crash = err.Error()

		slog.Warn("Test runner crashed, restarting", "attempt", attempt+1, "error", err)

		if restartErr := d.restart(ctx, RestartCrash); restartErr != nil {
			var zero R
			return zero, "", restartErr
		}
	}

	var zero R

	return zero, crash, nil
}

func (d *RetryDecorator) DryRun(ctx context.Context, options m.DryRunOptions) (m.DryRunResult, error) {
	result, crash, err := retry(ctx, d.runnerDecorator, func(runner adapter.TestRunner) (m.DryRunResult, error) {
		return runner.DryRun(ctx, options)
	})
	if crash != "" {
		return m.DryRunResult{Status: m.DryRunError, ErrorMessage: fmt.Sprintf(crashMessage, crash)}, nil
	}

	return result, err
}

func (d *RetryDecorator) MutantRun(ctx context.Context, options m.MutantRunOptions) (m.MutantRunResult, error) {
	result, crash, err := retry(ctx, d.runnerDecorator, func(runner adapter.TestRunner) (m.MutantRunResult, error) {
		return runner.MutantRun(ctx, options)
	})
	if crash != "" {
		return m.MutantRunResult{Status: m.RunError, ErrorMessage: fmt.Sprintf(crashMessage, crash)}, nil
	}

	return result, err
}

// TimeoutDecorator races every run against its timeout. An expired run is
// terminated by disposing the runner, which is then replaced. Cancellation is
// hard: the test process is killed, tests get no chance to clean up.
type TimeoutDecorator struct {
	*runnerDecorator
}

// NewTimeoutDecorator wraps the runners produced by produce.
func NewTimeoutDecorator(produce func() adapter.TestRunner, metrics adapter.Metrics) *TimeoutDecorator {
	return &TimeoutDecorator{runnerDecorator: newRunnerDecorator(produce, metrics)}
}

type timedResult[R any] struct {
	value R
	err   error
}

// runWithTimeout reports timedOut when fn did not return within timeout. fn
// keeps running until the runner is disposed; its result is discarded.
func runWithTimeout[R any](ctx context.Context, timeout time.Duration, fn func(context.Context) (R, error)) (R, bool, error) {
	var zero R

	if timeout <= 0 {
		value, err := fn(ctx)
		return value, false, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan timedResult[R], 1)

	go func() {
		value, err := fn(runCtx)
		done <- timedResult[R]{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.value, false, res.err
	case <-timer.C:
		return zero, true, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

func (d *TimeoutDecorator) DryRun(ctx context.Context, options m.DryRunOptions) (m.DryRunResult, error) {
	inner := d.current()

	result, timedOut, err := runWithTimeout(ctx, options.Timeout, func(runCtx context.Context) (m.DryRunResult, error) {
		return inner.DryRun(runCtx, options)
	})
	if !timedOut {
		return result, err
	}

	slog.Warn("Initial test run timed out", "timeout", options.Timeout)

	if err := d.restart(context.WithoutCancel(ctx), RestartTimeout); err != nil {
		return m.DryRunResult{}, err
	}

	return m.DryRunResult{Status: m.DryRunTimeout, Reason: fmt.Sprintf("Initial test run exceeded timeout of %s", options.Timeout)}, nil
}

func (d *TimeoutDecorator) MutantRun(ctx context.Context, options m.MutantRunOptions) (m.MutantRunResult, error) {
	inner := d.current()

	result, timedOut, err := runWithTimeout(ctx, options.Timeout, func(runCtx context.Context) (m.MutantRunResult, error) {
		return inner.MutantRun(runCtx, options)
	})
	if !timedOut {
		return result, err
	}

	slog.Debug("Mutant run timed out, restarting test runner", "mutant", options.ActiveMutant.ID, "timeout", options.Timeout)

	if err := d.restart(context.WithoutCancel(ctx), RestartTimeout); err != nil {
		return m.MutantRunResult{}, err
	}

	return m.MutantRunResult{Status: m.RunTimeout, Reason: fmt.Sprintf("Run exceeded timeout of %s", options.Timeout)}, nil
}

// MaxRunsDecorator replaces the runner after a fixed number of mutant runs.
type MaxRunsDecorator struct {
	*runnerDecorator
	maxRuns int
	runs    int
}

// NewMaxRunsDecorator wraps the runners produced by produce. maxRuns of 0
// disables restarts.
func NewMaxRunsDecorator(produce func() adapter.TestRunner, maxRuns int, metrics adapter.Metrics) *MaxRunsDecorator {
	return &MaxRunsDecorator{runnerDecorator: newRunnerDecorator(produce, metrics), maxRuns: maxRuns}
}

func (d *MaxRunsDecorator) MutantRun(ctx context.Context, options m.MutantRunOptions) (m.MutantRunResult, error) {
	if d.maxRuns > 0 && d.runs >= d.maxRuns {
		slog.Debug("Test runner reached its run limit, restarting", "runs", d.runs)

		if err := d.restart(ctx, RestartMaxRuns); err != nil {
			return m.MutantRunResult{}, err
		}

		d.runs = 0
	}

	d.runs++

	return d.current().MutantRun(ctx, options)
}

// ReloadEnvironmentDecorator gives runners that cannot reload their test
// environment a fresh process whenever a run needs one.
type ReloadEnvironmentDecorator struct {
	*runnerDecorator
	testsLoaded bool
}

// NewReloadEnvironmentDecorator wraps the runners produced by produce.
func NewReloadEnvironmentDecorator(produce func() adapter.TestRunner, metrics adapter.Metrics) *ReloadEnvironmentDecorator {
	return &ReloadEnvironmentDecorator{runnerDecorator: newRunnerDecorator(produce, metrics)}
}

// Capabilities always advertises environment reloads, which this decorator provides.
func (d *ReloadEnvironmentDecorator) Capabilities() m.Capabilities {
	capabilities := d.current().Capabilities()
	capabilities.ReloadEnvironment = true

	return capabilities
}

func (d *ReloadEnvironmentDecorator) DryRun(ctx context.Context, options m.DryRunOptions) (m.DryRunResult, error) {
	d.testsLoaded = true

	return d.current().DryRun(ctx, options)
}

func (d *ReloadEnvironmentDecorator) MutantRun(ctx context.Context, options m.MutantRunOptions) (m.MutantRunResult, error) {
	if options.ReloadEnvironment && d.testsLoaded && !d.current().Capabilities().ReloadEnvironment {
		if err := d.restart(ctx, RestartReloadEnv); err != nil {
			return m.MutantRunResult{}, err
		}
	}

	d.testsLoaded = true

	return d.current().MutantRun(ctx, options)
}
