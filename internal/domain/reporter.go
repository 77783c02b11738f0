package domain

import (
	"context"
	"sync"

	"mutiny.dev/pkg/mutiny/internal/controller"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

// Reporter receives progress events of a mutation run. Events for tested
// mutants may arrive concurrently.
type Reporter interface {
	OnSourceFilesRead(ctx context.Context, files map[string][]byte)
	OnDryRunCompleted(ctx context.Context, result m.DryRunResult)
	OnPlanReady(ctx context.Context, plans []m.MutantTestPlan)
	OnMutantTested(ctx context.Context, mt m.Mutant)
	OnAllMutantsTested(ctx context.Context, mutants []m.Mutant)
}

// Reporters fans every event out to each of its reporters.
type Reporters []Reporter

// OnSourceFilesRead implements Reporter.
func (r Reporters) OnSourceFilesRead(ctx context.Context, files map[string][]byte) {
	for _, reporter := range r {
		reporter.OnSourceFilesRead(ctx, files)
	}
}

// OnDryRunCompleted implements Reporter.
func (r Reporters) OnDryRunCompleted(ctx context.Context, result m.DryRunResult) {
	for _, reporter := range r {
		reporter.OnDryRunCompleted(ctx, result)
	}
}

// OnPlanReady implements Reporter.
func (r Reporters) OnPlanReady(ctx context.Context, plans []m.MutantTestPlan) {
	for _, reporter := range r {
		reporter.OnPlanReady(ctx, plans)
	}
}

// OnMutantTested implements Reporter.
func (r Reporters) OnMutantTested(ctx context.Context, mt m.Mutant) {
	for _, reporter := range r {
		reporter.OnMutantTested(ctx, mt)
	}
}

// OnAllMutantsTested implements Reporter.
func (r Reporters) OnAllMutantsTested(ctx context.Context, mutants []m.Mutant) {
	for _, reporter := range r {
		reporter.OnAllMutantsTested(ctx, mutants)
	}
}

// uiReporter forwards run progress to the user interface.
type uiReporter struct {
	ui controller.UI

	mu      sync.RWMutex
	sources map[string][]byte
}

// NewUIReporter creates a reporter that displays progress on ui.
func NewUIReporter(ui controller.UI) Reporter {
	return &uiReporter{ui: ui, sources: map[string][]byte{}}
}

func (u *uiReporter) OnSourceFilesRead(_ context.Context, files map[string][]byte) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.sources = files
}

func (u *uiReporter) OnDryRunCompleted(ctx context.Context, result m.DryRunResult) {
	u.ui.DisplayDryRun(ctx, result)
}

func (u *uiReporter) OnPlanReady(ctx context.Context, plans []m.MutantTestPlan) {
	runs := 0

	for _, plan := range plans {
		if plan.Kind == m.PlanRun {
			runs++
		}
	}

	u.ui.DisplayUpcomingTests(ctx, len(plans), runs)
}

func (u *uiReporter) OnMutantTested(ctx context.Context, mt m.Mutant) {
	u.mu.RLock()
	original := u.sources[mt.FileName]
	u.mu.RUnlock()

	u.ui.DisplayMutantResult(ctx, mt, original)
}

func (u *uiReporter) OnAllMutantsTested(context.Context, []m.Mutant) {}
