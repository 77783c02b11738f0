package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

func scenarioDryRun() DryRunSummary {
	tests := []m.TestResult{
		{ID: "t1", Name: "t1", TimeSpent: 100 * time.Millisecond},
		{ID: "t2", Name: "t2", TimeSpent: 300 * time.Millisecond},
	}

	return DryRunSummary{
		Result:   m.DryRunResult{Status: m.DryRunComplete, Tests: tests},
		Coverage: NewTestCoverage(tests, &m.CoverageData{Static: m.MutantCoverage{"m1": 1}, PerTest: map[string]m.MutantCoverage{"t1": {"m2": 1}}}),
		NetTime:    400 * time.Millisecond,
		Overhead:   50 * time.Millisecond,
		CountsHits: true,
	}
}

func scenarioMutants() []m.Mutant {
	return []m.Mutant{
		{ID: "m1", FileName: "calc.go", MutatorName: "ArithmeticOperator", Replacement: "-"},
		{ID: "m2", FileName: "calc.go", MutatorName: "ArithmeticOperator", Replacement: "*"},
		{ID: "m3", FileName: "calc.go", MutatorName: "ArithmeticOperator", Replacement: "/"},
	}
}

func TestMutantTestPlanner_Scenario(t *testing.T) {
	planner := NewMutantTestPlanner(PlannerOptions{
		Timeout:       5 * time.Second,
		TimeoutFactor: 1.5,
	}, NewIncrementalDiffer(false), nil)

	plans := planner.Plan(context.Background(), scenarioMutants(), scenarioDryRun(), nil)
	require.Len(t, plans, 3)

	m1 := plans[0]
	assert.Equal(t, m.PlanRun, m1.Kind)
	assert.Nil(t, m1.RunOptions.TestFilter)
	assert.Equal(t, m.ActivationStatic, m1.RunOptions.MutantActivation)
	assert.True(t, m1.RunOptions.ReloadEnvironment)
	assert.True(t, m1.Mutant.Static)
	assert.Equal(t, 400*time.Millisecond, m1.NetTime)
	assert.Equal(t, 600*time.Millisecond+5*time.Second+50*time.Millisecond, m1.RunOptions.Timeout)
	require.NotNil(t, m1.RunOptions.HitLimit)
	assert.Equal(t, 100, *m1.RunOptions.HitLimit)

	m2 := plans[1]
	assert.Equal(t, m.PlanRun, m2.Kind)
	assert.Equal(t, []string{"t1"}, m2.RunOptions.TestFilter)
	assert.Equal(t, m.ActivationRuntime, m2.RunOptions.MutantActivation)
	assert.False(t, m2.RunOptions.ReloadEnvironment)
	assert.Equal(t, []string{"t1"}, m2.Mutant.CoveredBy)
	assert.Equal(t, 150*time.Millisecond+5*time.Second+50*time.Millisecond, m2.RunOptions.Timeout)
	assert.Equal(t, "m2", m2.RunOptions.ActiveMutant.ID)

	m3 := plans[2]
	assert.Equal(t, m.PlanEarlyResult, m3.Kind)
	assert.Equal(t, m.NoCoverage, m3.Mutant.Status)
}

func TestMutantTestPlanner_IgnoreStatic(t *testing.T) {
	planner := NewMutantTestPlanner(PlannerOptions{IgnoreStatic: true}, nil, nil)

	plans := planner.Plan(context.Background(), scenarioMutants(), scenarioDryRun(), nil)

	assert.Equal(t, m.PlanEarlyResult, plans[0].Kind)
	assert.Equal(t, m.Ignored, plans[0].Mutant.Status)
	assert.Equal(t, `Static mutant (and "ignoreStatic" was enabled)`, plans[0].Mutant.StatusReason)
	assert.Equal(t, m.PlanRun, plans[1].Kind)
}

func TestMutantTestPlanner_StaticAndCoveredWithIgnoreStatic(t *testing.T) {
	dryRun := scenarioDryRun()
	dryRun.Coverage = NewTestCoverage(dryRun.Result.Tests, &m.CoverageData{
		Static:  m.MutantCoverage{"m1": 1},
		PerTest: map[string]m.MutantCoverage{"t2": {"m1": 2}},
	})

	planner := NewMutantTestPlanner(PlannerOptions{IgnoreStatic: true}, nil, nil)
	plans := planner.Plan(context.Background(), scenarioMutants()[:1], dryRun, nil)

	assert.Equal(t, m.PlanRun, plans[0].Kind)
	assert.Equal(t, []string{"t2"}, plans[0].RunOptions.TestFilter)
	assert.Equal(t, m.ActivationRuntime, plans[0].RunOptions.MutantActivation)
	assert.Equal(t, 300, *plans[0].RunOptions.HitLimit)
}

func TestMutantTestPlanner_NoHitLimitWithoutHitCounting(t *testing.T) {
	dryRun := scenarioDryRun()
	dryRun.CountsHits = false

	planner := NewMutantTestPlanner(PlannerOptions{}, nil, nil)
	plans := planner.Plan(context.Background(), scenarioMutants(), dryRun, nil)

	require.Equal(t, m.PlanRun, plans[0].Kind)
	require.Equal(t, m.PlanRun, plans[1].Kind)
	assert.Nil(t, plans[0].RunOptions.HitLimit)
	assert.Nil(t, plans[1].RunOptions.HitLimit)
}

func TestMutantTestPlanner_CoverageOff(t *testing.T) {
	dryRun := scenarioDryRun()
	dryRun.Coverage = NewTestCoverage(dryRun.Result.Tests, nil)

	planner := NewMutantTestPlanner(PlannerOptions{CoverageAnalysis: m.CoverageOff, IgnoreStatic: true}, nil, nil)
	plans := planner.Plan(context.Background(), scenarioMutants(), dryRun, nil)

	for _, plan := range plans {
		assert.Equal(t, m.PlanRun, plan.Kind)
		assert.Nil(t, plan.RunOptions.TestFilter)
		assert.Equal(t, m.ActivationStatic, plan.RunOptions.MutantActivation)
		assert.True(t, plan.RunOptions.ReloadEnvironment)
		assert.Nil(t, plan.RunOptions.HitLimit)
		assert.Equal(t, 400*time.Millisecond, plan.NetTime)
	}
}

func TestMutantTestPlanner_CoverageAll(t *testing.T) {
	dryRun := scenarioDryRun()
	dryRun.Coverage = NewTestCoverage(dryRun.Result.Tests, &m.CoverageData{Static: m.MutantCoverage{"m1": 3, "m2": 1}})

	planner := NewMutantTestPlanner(PlannerOptions{CoverageAnalysis: m.CoverageAll, IgnoreStatic: true}, nil, nil)
	plans := planner.Plan(context.Background(), scenarioMutants(), dryRun, nil)

	for _, plan := range plans[:2] {
		assert.Equal(t, m.PlanRun, plan.Kind)
		assert.Nil(t, plan.RunOptions.TestFilter)
		assert.Equal(t, m.ActivationRuntime, plan.RunOptions.MutantActivation)
		assert.False(t, plan.Mutant.Static)
	}

	assert.Equal(t, m.NoCoverage, plans[2].Mutant.Status)
}

func TestMutantTestPlanner_EarlyResults(t *testing.T) {
	mutants := scenarioMutants()
	mutants[0].IgnoreReason = "disabled by comment"
	mutants[1] = mutants[1].WithResult(m.Killed, "")

	planner := NewMutantTestPlanner(PlannerOptions{DisableBail: true}, nil, nil)
	plans := planner.Plan(context.Background(), mutants, scenarioDryRun(), nil)

	assert.Equal(t, m.PlanEarlyResult, plans[0].Kind)
	assert.Equal(t, m.Ignored, plans[0].Mutant.Status)
	assert.Equal(t, "disabled by comment", plans[0].Mutant.StatusReason)

	assert.Equal(t, m.PlanEarlyResult, plans[1].Kind)
	assert.Equal(t, m.Killed, plans[1].Mutant.Status)
}

func TestMutantTestPlanner_ReusesPreviousResults(t *testing.T) {
	tests := []m.TestResult{{ID: "t1", Name: "t1"}}
	dryRun := DryRunSummary{
		Result:   m.DryRunResult{Status: m.DryRunComplete, Tests: tests},
		Coverage: NewTestCoverage(tests, &m.CoverageData{PerTest: map[string]m.MutantCoverage{"t1": {"1": 1}}}),
	}

	planner := NewMutantTestPlanner(PlannerOptions{}, NewIncrementalDiffer(false), map[string][]byte{"calc.go": []byte(calcSource)})
	plans := planner.Plan(context.Background(), []m.Mutant{addMutant()}, dryRun, previousReport(calcSource, historicAdd(m.Killed)))

	require.Len(t, plans, 1)
	assert.Equal(t, m.PlanEarlyResult, plans[0].Kind)
	assert.Equal(t, m.Killed, plans[0].Mutant.Status)
}
