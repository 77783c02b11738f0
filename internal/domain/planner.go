package domain

import (
	"context"
	"log/slog"
	"time"

	m "mutiny.dev/pkg/mutiny/internal/model"
)

const (
	// hitLimitFactor multiplies the dry run hits of a mutant to get its hit limit.
	hitLimitFactor = 100
	// staticWarningThreshold is the share of estimated run time above which
	// static mutants are reported.
	staticWarningThreshold = 0.4
	ignoreStaticReason     = `Static mutant (and "ignoreStatic" was enabled)`
)

// PlannerOptions tunes how mutant runs are planned.
type PlannerOptions struct {
	Timeout          time.Duration
	TimeoutFactor    float64
	IgnoreStatic     bool
	DisableBail      bool
	CoverageAnalysis m.CoverageAnalysis
}

// MutantTestPlanner decides, for every mutant, whether it needs a test run
// and with which options.
type MutantTestPlanner interface {
	Plan(ctx context.Context, mutants []m.Mutant, dryRun DryRunSummary, previous *m.Report) []m.MutantTestPlan
}

type mutantTestPlanner struct {
	options PlannerOptions
	differ  IncrementalDiffer
	sources map[string][]byte
}

// NewMutantTestPlanner creates a planner. sources holds the current content of
// the mutated files and is used to match results of a previous run.
func NewMutantTestPlanner(options PlannerOptions, differ IncrementalDiffer, sources map[string][]byte) MutantTestPlanner {
	if options.TimeoutFactor <= 0 {
		options.TimeoutFactor = 1
	}

	if options.CoverageAnalysis == "" {
		options.CoverageAnalysis = m.CoveragePerTest
	}

	return &mutantTestPlanner{options: options, differ: differ, sources: sources}
}

func (p *mutantTestPlanner) Plan(ctx context.Context, mutants []m.Mutant, dryRun DryRunSummary, previous *m.Report) []m.MutantTestPlan {
	coverage := dryRun.Coverage
	if coverage == nil {
		coverage = NewTestCoverage(nil, nil)
	}

	if previous != nil && p.differ != nil {
		mutants = p.differ.Diff(ctx, mutants, previous, p.sources, coverage)
	}

	plans := make([]m.MutantTestPlan, 0, len(mutants))

	for _, mt := range mutants {
		plans = append(plans, p.planMutant(mt, coverage, dryRun))
	}

	p.warnAboutStatic(plans)

	return plans
}

func (p *mutantTestPlanner) planMutant(mt m.Mutant, coverage *TestCoverage, dryRun DryRunSummary) m.MutantTestPlan {
	switch {
	case mt.IgnoreReason != "":
		return earlyResult(mt.WithResult(m.Ignored, mt.IgnoreReason))
	case mt.HasResult():
		return earlyResult(mt)
	case !coverage.HasCoverage():
		return p.runPlan(mt, nil, coverage.Tests(), m.ActivationStatic, true, coverage, dryRun)
	}

	covering := coverage.TestsByMutantID(mt.ID)
	mt.CoveredBy = testIDs(covering)
	mt.Static = coverage.HasStaticCoverage(mt.ID)

	if p.options.CoverageAnalysis == m.CoverageAll {
		// Suite level coverage cannot tell tests apart nor load time hits
		// from runtime hits.
		if !mt.Static {
			return earlyResult(mt.WithResult(m.NoCoverage, ""))
		}

		mt.Static = false

		return p.runPlan(mt, nil, coverage.Tests(), m.ActivationRuntime, false, coverage, dryRun)
	}

	switch {
	case mt.Static && p.options.IgnoreStatic && len(covering) > 0:
		return p.runPlan(mt, mt.CoveredBy, covering, m.ActivationRuntime, false, coverage, dryRun)
	case mt.Static && p.options.IgnoreStatic:
		return earlyResult(mt.WithResult(m.Ignored, ignoreStaticReason))
	case mt.Static:
		return p.runPlan(mt, nil, coverage.Tests(), m.ActivationStatic, true, coverage, dryRun)
	case len(covering) > 0:
		return p.runPlan(mt, mt.CoveredBy, covering, m.ActivationRuntime, false, coverage, dryRun)
	default:
		return earlyResult(mt.WithResult(m.NoCoverage, ""))
	}
}

func (p *mutantTestPlanner) runPlan(
	mt m.Mutant,
	filter []string,
	tests []m.TestResult,
	activation m.MutantActivation,
	reload bool,
	coverage *TestCoverage,
	dryRun DryRunSummary,
) m.MutantTestPlan {
	netTime := NetTime(tests)

	options := m.MutantRunOptions{
		ActiveMutant:      mt,
		TestFilter:        filter,
		Timeout:           p.timeout(netTime, dryRun.Overhead),
		DisableBail:       p.options.DisableBail,
		MutantActivation:  activation,
		ReloadEnvironment: reload,
	}

	// Only runners that count hits can enforce the limit.
	if hits, ok := coverage.HitsByMutantID(mt.ID); ok && hits > 0 && dryRun.CountsHits {
		limit := hits * hitLimitFactor
		options.HitLimit = &limit
	}

	return m.MutantTestPlan{Kind: m.PlanRun, Mutant: mt, RunOptions: options, NetTime: netTime}
}

func (p *mutantTestPlanner) timeout(netTime, overhead time.Duration) time.Duration {
	return time.Duration(float64(netTime)*p.options.TimeoutFactor) + p.options.Timeout + overhead
}

func (p *mutantTestPlanner) warnAboutStatic(plans []m.MutantTestPlan) {
	if p.options.IgnoreStatic {
		return
	}

	var staticTime, totalTime time.Duration

	staticCount := 0

	for _, plan := range plans {
		if plan.Kind != m.PlanRun {
			continue
		}

		totalTime += plan.NetTime

		if plan.Mutant.Static {
			staticTime += plan.NetTime
			staticCount++
		}
	}

	if totalTime == 0 || float64(staticTime)/float64(totalTime) <= staticWarningThreshold {
		return
	}

	slog.Warn("Static mutants account for a large share of the estimated run time, consider enabling ignore_static",
		"staticMutants", staticCount,
		"staticShare", float64(staticTime)/float64(totalTime),
		"estimatedTime", totalTime,
	)
}

func earlyResult(mt m.Mutant) m.MutantTestPlan {
	return m.MutantTestPlan{Kind: m.PlanEarlyResult, Mutant: mt}
}

func testIDs(tests []m.TestResult) []string {
	if len(tests) == 0 {
		return nil
	}

	ids := make([]string, 0, len(tests))
	for _, test := range tests {
		ids = append(ids, test.ID)
	}

	return ids
}
