package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

// SimpleUI implements UI using cobra Command's output.
type SimpleUI struct {
	cmd *cobra.Command

	mu     sync.Mutex
	tested int
	total  int
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.tested, s.total = 0, 0
	s.mu.Unlock()

	return nil
}

// Close finalizes the UI.
func (s *SimpleUI) Close(_ context.Context) {}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(_ context.Context) {
	// SimpleUI doesn't block - it just prints and continues
}

// DisplayRunInfo shows the run settings.
func (s *SimpleUI) DisplayRunInfo(ctx context.Context, info RunInfo) {
	if err := ctx.Err(); err != nil {
		return
	}

	concurrency := "default"
	if info.Concurrency > 0 {
		concurrency = fmt.Sprintf("%d", info.Concurrency)
	}

	if info.ShardCount > 1 {
		s.printf("Testing mutants from %s with concurrency %s (Shard %d/%d)\n", info.MutantsFile, concurrency, info.ShardIndex, info.ShardCount)
		return
	}

	s.printf("Testing mutants from %s with concurrency %s\n", info.MutantsFile, concurrency)
}

// DisplayDryRun shows the outcome of the initial test run.
func (s *SimpleUI) DisplayDryRun(ctx context.Context, result m.DryRunResult) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Initial test run completed: %d test(s)\n", len(result.Tests))
}

// DisplayUpcomingTests shows how many mutants are about to be tested.
func (s *SimpleUI) DisplayUpcomingTests(ctx context.Context, total, runs int) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.mu.Lock()
	s.total = total
	s.mu.Unlock()

	s.printf("Upcoming mutants: %d (%d to run, %d known without running)\n", total, runs, total-runs)
}

// DisplayMutantResult prints one tested mutant and, for undetected mutants, its diff.
func (s *SimpleUI) DisplayMutantResult(ctx context.Context, mt m.Mutant, original []byte) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tested++

	s.printf("[%d/%d] %s %s (%s)\n", s.tested, s.total, mt.Status, mutantLocation(mt), mt.MutatorName)

	if !showsDiff(mt.Status) {
		return
	}

	diff, err := mutantDiff(mt, original)
	if err != nil {
		slog.Warn("Failed to render mutant diff", "mutant", mt.ID, "error", err)
		return
	}

	if diff != "" {
		s.printf("%s\n", diff)
	}
}

// DisplayPlan prints the test plan as a table.
func (s *SimpleUI) DisplayPlan(ctx context.Context, plans []m.MutantTestPlan) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.printf("\n%s", renderPlanTable(plans))

	return nil
}

// DisplayReport prints a per-file summary of report.
func (s *SimpleUI) DisplayReport(ctx context.Context, report *m.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if report == nil {
		return fmt.Errorf("display report: nil report")
	}

	s.printf("\n%s", renderReportTable(report))

	return nil
}

// DisplayMutationScore prints the final mutation score.
func (s *SimpleUI) DisplayMutationScore(ctx context.Context, score float64) {
	if err := ctx.Err(); err != nil {
		return
	}

	s.printf("Mutation score: %.2f%%\n", score*100)
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}
