package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mutiny.dev/pkg/mutiny/internal/adapter"
	"mutiny.dev/pkg/mutiny/internal/controller"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

// ErrNoReport is returned when a report to view or merge does not exist.
var ErrNoReport = errors.New("no report found")

// ViewArgs contains the arguments for viewing a stored report.
type ViewArgs struct {
	Report m.Path
}

// MergeArgs contains the arguments for merging shard reports.
type MergeArgs struct {
	Reports []m.Path
	Output  m.Path
}

// Workflow is the set of use cases offered by the command line.
type Workflow interface {
	// Test runs the mutants and displays their results and the mutation score.
	Test(ctx context.Context, args RunArgs) error
	// Plan runs the initial test run and displays the plan without testing mutants.
	Plan(ctx context.Context, args RunArgs) error
	View(ctx context.Context, args ViewArgs) error
	Merge(ctx context.Context, args MergeArgs) error
}

type workflow struct {
	adapter.ReportStore
	controller.UI
	Orchestrator
}

// NewWorkflow creates a new Workflow instance with the provided dependencies.
func NewWorkflow(reportStore adapter.ReportStore, ui controller.UI, orchestrator Orchestrator) Workflow {
	return &workflow{
		ReportStore:  reportStore,
		UI:           ui,
		Orchestrator: orchestrator,
	}
}

func (w *workflow) Test(ctx context.Context, args RunArgs) error {
	if err := w.Start(ctx, controller.WithTestMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	args.Reporter = w.withUIReporter(args.Reporter)

	w.DisplayRunInfo(ctx, controller.RunInfo{
		MutantsFile: string(args.MutantsFile),
		Concurrency: args.Concurrency,
		ShardIndex:  args.ShardIndex,
		ShardCount:  args.ShardCount,
	})

	summary, err := w.Run(ctx, args)
	if err != nil {
		w.Close(ctx)
		slog.Error("Failed to run mutation tests", "error", err)

		return fmt.Errorf("run mutation tests: %w", err)
	}

	w.DisplayMutationScore(ctx, summary.Score)

	w.Wait(ctx)
	w.Close(ctx)

	return nil
}

func (w *workflow) Plan(ctx context.Context, args RunArgs) error {
	if err := w.Start(ctx, controller.WithPlanMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	args.Reporter = w.withUIReporter(args.Reporter)

	summary, err := w.Orchestrator.Plan(ctx, args)
	if err != nil {
		w.Close(ctx)
		slog.Error("Failed to plan mutation tests", "error", err)

		return fmt.Errorf("plan mutation tests: %w", err)
	}

	if err := w.DisplayPlan(ctx, summary.Plans); err != nil {
		w.Close(ctx)
		return fmt.Errorf("display: %w", err)
	}

	w.Wait(ctx)
	w.Close(ctx)

	return nil
}

func (w *workflow) View(ctx context.Context, args ViewArgs) error {
	report, err := w.Load(ctx, args.Report)
	if err != nil {
		return fmt.Errorf("load report: %w", err)
	}

	if report == nil {
		return fmt.Errorf("%w at %s", ErrNoReport, args.Report)
	}

	if err := w.Start(ctx, controller.WithViewMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	if err := w.DisplayReport(ctx, report); err != nil {
		w.Close(ctx)
		return fmt.Errorf("display: %w", err)
	}

	w.DisplayMutationScore(ctx, MutationScore(report.Mutants()))

	w.Wait(ctx)
	w.Close(ctx)

	return nil
}

func (w *workflow) Merge(ctx context.Context, args MergeArgs) error {
	if len(args.Reports) == 0 {
		return errors.New("merge: no reports given")
	}

	reports := make([]*m.Report, 0, len(args.Reports))

	for _, path := range args.Reports {
		report, err := w.Load(ctx, path)
		if err != nil {
			return fmt.Errorf("load report: %w", err)
		}

		if report == nil {
			return fmt.Errorf("%w at %s", ErrNoReport, path)
		}

		reports = append(reports, report)
	}

	merged := MergeReports(reports...)

	if err := w.Save(ctx, args.Output, merged); err != nil {
		return fmt.Errorf("save merged report: %w", err)
	}

	slog.Info("Merged reports", "reports", len(reports), "files", len(merged.Files), "output", args.Output)

	return nil
}

func (w *workflow) withUIReporter(reporter Reporter) Reporter {
	if reporter == nil {
		return NewUIReporter(w.UI)
	}

	return Reporters{NewUIReporter(w.UI), reporter}
}

// MergeReports combines the reports of several shards. Mutants and tests are
// deduplicated by id; the first report holding an id wins.
func MergeReports(reports ...*m.Report) *m.Report {
	merged := &m.Report{
		SchemaVersion: m.ReportSchemaVersion,
		Files:         map[string]m.FileResult{},
		TestFiles:     map[string]m.TestFileResult{},
	}

	seenMutants := map[string]map[string]bool{}
	seenTests := map[string]map[string]bool{}

	for _, report := range reports {
		if report == nil {
			continue
		}

		for name, file := range report.Files {
			target, ok := merged.Files[name]
			if !ok {
				target = m.FileResult{Language: file.Language, Source: file.Source}
				seenMutants[name] = map[string]bool{}
			}

			if target.Source != file.Source {
				slog.Warn("Shard reports disagree on source, keeping the first", "file", name)
			}

			for _, mt := range file.Mutants {
				if seenMutants[name][mt.ID] {
					continue
				}

				seenMutants[name][mt.ID] = true
				target.Mutants = append(target.Mutants, mt)
			}

			merged.Files[name] = target
		}

		for name, file := range report.TestFiles {
			target, ok := merged.TestFiles[name]
			if !ok {
				target = m.TestFileResult{Source: file.Source}
				seenTests[name] = map[string]bool{}
			}

			for _, test := range file.Tests {
				if seenTests[name][test.ID] {
					continue
				}

				seenTests[name][test.ID] = true
				target.Tests = append(target.Tests, test)
			}

			merged.TestFiles[name] = target
		}
	}

	return merged
}
