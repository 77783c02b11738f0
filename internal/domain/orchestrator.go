package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"mutiny.dev/pkg/mutiny/internal/adapter"
	m "mutiny.dev/pkg/mutiny/internal/model"
	"mutiny.dev/pkg/mutiny/pkg"
)

// RunArgs configures a single mutation run.
type RunArgs struct {
	ProjectRoot m.Path
	MutantsFile m.Path
	// Concurrency below one means DefaultConcurrency. In-place runs always use one.
	Concurrency int

	// ShardIndex and ShardCount split the mutants between independent runs.
	// A ShardCount below two disables sharding.
	ShardIndex int
	ShardCount int

	Incremental bool
	// IncrementalFile is where the report is written after every run and, with
	// Incremental, where the previous report is read from.
	IncrementalFile m.Path
	Force           bool

	Sandbox            SandboxOptions
	DryRun             DryRunOptions
	Planner            PlannerOptions
	MaxTestRunnerReuse int

	// Reporter receives progress events. It may be nil.
	Reporter Reporter
}

// RunSummary describes a finished mutation run.
type RunSummary struct {
	RunID   string
	Mutants []m.Mutant
	Report  *m.Report
	Score   float64
	DryRun  DryRunSummary
}

// PlanSummary describes the plan of a mutation run that was not executed.
type PlanSummary struct {
	RunID  string
	Plans  []m.MutantTestPlan
	DryRun DryRunSummary
}

// Orchestrator wires the components of a mutation run together: project and
// mutant reading, sandboxes, worker pools, the executor and the report store.
type Orchestrator interface {
	Run(ctx context.Context, args RunArgs) (RunSummary, error)
	Plan(ctx context.Context, args RunArgs) (PlanSummary, error)
}

// OrchestratorDeps are the adapters an Orchestrator works with.
type OrchestratorDeps struct {
	FS          adapter.SourceFSAdapter
	Mutants     adapter.MutantReader
	Reports     adapter.ReportStore
	TestRunners adapter.TestRunnerFactory
	Checkers    []adapter.CheckerFactory
	Metrics     adapter.Metrics
}

type orchestrator struct {
	deps OrchestratorDeps
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(deps OrchestratorDeps) Orchestrator {
	if deps.Metrics == nil {
		deps.Metrics = adapter.NoopMetrics{}
	}

	return &orchestrator{deps: deps}
}

// session holds everything created for one run. close releases it in reverse
// order and tolerates partially built sessions.
type session struct {
	id       string
	log      *slog.Logger
	files    []m.File
	mutants  []m.Mutant
	previous *m.Report

	sandboxes SandboxManager
	runners   *pkg.Pool[*TestRunnerWorker]
	checkers  *pkg.Pool[*CheckerWorker]
	executor  MutationTestExecutor
}

func (o *orchestrator) Run(ctx context.Context, args RunArgs) (summary RunSummary, err error) {
	s, err := o.open(ctx, args)
	defer func() { s.close(ctx, err == nil) }()

	if err != nil {
		return RunSummary{}, err
	}

	tested, dryRun, err := s.executor.Execute(ctx, s.mutants, s.previous)
	if err != nil {
		s.log.Error("Failed to test mutants", "error", err)
		return RunSummary{}, err
	}

	report := m.NewReport(s.files, tested, dryRun.Result.Tests)

	if args.IncrementalFile != "" {
		if err := o.deps.Reports.Save(ctx, args.IncrementalFile, report); err != nil {
			s.log.Error("Failed to save report", "path", args.IncrementalFile, "error", err)
			return RunSummary{}, fmt.Errorf("save report: %w", err)
		}
	}

	score := MutationScore(tested)
	o.deps.Metrics.SetMutationScore(score)

	if err := o.deps.Metrics.Flush(); err != nil {
		s.log.Warn("Failed to write metrics", "error", err)
	}

	s.log.Info("Mutation run finished", "mutants", len(tested), "score", score)

	return RunSummary{
		RunID:   s.id,
		Mutants: tested,
		Report:  report,
		Score:   score,
		DryRun:  dryRun,
	}, nil
}

func (o *orchestrator) Plan(ctx context.Context, args RunArgs) (summary PlanSummary, err error) {
	s, err := o.open(ctx, args)
	defer func() { s.close(ctx, err == nil) }()

	if err != nil {
		return PlanSummary{}, err
	}

	plans, dryRun, err := s.executor.Plan(ctx, s.mutants, s.previous)
	if err != nil {
		s.log.Error("Failed to plan mutants", "error", err)
		return PlanSummary{}, err
	}

	return PlanSummary{RunID: s.id, Plans: plans, DryRun: dryRun}, nil
}

func (o *orchestrator) open(ctx context.Context, args RunArgs) (*session, error) {
	s := &session{id: uuid.NewString()}
	s.log = slog.With("run", s.id)

	sandboxOptions := args.Sandbox
	sandboxOptions.ProjectRoot = args.ProjectRoot

	if sandboxOptions.TempDirName == "" {
		sandboxOptions.TempDirName = DefaultTempDirName
	}

	s.log.Info("Starting mutation run", "projectRoot", args.ProjectRoot, "mutants", args.MutantsFile)

	skipDirs := append(slices.Clone(sandboxOptions.SymlinkDirs), sandboxOptions.TempDirName)

	files, err := o.deps.FS.ReadProject(ctx, args.ProjectRoot, skipDirs)
	if err != nil {
		return s, err
	}

	mutants, err := o.deps.Mutants.Read(ctx, args.MutantsFile)
	if err != nil {
		return s, err
	}

	s.mutants = shardMutants(mutants, args.ShardIndex, args.ShardCount)

	sources, err := o.readSources(ctx, args.ProjectRoot, files, s.mutants)
	if err != nil {
		return s, err
	}

	s.files = files

	if args.Incremental {
		s.previous, err = o.deps.Reports.Load(ctx, args.IncrementalFile)
		if err != nil {
			return s, err
		}
	}

	s.sandboxes = NewSandboxManager(o.deps.FS, files, sandboxOptions)
	if err := s.sandboxes.Init(ctx); err != nil {
		return s, err
	}

	concurrency := args.Concurrency
	if sandboxOptions.InPlace && concurrency != 1 {
		s.log.Warn("In-place mode runs a single worker", "concurrency", concurrency)
		concurrency = 1
	}

	tokens := NewConcurrencyTokenProvider(concurrency, len(o.deps.Checkers))
	ids := &WorkerIDs{}

	create := NewTestRunnerFactory(o.deps.TestRunners, TestRunnerOptions{
		MaxTestRunnerReuse: args.MaxTestRunnerReuse,
		Metrics:            o.deps.Metrics,
	})

	s.runners = pkg.NewPool(tokens.TestRunnerTokens(), NewTestRunnerWorkerFactory(s.sandboxes, create, o.deps.Metrics, ids))

	if len(o.deps.Checkers) > 0 {
		s.checkers = pkg.NewPool(tokens.CheckerTokens(), NewCheckerWorkerFactory(s.sandboxes, o.deps.Checkers, o.deps.Metrics, ids))
	}

	var reporters Reporters
	if args.Reporter != nil {
		reporters = append(reporters, args.Reporter)
	}

	reporters.OnSourceFilesRead(ctx, sources)

	var differ IncrementalDiffer
	if args.Incremental {
		differ = NewIncrementalDiffer(args.Force)
	}

	s.executor = NewMutationTestExecutor(ExecutorDeps{
		Runners:  s.runners,
		Checkers: s.checkers,
		Tokens:   tokens,
		DryRun:   NewDryRunExecutor(args.DryRun),
		Planner:  NewMutantTestPlanner(args.Planner, differ, sources),
		Reporter: reporters,
		Metrics:  o.deps.Metrics,
	})

	s.log.Debug("Mutation run ready",
		"files", len(files),
		"mutants", len(s.mutants),
		"concurrency", tokens.Concurrency(),
		"checkers", len(o.deps.Checkers),
		"previousReport", s.previous != nil,
	)

	return s, nil
}

// readSources loads the content of every file that holds a mutant and marks
// those files for mutation.
func (o *orchestrator) readSources(ctx context.Context, root m.Path, files []m.File, mutants []m.Mutant) (map[string][]byte, error) {
	index := make(map[string]int, len(files))
	for i, file := range files {
		index[file.Name] = i
	}

	sources := map[string][]byte{}

	for _, mt := range mutants {
		if _, ok := sources[mt.FileName]; ok {
			continue
		}

		i, ok := index[mt.FileName]
		if !ok {
			return nil, fmt.Errorf("%w: mutant %s refers to %s", ErrUnknownFile, mt.ID, mt.FileName)
		}

		content, err := o.deps.FS.ReadFile(ctx, o.deps.FS.JoinPath(string(root), mt.FileName))
		if err != nil {
			return nil, fmt.Errorf("read source %s: %w", mt.FileName, err)
		}

		files[i].Content = content
		files[i].Mutate = true
		sources[mt.FileName] = content
	}

	return sources, nil
}

func (s *session) close(ctx context.Context, succeeded bool) {
	ctx = context.WithoutCancel(ctx)

	var errs []error

	if s.runners != nil {
		errs = append(errs, s.runners.Dispose(ctx))
	}

	if s.checkers != nil {
		errs = append(errs, s.checkers.Dispose(ctx))
	}

	if s.sandboxes != nil {
		errs = append(errs, s.sandboxes.Dispose(ctx, succeeded))
	}

	if err := errors.Join(errs...); err != nil {
		s.log.Warn("Failed to clean up mutation run", "error", err)
	}
}

// shardMutants keeps every mutant whose position modulo count equals index.
func shardMutants(mutants []m.Mutant, index, count int) []m.Mutant {
	if count < 2 {
		return mutants
	}

	var shard []m.Mutant

	for i, mt := range mutants {
		if i%count == index {
			shard = append(shard, mt)
		}
	}

	slog.Info("Sharded mutants", "shard", fmt.Sprintf("%d/%d", index, count), "mutants", len(shard), "total", len(mutants))

	return shard
}
