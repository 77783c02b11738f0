package adapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/modfile"
	"golang.org/x/tools/cover"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

// testIDSeparator joins package import path and test name into a test id.
const testIDSeparator = "::"

// testBinaryGrace is added on top of twice the run timeout to form the
// -timeout passed to the test binary. It only fires when cancellation failed.
const testBinaryGrace = 30 * time.Second

// GoTestRunner runs the tests of a Go module with `go test -json`. Every run
// starts a fresh `go test` process, so the environment is reloaded on each run.
// Dispose terminates an in-flight run by killing the process.
type GoTestRunner struct {
	dir        m.Path
	goBin      string
	modulePath string
	files      GoFileAdapter

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewGoTestRunner creates a runner for the module rooted at dir.
func NewGoTestRunner(dir m.Path) *GoTestRunner {
	return &GoTestRunner{
		dir:   dir,
		goBin: "go",
		files: NewLocalGoFileAdapter(),
	}
}

// Capabilities implements TestRunner. Coverage counters are only collected in
// the dry run, so mutant runs do not count hits.
func (r *GoTestRunner) Capabilities() m.Capabilities {
	return m.Capabilities{ReloadEnvironment: true}
}

// Init implements TestRunner. It resolves the module path and the go binary.
func (r *GoTestRunner) Init(_ context.Context) error {
	content, err := os.ReadFile(filepath.Join(string(r.dir), "go.mod"))
	if err != nil {
		return fmt.Errorf("read go.mod: %w", err)
	}

	r.modulePath = modfile.ModulePath(content)
	if r.modulePath == "" {
		return fmt.Errorf("no module path in %s", filepath.Join(string(r.dir), "go.mod"))
	}

	goBin, err := exec.LookPath(r.goBin)
	if err != nil {
		return fmt.Errorf("find go binary: %w", err)
	}

	r.goBin = goBin

	slog.Debug("Initialized go test runner", "dir", r.dir, "module", r.modulePath)

	return nil
}

// DryRun implements TestRunner.
func (r *GoTestRunner) DryRun(ctx context.Context, options m.DryRunOptions) (m.DryRunResult, error) {
	args := append([]string{"test", "-json", "-count=1", "-vet=off"}, testBinaryTimeout(options.Timeout)...)

	run, err := r.runGo(ctx, append(args, "./..."), nil)
	if err != nil {
		return m.DryRunResult{}, err
	}

	if run.buildFailed || run.setupFailed {
		return m.DryRunResult{Status: m.DryRunError, ErrorMessage: run.errorOutput()}, nil
	}

	result := m.DryRunResult{
		Status: m.DryRunComplete,
		Tests:  run.results,
	}

	switch options.CoverageAnalysis {
	case m.CoverageAll:
		result.Coverage, err = r.collectAllCoverage(ctx, options.Mutants)
	case m.CoveragePerTest:
		result.Coverage, err = r.collectPerTestCoverage(ctx, run.results, options.Mutants)
	case m.CoverageOff:
	}

	if err != nil {
		return m.DryRunResult{}, fmt.Errorf("collect coverage: %w", err)
	}

	if result.Coverage != nil {
		if err := r.markInitScopes(ctx, result.Coverage, options.Mutants); err != nil {
			return m.DryRunResult{}, fmt.Errorf("detect static mutants: %w", err)
		}
	}

	return result, nil
}

// markInitScopes moves mutants in package-level declarations and init
// functions to static coverage. Their counters are hit while the test binary
// starts, so every test would otherwise appear to cover them.
func (r *GoTestRunner) markInitScopes(ctx context.Context, coverage *m.CoverageData, mutants []m.Mutant) error {
	static, err := initScopeMutants(ctx, r.files, r.dir, mutants)
	if err != nil {
		return err
	}

	for id := range static {
		if coverage.Static[id] == 0 {
			coverage.Static[id] = 1
		}

		for _, perTest := range coverage.PerTest {
			delete(perTest, id)
		}
	}

	return nil
}

// MutantRun implements TestRunner. The active mutant must already be written
// into the sandbox.
func (r *GoTestRunner) MutantRun(ctx context.Context, options m.MutantRunOptions) (m.MutantRunResult, error) {
	args := append([]string{"test", "-json", "-count=1", "-vet=off"}, testBinaryTimeout(options.Timeout)...)
	if !options.DisableBail {
		args = append(args, "-failfast")
	}

	if options.TestFilter != nil {
		if len(options.TestFilter) == 0 {
			return m.MutantRunResult{Status: m.RunSurvived}, nil
		}

		packages, pattern := runPattern(options.TestFilter)
		args = append(args, "-run", pattern)
		args = append(args, packages...)
	} else {
		args = append(args, "./...")
	}

	run, err := r.runGo(ctx, args, []string{ActiveMutantEnv + "=" + options.ActiveMutant.ID})
	if err != nil {
		return m.MutantRunResult{}, err
	}

	switch {
	case run.buildFailed:
		return m.MutantRunResult{Status: m.RunError, CompileError: true, ErrorMessage: run.errorOutput()}, nil
	case len(run.failed) > 0:
		killedBy := run.failed
		if !options.DisableBail {
			killedBy = killedBy[:1]
		}

		return m.MutantRunResult{
			Status:         m.RunKilled,
			KilledBy:       killedBy,
			FailureMessage: run.failureMessage(killedBy[0]),
			NrOfTests:      len(run.results),
		}, nil
	case run.packageFailed || run.setupFailed:
		return m.MutantRunResult{Status: m.RunError, ErrorMessage: run.errorOutput()}, nil
	default:
		return m.MutantRunResult{Status: m.RunSurvived, NrOfTests: len(run.results)}, nil
	}
}

// Dispose implements TestRunner. It kills the in-flight `go test` process and
// the test binaries it started, if any.
func (r *GoTestRunner) Dispose(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}

	return nil
}

func (r *GoTestRunner) runGo(ctx context.Context, args []string, env []string) (*testRun, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	// #nosec G204 - arguments are built from test ids reported by go test itself
	cmd := exec.CommandContext(runCtx, r.goBin, args...)
	cmd.Dir = string(r.dir)
	cmd.Env = append(os.Environ(), env...)
	cmd.WaitDelay = 5 * time.Second
	killGroupOnCancel(cmd)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()

	slog.Debug("Ran go", "dir", r.dir, "args", args, "elapsed", time.Since(started), "error", err)

	if runCtx.Err() != nil {
		return nil, fmt.Errorf("go %s interrupted: %w", args[0], context.Cause(runCtx))
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("run go %s: %w", args[0], err)
	}

	if strings.Contains(stderr.String(), "out of memory") {
		return nil, fmt.Errorf("go %s: %w", args[0], ErrOutOfMemory)
	}

	if exitErr != nil && exitErr.ExitCode() == -1 {
		return nil, fmt.Errorf("go %s: %w: %s", args[0], ErrProcessCrashed, exitErr)
	}

	run := parseTestEvents(&stdout)
	run.stderr = stderr.String()

	if exitErr != nil && !run.sawEvents && !run.buildFailed {
		run.setupFailed = true
	}

	return run, nil
}

// testBinaryTimeout backs up cancellation: a test binary left behind by a
// failed kill still stops on its own.
func testBinaryTimeout(timeout time.Duration) []string {
	if timeout <= 0 {
		return nil
	}

	return []string{"-timeout=" + (2*timeout + testBinaryGrace).String()}
}

func (r *GoTestRunner) collectAllCoverage(ctx context.Context, mutants []m.Mutant) (*m.CoverageData, error) {
	profiles, err := r.coverProfiles(ctx, "", []string{"./..."})
	if err != nil {
		return nil, err
	}

	index := newCoverageIndex(r.modulePath, profiles)
	coverage := &m.CoverageData{Static: m.MutantCoverage{}, PerTest: map[string]m.MutantCoverage{}}

	for _, mt := range mutants {
		hits, inBlock, known := index.hits(mt)
		switch {
		case !known:
		case !inBlock:
			coverage.Static[mt.ID] = 1
		case hits > 0:
			coverage.Static[mt.ID] = hits
		}
	}

	return coverage, nil
}

func (r *GoTestRunner) collectPerTestCoverage(ctx context.Context, tests []m.TestResult, mutants []m.Mutant) (*m.CoverageData, error) {
	coverage := &m.CoverageData{Static: m.MutantCoverage{}, PerTest: map[string]m.MutantCoverage{}}

	for _, test := range tests {
		if test.Status == m.TestSkipped {
			continue
		}

		pkg, name := splitTestID(test.ID)

		profiles, err := r.coverProfiles(ctx, "^"+regexp.QuoteMeta(name)+"$", []string{pkg})
		if err != nil {
			return nil, fmt.Errorf("coverage of %s: %w", test.ID, err)
		}

		index := newCoverageIndex(r.modulePath, profiles)
		perTest := m.MutantCoverage{}

		for _, mt := range mutants {
			hits, inBlock, known := index.hits(mt)
			switch {
			case !known:
			case !inBlock:
				coverage.Static[mt.ID] = 1
			case hits > 0:
				perTest[mt.ID] = hits
			}
		}

		coverage.PerTest[test.ID] = perTest
	}

	slog.Debug("Collected per-test coverage", "tests", len(coverage.PerTest), "static", len(coverage.Static))

	return coverage, nil
}

func (r *GoTestRunner) coverProfiles(ctx context.Context, pattern string, packages []string) ([]*cover.Profile, error) {
	file, err := os.CreateTemp("", "mutiny-cover-*.out")
	if err != nil {
		return nil, fmt.Errorf("create coverprofile: %w", err)
	}

	profilePath := file.Name()
	_ = file.Close()

	defer func() {
		if err := os.Remove(profilePath); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove coverprofile", "path", profilePath, "error", err)
		}
	}()

	args := []string{"test", "-json", "-count=1", "-vet=off", "-covermode=count", "-coverpkg=./...", "-coverprofile=" + profilePath}
	if pattern != "" {
		args = append(args, "-run", pattern)
	}

	args = append(args, packages...)

	run, err := r.runGo(ctx, args, nil)
	if err != nil {
		return nil, err
	}

	if run.buildFailed || run.setupFailed {
		return nil, fmt.Errorf("coverage run failed: %s", run.errorOutput())
	}

	profiles, err := cover.ParseProfiles(profilePath)
	if err != nil {
		return nil, fmt.Errorf("parse coverprofile: %w", err)
	}

	return profiles, nil
}

// coverageIndex maps project relative file names to coverage blocks.
type coverageIndex map[string][]cover.ProfileBlock

func newCoverageIndex(modulePath string, profiles []*cover.Profile) coverageIndex {
	index := coverageIndex{}

	for _, profile := range profiles {
		name := strings.TrimPrefix(profile.FileName, modulePath+"/")
		index[name] = append(index[name], profile.Blocks...)
	}

	return index
}

// hits returns the highest block count overlapping the mutant, whether the
// mutant overlaps any block at all, and whether the file is instrumented.
// A mutant in an instrumented file that overlaps no block sits outside any
// function body and runs at package initialization.
func (idx coverageIndex) hits(mt m.Mutant) (int, bool, bool) {
	blocks, ok := idx[mt.FileName]
	if !ok {
		return 0, false, false
	}

	start := [2]int{mt.Location.Start.Line + 1, mt.Location.Start.Column + 1}
	end := [2]int{mt.Location.End.Line + 1, mt.Location.End.Column + 1}

	hits, inBlock := 0, false

	for _, block := range blocks {
		blockStart := [2]int{block.StartLine, block.StartCol}
		blockEnd := [2]int{block.EndLine, block.EndCol}

		var overlaps bool
		if start == end {
			overlaps = !less(start, blockStart) && less(start, blockEnd)
		} else {
			overlaps = less(start, blockEnd) && less(blockStart, end)
		}

		if overlaps {
			inBlock = true
			hits = max(hits, block.Count)
		}
	}

	return hits, inBlock, true
}

func less(a, b [2]int) bool {
	if a[0] != b[0] {
		return a[0] < b[0]
	}

	return a[1] < b[1]
}

// runPattern groups test ids by package and builds a -run pattern matching
// exactly the given top-level tests.
func runPattern(testIDs []string) ([]string, string) {
	packages := map[string]struct{}{}
	names := map[string]struct{}{}

	for _, id := range testIDs {
		pkg, name := splitTestID(id)
		packages[pkg] = struct{}{}
		names[regexp.QuoteMeta(name)] = struct{}{}
	}

	return sortedKeys(packages), "^(" + strings.Join(sortedKeys(names), "|") + ")$"
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// TestID builds the id of a top-level test.
func TestID(pkg, name string) string {
	return pkg + testIDSeparator + name
}

func splitTestID(id string) (string, string) {
	pkg, name, ok := strings.Cut(id, testIDSeparator)
	if !ok {
		return "./...", id
	}

	return pkg, name
}

// testEvent is one line of `go test -json` output.
type testEvent struct {
	Action     string
	Package    string
	ImportPath string
	Test       string
	Elapsed    float64
	Output     string
}

type testRun struct {
	results       []m.TestResult
	failed        []string
	outputs       map[string]*strings.Builder
	packageOutput strings.Builder
	stderr        string
	sawEvents     bool
	buildFailed   bool
	setupFailed   bool
	packageFailed bool
}

func (run *testRun) failureMessage(id string) string {
	if out, ok := run.outputs[id]; ok {
		return strings.TrimSpace(out.String())
	}

	return ""
}

func (run *testRun) errorOutput() string {
	return strings.TrimSpace(run.packageOutput.String() + run.stderr)
}

// parseTestEvents reads test2json events. Only top-level tests are recorded;
// subtest results roll up into their parent.
func parseTestEvents(r io.Reader) *testRun {
	run := &testRun{outputs: map[string]*strings.Builder{}}
	failedPackages := map[string]bool{}
	packagesWithFailedTests := map[string]bool{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()

		var event testEvent
		if err := json.Unmarshal(line, &event); err != nil {
			run.packageOutput.Write(line)
			run.packageOutput.WriteByte('\n')

			continue
		}

		run.sawEvents = true

		switch {
		case event.Action == "build-output":
			run.packageOutput.WriteString(event.Output)
		case event.Action == "build-fail":
			run.buildFailed = true
		case event.Test == "":
			run.handlePackageEvent(event, failedPackages)
		case !strings.Contains(event.Test, "/"):
			if run.handleTestEvent(event) {
				packagesWithFailedTests[event.Package] = true
			}
		}
	}

	for pkg := range failedPackages {
		if !packagesWithFailedTests[pkg] {
			run.packageFailed = true
		}
	}

	return run
}

func (run *testRun) handlePackageEvent(event testEvent, failedPackages map[string]bool) {
	switch event.Action {
	case "output":
		if strings.Contains(event.Output, "[build failed]") {
			run.buildFailed = true
		}

		if strings.Contains(event.Output, "[setup failed]") {
			run.setupFailed = true
		}

		run.packageOutput.WriteString(event.Output)
	case "fail":
		failedPackages[event.Package] = true
	}
}

// handleTestEvent records a top-level test event and reports whether the test failed.
func (run *testRun) handleTestEvent(event testEvent) bool {
	id := TestID(event.Package, event.Test)

	var status m.TestStatus

	switch event.Action {
	case "output":
		out, ok := run.outputs[id]
		if !ok {
			out = &strings.Builder{}
			run.outputs[id] = out
		}

		out.WriteString(event.Output)

		return false
	case "pass":
		status = m.TestPassed
	case "fail":
		status = m.TestFailed
		run.failed = append(run.failed, id)
	case "skip":
		status = m.TestSkipped
	default:
		return false
	}

	run.results = append(run.results, m.TestResult{
		ID:             id,
		Name:           event.Test,
		FileName:       event.Package,
		Status:         status,
		TimeSpent:      time.Duration(event.Elapsed * float64(time.Second)),
		FailureMessage: run.failureMessageIf(status, id),
	})

	return status == m.TestFailed
}

func (run *testRun) failureMessageIf(status m.TestStatus, id string) string {
	if status != m.TestFailed {
		return ""
	}

	return run.failureMessage(id)
}
