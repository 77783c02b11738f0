package adapter

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/cover"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

func TestParseTestEvents(t *testing.T) {
	output := strings.Join([]string{
		`{"Action":"start","Package":"example.com/calc"}`,
		`{"Action":"run","Package":"example.com/calc","Test":"TestAdd"}`,
		`{"Action":"output","Package":"example.com/calc","Test":"TestAdd","Output":"=== RUN   TestAdd\n"}`,
		`{"Action":"pass","Package":"example.com/calc","Test":"TestAdd","Elapsed":0.25}`,
		`{"Action":"run","Package":"example.com/calc","Test":"TestMax"}`,
		`{"Action":"run","Package":"example.com/calc","Test":"TestMax/equal"}`,
		`{"Action":"output","Package":"example.com/calc","Test":"TestMax","Output":"    calc_test.go:12: Max(1, 3) = 1, want 3\n"}`,
		`{"Action":"fail","Package":"example.com/calc","Test":"TestMax/equal","Elapsed":0}`,
		`{"Action":"fail","Package":"example.com/calc","Test":"TestMax","Elapsed":0.01}`,
		`{"Action":"skip","Package":"example.com/calc","Test":"TestSlow","Elapsed":0}`,
		`{"Action":"output","Package":"example.com/calc","Output":"FAIL\n"}`,
		`{"Action":"fail","Package":"example.com/calc","Elapsed":0.3}`,
	}, "\n")

	run := parseTestEvents(strings.NewReader(output))

	require.True(t, run.sawEvents)
	assert.False(t, run.buildFailed)
	assert.False(t, run.packageFailed)
	assert.Equal(t, []string{"example.com/calc::TestMax"}, run.failed)

	require.Len(t, run.results, 3)
	assert.Equal(t, m.TestResult{
		ID:        "example.com/calc::TestAdd",
		Name:      "TestAdd",
		FileName:  "example.com/calc",
		Status:    m.TestPassed,
		TimeSpent: 250 * time.Millisecond,
	}, run.results[0])
	assert.Equal(t, m.TestFailed, run.results[1].Status)
	assert.Contains(t, run.results[1].FailureMessage, "Max(1, 3) = 1, want 3")
	assert.Equal(t, m.TestSkipped, run.results[2].Status)
}

func TestParseTestEvents_BuildFailure(t *testing.T) {
	t.Run("build events", func(t *testing.T) {
		output := strings.Join([]string{
			`{"ImportPath":"example.com/calc","Action":"build-output","Output":"./calc.go:8:11: invalid operation\n"}`,
			`{"ImportPath":"example.com/calc","Action":"build-fail"}`,
			`{"Action":"output","Package":"example.com/calc","Output":"FAIL\texample.com/calc [build failed]\n"}`,
			`{"Action":"fail","Package":"example.com/calc","Elapsed":0}`,
		}, "\n")

		run := parseTestEvents(strings.NewReader(output))

		assert.True(t, run.buildFailed)
		assert.Contains(t, run.errorOutput(), "invalid operation")
	})

	t.Run("plain compiler output", func(t *testing.T) {
		output := strings.Join([]string{
			`# example.com/calc`,
			`./calc.go:8:11: invalid operation`,
			`{"Action":"output","Package":"example.com/calc","Output":"FAIL\texample.com/calc [build failed]\n"}`,
			`{"Action":"fail","Package":"example.com/calc","Elapsed":0}`,
		}, "\n")

		run := parseTestEvents(strings.NewReader(output))

		assert.True(t, run.buildFailed)
		assert.Contains(t, run.errorOutput(), "# example.com/calc")
	})
}

func TestParseTestEvents_PackageFailureWithoutTests(t *testing.T) {
	output := strings.Join([]string{
		`{"Action":"output","Package":"example.com/calc","Output":"panic: boom\n"}`,
		`{"Action":"fail","Package":"example.com/calc","Elapsed":0}`,
	}, "\n")

	run := parseTestEvents(strings.NewReader(output))

	assert.True(t, run.packageFailed)
	assert.Empty(t, run.failed)
	assert.Contains(t, run.errorOutput(), "panic: boom")
}

func TestCoverageIndex_Hits(t *testing.T) {
	profiles := []*cover.Profile{
		{
			FileName: "example.com/calc/calc.go",
			Mode:     "count",
			Blocks: []cover.ProfileBlock{
				{StartLine: 7, StartCol: 24, EndLine: 9, EndCol: 2, NumStmt: 1, Count: 3},
				{StartLine: 25, StartCol: 24, EndLine: 27, EndCol: 2, NumStmt: 1, Count: 0},
			},
		},
	}

	index := newCoverageIndex("example.com/calc", profiles)

	mutant := func(file string, line, startCol, endCol int) m.Mutant {
		return m.Mutant{
			FileName: file,
			Location: m.Location{
				Start: m.Position{Line: line, Column: startCol},
				End:   m.Position{Line: line, Column: endCol},
			},
		}
	}

	tests := []struct {
		name        string
		mutant      m.Mutant
		wantHits    int
		wantInBlock bool
		wantKnown   bool
	}{
		{name: "covered", mutant: mutant("calc.go", 7, 10, 11), wantHits: 3, wantInBlock: true, wantKnown: true},
		{name: "not hit", mutant: mutant("calc.go", 25, 10, 11), wantHits: 0, wantInBlock: true, wantKnown: true},
		{name: "package level", mutant: mutant("calc.go", 3, 14, 15), wantHits: 0, wantInBlock: false, wantKnown: true},
		{name: "insertion point", mutant: mutant("calc.go", 7, 10, 10), wantHits: 3, wantInBlock: true, wantKnown: true},
		{name: "file not instrumented", mutant: mutant("other.go", 7, 10, 11), wantKnown: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, inBlock, known := index.hits(tt.mutant)
			assert.Equal(t, tt.wantHits, hits)
			assert.Equal(t, tt.wantInBlock, inBlock)
			assert.Equal(t, tt.wantKnown, known)
		})
	}
}

func TestRunPattern(t *testing.T) {
	packages, pattern := runPattern([]string{
		"example.com/calc::TestMax",
		"example.com/calc/sub::TestSub",
		"example.com/calc::TestAdd",
	})

	assert.Equal(t, []string{"example.com/calc", "example.com/calc/sub"}, packages)
	assert.Equal(t, "^(TestAdd|TestMax|TestSub)$", pattern)
}

func TestSplitTestID(t *testing.T) {
	pkg, name := splitTestID(TestID("example.com/calc", "TestAdd"))
	assert.Equal(t, "example.com/calc", pkg)
	assert.Equal(t, "TestAdd", name)

	pkg, name = splitTestID("TestBare")
	assert.Equal(t, "./...", pkg)
	assert.Equal(t, "TestBare", name)
}

func TestTestBinaryTimeout(t *testing.T) {
	assert.Nil(t, testBinaryTimeout(0))
	assert.Equal(t, []string{"-timeout=50s"}, testBinaryTimeout(10*time.Second))
}

func TestGoTestRunner_MutantRun_EmptyFilter(t *testing.T) {
	runner := NewGoTestRunner(m.Path(t.TempDir()))

	result, err := runner.MutantRun(context.Background(), m.MutantRunOptions{TestFilter: []string{}})
	require.NoError(t, err)
	assert.Equal(t, m.RunSurvived, result.Status)
	assert.Zero(t, result.NrOfTests)
}

func TestGoTestRunner_Capabilities(t *testing.T) {
	capabilities := NewGoTestRunner(m.Path(t.TempDir())).Capabilities()

	assert.True(t, capabilities.ReloadEnvironment)
	assert.False(t, capabilities.CountsHits, "mutant runs are not instrumented")
}

func TestGoTestRunner_Init_MissingGoMod(t *testing.T) {
	runner := NewGoTestRunner(m.Path(t.TempDir()))
	require.ErrorContains(t, runner.Init(context.Background()), "read go.mod")
}

// The tests below run `go test` against a copy of the calc example module.

func TestGoTestRunner_CalcExample(t *testing.T) {
	dir := calcSandbox(t)
	ctx := context.Background()

	mutants, err := NewFileMutantReader().Read(ctx, m.Path(filepath.Join(dir, "mutants.json")))
	require.NoError(t, err)

	runner := NewGoTestRunner(m.Path(dir))
	require.NoError(t, runner.Init(ctx))
	t.Cleanup(func() { _ = runner.Dispose(ctx) })

	t.Run("dry run with per-test coverage", func(t *testing.T) {
		result, err := runner.DryRun(ctx, m.DryRunOptions{CoverageAnalysis: m.CoveragePerTest, Mutants: mutants})
		require.NoError(t, err)
		require.Equal(t, m.DryRunComplete, result.Status, result.ErrorMessage)
		require.Len(t, result.Tests, 3)
		require.NotNil(t, result.Coverage)

		assert.Positive(t, result.Coverage.PerTest["example.com/calc::TestAdd"]["add-plus"])
		assert.Positive(t, result.Coverage.PerTest["example.com/calc::TestMax"]["max-gt"])
		assert.NotContains(t, result.Coverage.PerTest["example.com/calc::TestAdd"], "max-gt")
		assert.Contains(t, result.Coverage.Static, "scale-mul")
		assert.NotContains(t, result.Coverage.Static, "unused-minus")

		for _, perTest := range result.Coverage.PerTest {
			assert.NotContains(t, perTest, "unused-minus")
		}
	})

	t.Run("mutant run kills add-plus", func(t *testing.T) {
		restore := activateInDir(t, dir, mutants[0])
		defer restore()

		result, err := runner.MutantRun(ctx, m.MutantRunOptions{
			ActiveMutant: mutants[0],
			TestFilter:   []string{"example.com/calc::TestAdd"},
		})
		require.NoError(t, err)
		assert.Equal(t, m.RunKilled, result.Status)
		assert.Equal(t, []string{"example.com/calc::TestAdd"}, result.KilledBy)
		assert.Contains(t, result.FailureMessage, "Add(2, 3)")
	})

	t.Run("mutant run survives max-gt", func(t *testing.T) {
		restore := activateInDir(t, dir, mutants[1])
		defer restore()

		result, err := runner.MutantRun(ctx, m.MutantRunOptions{
			ActiveMutant: mutants[1],
			TestFilter:   []string{"example.com/calc::TestMax"},
		})
		require.NoError(t, err)
		assert.Equal(t, m.RunSurvived, result.Status)
		assert.Equal(t, 1, result.NrOfTests)
	})

	t.Run("compile error", func(t *testing.T) {
		broken := mutants[0]
		broken.Replacement = "&&"

		restore := activateInDir(t, dir, broken)
		defer restore()

		result, err := runner.MutantRun(ctx, m.MutantRunOptions{ActiveMutant: broken})
		require.NoError(t, err)
		assert.Equal(t, m.RunError, result.Status)
		assert.True(t, result.CompileError)
	})
}

func calcSandbox(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("runs go test")
	}

	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go binary not available")
	}

	src := filepath.Join("..", "..", "examples", "calc")
	dst := t.TempDir()

	names := []string{"go.mod", "calc.go", "calc_test.go", "mutants.json"}
	require.NoError(t, NewLocalSourceFSAdapter().CopyFiles(context.Background(), m.Path(src), m.Path(dst), names, 4))

	return dst
}

func activateInDir(t *testing.T, dir string, mt m.Mutant) func() {
	t.Helper()

	path := filepath.Join(dir, mt.FileName)

	original, err := os.ReadFile(path)
	require.NoError(t, err)

	start, end, err := mt.Location.Offsets(original)
	require.NoError(t, err)

	mutated := string(original[:start]) + mt.Replacement + string(original[end:])
	require.NoError(t, os.WriteFile(path, []byte(mutated), 0o600))

	return func() {
		require.NoError(t, os.WriteFile(path, original, 0o600))
	}
}
