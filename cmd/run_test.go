package cmd

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"mutiny.dev/pkg/mutiny/internal/domain"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

func TestRunCmd_Defaults(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRootCmd(t, newRunCmd())

	wd, err := filepath.Abs(".")
	require.NoError(t, err)

	mockWorkflow.EXPECT().Test(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, args domain.RunArgs) error {
			assert.Equal(t, m.Path(wd), args.ProjectRoot)
			assert.Equal(t, m.Path(defaultMutantsFile), args.MutantsFile)
			assert.Equal(t, m.Path(defaultIncrementalFile), args.IncrementalFile)
			assert.Equal(t, 0, args.ShardIndex)
			assert.Equal(t, 1, args.ShardCount)
			assert.GreaterOrEqual(t, args.Concurrency, 1)
			assert.False(t, args.Incremental)

			assert.Equal(t, 5*time.Second, args.Planner.Timeout)
			assert.InDelta(t, defaultTimeoutFactor, args.Planner.TimeoutFactor, 1e-9)
			assert.Equal(t, m.CoveragePerTest, args.Planner.CoverageAnalysis)
			assert.Equal(t, defaultDryRunTimeout, args.DryRun.Timeout)
			assert.Equal(t, m.CoveragePerTest, args.DryRun.CoverageAnalysis)

			assert.Equal(t, args.ProjectRoot, args.Sandbox.ProjectRoot)
			assert.Equal(t, domain.DefaultTempDirName, args.Sandbox.TempDirName)
			assert.Equal(t, domain.CleanTempDirTrue, args.Sandbox.CleanTempDir)
			assert.Equal(t, []string{"node_modules", "vendor"}, args.Sandbox.SymlinkDirs)

			return nil
		}).Once()

	cmd.SetArgs([]string{"run"})
	require.NoError(t, cmd.Execute())
}

func TestRunCmd_FlagsOverrideConfig(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRootCmd(t, newRunCmd())

	project := t.TempDir()

	mockWorkflow.EXPECT().Test(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, args domain.RunArgs) error {
			assert.Equal(t, m.Path(project), args.ProjectRoot)
			assert.Equal(t, m.Path("gen/mutants.yaml"), args.MutantsFile)
			assert.Equal(t, 2, args.Concurrency)
			assert.Equal(t, 1, args.ShardIndex)
			assert.Equal(t, 3, args.ShardCount)
			assert.True(t, args.Incremental)
			assert.True(t, args.Force)
			assert.True(t, args.Sandbox.InPlace)
			assert.True(t, args.Planner.DisableBail)
			assert.True(t, args.DryRun.DisableBail)
			assert.Equal(t, time.Second, args.Planner.Timeout)
			assert.Equal(t, m.CoverageAll, args.Planner.CoverageAnalysis)
			assert.Equal(t, 10, args.MaxTestRunnerReuse)

			return nil
		}).Once()

	cmd.SetArgs([]string{
		"run", project,
		"-m", "gen/mutants.yaml",
		"--concurrency", "2",
		"--shard", "1/3",
		"--incremental", "--force", "--in-place", "--disable-bail",
		"--timeout-ms", "1000",
		"--coverage-analysis", "all",
		"--max-test-runner-reuse", "10",
	})
	require.NoError(t, cmd.Execute())
}

func TestRunCmd_ConfigFileValues(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRootCmd(t, newRunCmd())

	setConfig(t, symlinkDirsKey, []string{"third_party"})
	setConfig(t, cleanTempDirKey, "always")
	setConfig(t, dryRunTimeoutKey, "90s")

	mockWorkflow.EXPECT().Test(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, args domain.RunArgs) error {
			assert.Equal(t, []string{"third_party"}, args.Sandbox.SymlinkDirs)
			assert.Equal(t, domain.CleanTempDirAlways, args.Sandbox.CleanTempDir)
			assert.Equal(t, 90*time.Second, args.DryRun.Timeout)

			return nil
		}).Once()

	cmd.SetArgs([]string{"run"})
	require.NoError(t, cmd.Execute())
}

func TestRunCmd_InvalidCoverageAnalysis(t *testing.T) {
	cmd, _, _ := newTestRootCmd(t, newRunCmd())

	cmd.SetArgs([]string{"run", "--coverage-analysis", "sometimes"})
	err := cmd.Execute()
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestRunCmd_WorkflowError(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRootCmd(t, newRunCmd())

	boom := errors.New("initial test run failed")
	mockWorkflow.EXPECT().Test(mock.Anything, mock.Anything).Return(boom).Once()

	cmd.SetArgs([]string{"run"})
	require.ErrorIs(t, cmd.Execute(), boom)
}

func TestRunCmd_TooManyArgs(t *testing.T) {
	cmd, _, _ := newTestRootCmd(t, newRunCmd())

	cmd.SetArgs([]string{"run", "a", "b"})
	require.Error(t, cmd.Execute())
}

func TestPlanCmd_UsesRunConfiguration(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRootCmd(t, newPlanCmd())

	mockWorkflow.EXPECT().Plan(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, args domain.RunArgs) error {
			assert.Equal(t, 0, args.ShardIndex)
			assert.Equal(t, 2, args.ShardCount)
			assert.True(t, args.Planner.IgnoreStatic)

			return nil
		}).Once()

	cmd.SetArgs([]string{"plan", "--shard", "0/2", "--ignore-static"})
	require.NoError(t, cmd.Execute())
}
