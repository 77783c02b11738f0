package cmd

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"mutiny.dev/pkg/mutiny/internal/domain"
)

func TestViewCmd_UsesIncrementalFileByDefault(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRootCmd(t, newViewCmd())

	mockWorkflow.EXPECT().View(mock.Anything, domain.ViewArgs{Report: defaultIncrementalFile}).Return(nil).Once()

	cmd.SetArgs([]string{"view"})
	require.NoError(t, cmd.Execute())
}

func TestViewCmd_IncrementalFileFlag(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRootCmd(t, newViewCmd())

	mockWorkflow.EXPECT().View(mock.Anything, domain.ViewArgs{Report: "out/report.json"}).Return(nil).Once()

	cmd.SetArgs([]string{"--incremental-file", "out/report.json", "view"})
	require.NoError(t, cmd.Execute())
}

func TestViewCmd_PositionalReport(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRootCmd(t, newViewCmd())

	mockWorkflow.EXPECT().View(mock.Anything, domain.ViewArgs{Report: "shard-1.json"}).Return(nil).Once()

	cmd.SetArgs([]string{"view", "shard-1.json"})
	require.NoError(t, cmd.Execute())
}

func TestViewCmd_MissingReport(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRootCmd(t, newViewCmd())

	mockWorkflow.EXPECT().View(mock.Anything, domain.ViewArgs{Report: "missing.json"}).Return(domain.ErrNoReport).Once()

	cmd.SetArgs([]string{"view", "missing.json"})
	require.ErrorIs(t, cmd.Execute(), domain.ErrNoReport)
}

func TestViewCmd_RejectsExtraArgs(t *testing.T) {
	cmd, _, _ := newTestRootCmd(t, newViewCmd())

	cmd.SetArgs([]string{"view", "a.json", "b.json"})
	require.Error(t, cmd.Execute())
}
