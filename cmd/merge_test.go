package cmd

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"mutiny.dev/pkg/mutiny/internal/domain"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

func TestMergeCmd_WritesIncrementalFileByDefault(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRootCmd(t, newMergeCmd())

	mockWorkflow.EXPECT().Merge(mock.Anything, domain.MergeArgs{
		Reports: []m.Path{"shard-0.json", "shard-1.json"},
		Output:  defaultIncrementalFile,
	}).Return(nil).Once()

	cmd.SetArgs([]string{"merge", "shard-0.json", "shard-1.json"})
	require.NoError(t, cmd.Execute())
}

func TestMergeCmd_OutputFlag(t *testing.T) {
	cmd, mockWorkflow, _ := newTestRootCmd(t, newMergeCmd())

	mockWorkflow.EXPECT().Merge(mock.Anything, domain.MergeArgs{
		Reports: []m.Path{"shard-0.json"},
		Output:  "merged.json",
	}).Return(nil).Once()

	cmd.SetArgs([]string{"merge", "-o", "merged.json", "shard-0.json"})
	require.NoError(t, cmd.Execute())
}

func TestMergeCmd_RequiresReports(t *testing.T) {
	cmd, _, _ := newTestRootCmd(t, newMergeCmd())

	cmd.SetArgs([]string{"merge"})
	require.Error(t, cmd.Execute())
}
