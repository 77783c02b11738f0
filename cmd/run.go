package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"mutiny.dev/pkg/mutiny/internal/domain"
)

const shardFlagName = "shard"

const runLongDescription = `Run mutation testing for the project in the given directory (default: the
current directory). Mutants are read from the mutants file, every mutant is
tested in a sandbox copy of the project and the report is written to the
incremental file.`

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [project-dir]",
		Short: "Run mutation testing",
		Long:  runLongDescription,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runArgs, err := runArgsFromFlags(cmd, args)
			if err != nil {
				return err
			}

			wf, err := currentWorkflow(cmd)
			if err != nil {
				return err
			}

			return wf.Test(cmd.Context(), runArgs)
		},
	}

	configureShardFlag(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureShardFlag(cmd *cobra.Command) {
	cmd.Flags().StringP(shardFlagName, "s", "", "shard index and total shard count in the format INDEX/TOTAL (e.g., 0/3)")
}

func runArgsFromFlags(cmd *cobra.Command, args []string) (domain.RunArgs, error) {
	projectRoot := "."
	if len(args) > 0 {
		projectRoot = args[0]
	}

	shard, err := cmd.Flags().GetString(shardFlagName)
	if err != nil {
		return domain.RunArgs{}, err
	}

	shardIndex, shardCount := parseShardFlag(shard)

	return runArgsFromConfig(projectRoot, shardIndex, shardCount)
}

func parseShardFlag(shard string) (int, int) {
	if shard == "" {
		return 0, 1
	}

	var index, total int

	_, err := fmt.Sscanf(shard, "%d/%d", &index, &total)
	if err != nil || total <= 0 || index < 0 || index >= total {
		return 0, 1
	}

	return index, total
}
