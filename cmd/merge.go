package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"mutiny.dev/pkg/mutiny/internal/domain"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

const mergeOutputFlagName = "output"

// mergeCmd represents the merge command.
var mergeCmd = newMergeCmd()

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <report>...",
		Short: "Merge sharded reports into a single report",
		Long: `Merge the reports written by sharded runs into one report. When a mutant
appears in more than one report the first occurrence wins.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := cmd.Flags().GetString(mergeOutputFlagName)
			if err != nil {
				return err
			}

			if output == "" {
				output = viper.GetString(incrementalFileKey)
			}

			reports := make([]m.Path, 0, len(args))
			for _, arg := range args {
				reports = append(reports, m.Path(arg))
			}

			wf, err := currentWorkflow(cmd)
			if err != nil {
				return err
			}

			return wf.Merge(cmd.Context(), domain.MergeArgs{Reports: reports, Output: m.Path(output)})
		},
	}

	cmd.Flags().StringP(mergeOutputFlagName, "o", "", "merged report path (default: the incremental file)")

	return cmd
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
