package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"mutiny.dev/pkg/mutiny/internal/domain"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view [report]",
		Short: "View a previously written mutation report",
		Long:  "View a mutation report. Without an argument the incremental file is shown.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reportPath := viper.GetString(incrementalFileKey)
			if len(args) > 0 {
				reportPath = args[0]
			}

			wf, err := currentWorkflow(cmd)
			if err != nil {
				return err
			}

			return wf.View(cmd.Context(), domain.ViewArgs{Report: m.Path(reportPath)})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
