package cmd

import "github.com/spf13/cobra"

const planLongDescription = `Run the initial test run and print, for every mutant, whether it would be
tested and with which tests and timeout. No mutant is executed.`

// planCmd represents the plan command.
var planCmd = newPlanCmd()

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [project-dir]",
		Short: "Show the mutant test plan without running it",
		Long:  planLongDescription,
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

			return wf.Plan(cmd.Context(), runArgs)
		},
	}

	configureShardFlag(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(planCmd)
}
