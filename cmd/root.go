// Package cmd provides the root command and CLI setup for mutiny.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"mutiny.dev/pkg/mutiny/internal/adapter"
	"mutiny.dev/pkg/mutiny/internal/controller"
	"mutiny.dev/pkg/mutiny/internal/domain"
)

// workflow is built from the loaded configuration on first use unless already set.
var workflow domain.Workflow

const rootLongDescription = `Mutiny is a mutation testing orchestrator. It reads mutants produced by an
external generator, runs the initial test run with coverage, decides which
tests to run for every mutant and executes them concurrently in isolated
sandbox copies of the project.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func init() {
	// Flag defaults read viper, so this runs after the config init.
	configureRootFlags(rootCmd)
}

func newRootCmd() *cobra.Command {
	cmd := baseRootCmd()
	configureRootFlags(cmd)

	return cmd
}

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "mutiny",
		Short:        "Mutation testing orchestrator",
		Long:         rootLongDescription,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger(viper.GetString(logFilenameKey), viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringP(mutantsFlagName, "m", viper.GetString(mutantsKey), "file with the mutants to test (JSON or YAML)")
	bindFlagToConfig(flags.Lookup(mutantsFlagName), mutantsKey)

	flags.IntP(concurrencyFlagName, "c", viper.GetInt(concurrencyKey), "number of concurrent test runner workers")
	bindFlagToConfig(flags.Lookup(concurrencyFlagName), concurrencyKey)

	flags.Bool(incrementalFlagName, viper.GetBool(incrementalKey), "reuse results of the previous run for unchanged mutants")
	bindFlagToConfig(flags.Lookup(incrementalFlagName), incrementalKey)

	flags.String(incrementalFileFlagName, viper.GetString(incrementalFileKey), "report written after every run and read by incremental runs")
	bindFlagToConfig(flags.Lookup(incrementalFileFlagName), incrementalFileKey)

	flags.Bool(forceFlagName, viper.GetBool(forceKey), "re-test every mutant even in incremental mode")
	bindFlagToConfig(flags.Lookup(forceFlagName), forceKey)

	flags.Bool(inPlaceFlagName, viper.GetBool(inPlaceKey), "mutate the project itself instead of sandbox copies")
	bindFlagToConfig(flags.Lookup(inPlaceFlagName), inPlaceKey)

	flags.Int(timeoutMSFlagName, viper.GetInt(timeoutMSKey), "constant part of the mutant timeout in milliseconds")
	bindFlagToConfig(flags.Lookup(timeoutMSFlagName), timeoutMSKey)

	flags.Float64(timeoutFactorFlagName, viper.GetFloat64(timeoutFactorKey), "factor applied to the measured test time for the mutant timeout")
	bindFlagToConfig(flags.Lookup(timeoutFactorFlagName), timeoutFactorKey)

	flags.Duration(dryRunTimeoutFlagName, viper.GetDuration(dryRunTimeoutKey), "timeout of the initial test run")
	bindFlagToConfig(flags.Lookup(dryRunTimeoutFlagName), dryRunTimeoutKey)

	flags.String(coverageAnalysisFlagName, viper.GetString(coverageAnalysisKey), "coverage collected by the initial test run: off, all or perTest")
	bindFlagToConfig(flags.Lookup(coverageAnalysisFlagName), coverageAnalysisKey)

	flags.Bool(ignoreStaticFlagName, viper.GetBool(ignoreStaticKey), "skip mutants in static code")
	bindFlagToConfig(flags.Lookup(ignoreStaticFlagName), ignoreStaticKey)

	flags.Bool(disableBailFlagName, viper.GetBool(disableBailKey), "keep running tests after the first failure")
	bindFlagToConfig(flags.Lookup(disableBailFlagName), disableBailKey)

	flags.Int(maxRunnerReuseFlagName, viper.GetInt(maxTestRunnerReuseKey), "restart a test runner after this many runs (0 disables)")
	bindFlagToConfig(flags.Lookup(maxRunnerReuseFlagName), maxTestRunnerReuseKey)

	flags.String(runnerFlagName, viper.GetString(runnerKey), "test runner: go or command")
	bindFlagToConfig(flags.Lookup(runnerFlagName), runnerKey)

	flags.StringSlice(checkersFlagName, viper.GetStringSlice(checkersKey), "checkers run before testing a mutant (e.g. go-build)")
	bindFlagToConfig(flags.Lookup(checkersFlagName), checkersKey)

	flags.Bool(allowEmptyFlagName, viper.GetBool(allowEmptyKey), "allow a project without tests")
	bindFlagToConfig(flags.Lookup(allowEmptyFlagName), allowEmptyKey)

	flags.String(metricsFileFlagName, viper.GetString(metricsFileKey), "write run metrics to this Prometheus textfile")
	bindFlagToConfig(flags.Lookup(metricsFileFlagName), metricsFileKey)

	flags.BoolP(verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(flags.Lookup(verboseFlagName), logVerboseKey)

	flags.String(logFileFlagName, viper.GetString(logFilenameKey), "log file path")
	bindFlagToConfig(flags.Lookup(logFileFlagName), logFilenameKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// currentWorkflow returns the configured workflow, building it on first use.
func currentWorkflow(cmd *cobra.Command) (domain.Workflow, error) {
	if workflow != nil {
		return workflow, nil
	}

	wf, err := newWorkflow(cmd)
	if err != nil {
		return nil, err
	}

	workflow = wf

	return workflow, nil
}

func newWorkflow(cmd *cobra.Command) (domain.Workflow, error) {
	testRunners, err := testRunnerFactoryFromConfig()
	if err != nil {
		return nil, err
	}

	checkers, err := checkerFactoriesFromConfig()
	if err != nil {
		return nil, err
	}

	reportStore := adapter.NewJSONReportStore()
	orchestrator := domain.NewOrchestrator(domain.OrchestratorDeps{
		FS:          adapter.NewLocalSourceFSAdapter(),
		Mutants:     adapter.NewFileMutantReader(),
		Reports:     reportStore,
		TestRunners: testRunners,
		Checkers:    checkers,
		Metrics:     adapter.NewMetrics(viper.GetString(metricsFileKey)),
	})
	ui := controller.NewUI(cmd, controller.IsTTY(os.Stdout))

	return domain.NewWorkflow(reportStore, ui, orchestrator), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}
