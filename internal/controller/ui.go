// Package controller provides output adapters for displaying mutation testing results.
package controller

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeTest StartMode = iota
	ModePlan
	ModeView
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode StartMode
}

// WithTestMode sets the UI to test execution mode.
func WithTestMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeTest
	}
}

// WithPlanMode sets the UI to plan mode.
func WithPlanMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModePlan
	}
}

// WithViewMode sets the UI to report viewing mode.
func WithViewMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeView
	}
}

func newStartConfig(options []StartOption) StartConfig {
	var config StartConfig
	for _, option := range options {
		option(&config)
	}

	return config
}

// RunInfo describes a mutation run before it starts.
type RunInfo struct {
	MutantsFile string
	Concurrency int
	ShardIndex  int
	ShardCount  int
}

// UI displays the progress and results of mutation runs.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for UI to finish (user closes it)
	DisplayRunInfo(ctx context.Context, info RunInfo)
	DisplayDryRun(ctx context.Context, result m.DryRunResult)
	DisplayUpcomingTests(ctx context.Context, total, runs int)
	// DisplayMutantResult is called concurrently from several workers.
	DisplayMutantResult(ctx context.Context, mt m.Mutant, original []byte)
	DisplayPlan(ctx context.Context, plans []m.MutantTestPlan) error
	DisplayReport(ctx context.Context, report *m.Report) error
	// DisplayMutationScore shows score, a fraction between 0 and 1.
	DisplayMutationScore(ctx context.Context, score float64)
}

// NewUI returns the interactive TUI on a terminal and SimpleUI otherwise.
func NewUI(cmd *cobra.Command, isTTY bool) UI {
	if isTTY {
		return NewTUI(cmd.OutOrStdout())
	}

	return NewSimpleUI(cmd)
}

// IsTTY reports whether f is a terminal.
func IsTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
