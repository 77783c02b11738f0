package adapter

import (
	"context"
	"errors"

	m "mutiny.dev/pkg/mutiny/internal/model"
)

var (
	// ErrProcessCrashed is returned when a test runner process exits unexpectedly.
	ErrProcessCrashed = errors.New("test runner process crashed")
	// ErrOutOfMemory is returned when a test runner process ran out of memory.
	ErrOutOfMemory = errors.New("test runner process ran out of memory")
)

// ActiveMutantEnv is set on every test process to the id of the active mutant.
const ActiveMutantEnv = "MUTINY_ACTIVE_MUTANT"

// TestRunner runs a project's test suite inside one sandbox. Implementations
// are used by a single worker at a time and never run two calls concurrently,
// except Dispose, which may be called while a run is in flight to terminate it.
type TestRunner interface {
	Init(ctx context.Context) error
	DryRun(ctx context.Context, options m.DryRunOptions) (m.DryRunResult, error)
	MutantRun(ctx context.Context, options m.MutantRunOptions) (m.MutantRunResult, error)
	Dispose(ctx context.Context) error
	Capabilities() m.Capabilities
}

// TestRunnerFactory creates a raw test runner working in dir.
type TestRunnerFactory func(dir m.Path) TestRunner
