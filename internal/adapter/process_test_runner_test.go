package adapter

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

const helperWorkerEnv = "MUTINY_HELPER_WORKER"

// TestHelperWorkerProcess is not a real test: it is the worker process
// started by the CommandTestRunner tests.
func TestHelperWorkerProcess(t *testing.T) {
	mode := os.Getenv(helperWorkerEnv)
	if mode == "" {
		return
	}

	runHelperWorker(mode)
	os.Exit(0)
}

func runHelperWorker(mode string) {
	scanner := bufio.NewScanner(os.Stdin)
	encoder := json.NewEncoder(os.Stdout)

	reply := func(id uint64, payload any) {
		data, _ := json.Marshal(payload)
		_ = encoder.Encode(Response{ID: id, Kind: KindResult, Payload: data})
	}

	fmt.Println("worker starting")

	for scanner.Scan() {
		var request Request
		if err := json.Unmarshal(scanner.Bytes(), &request); err != nil {
			continue
		}

		switch request.Kind {
		case KindInit:
			reply(request.ID, WireInitResult{Capabilities: m.Capabilities{ReloadEnvironment: mode == "reload", CountsHits: mode == "reload"}})
		case KindDryRun:
			reply(request.ID, WireDryRunResult{
				Status: m.DryRunComplete,
				Tests:  []WireTestResult{{ID: "t1", Name: "t1", Status: m.TestPassed, TimeSpentMS: 12}},
				Coverage: &m.CoverageData{
					Static:  m.MutantCoverage{"m1": 1},
					PerTest: map[string]m.MutantCoverage{"t1": {"m2": 1}},
				},
			})
		case KindMutantRun:
			var options WireMutantRunOptions
			_ = json.Unmarshal(request.Payload, &options)

			switch mode {
			case "crash":
				os.Exit(3)
			case "oom":
				fmt.Fprintln(os.Stderr, "fatal error: runtime: out of memory")
				os.Exit(2)
			case "hang":
				time.Sleep(time.Minute)
			case "error":
				_ = encoder.Encode(Response{ID: request.ID, Kind: KindError, Error: "mutant run exploded"})
			default:
				reply(request.ID, WireMutantRunResult{
					Status:    m.RunKilled,
					KilledBy:  options.TestFilter,
					NrOfTests: len(options.TestFilter),
				})
			}
		case KindDispose:
			reply(request.ID, nil)
			return
		}
	}
}

func newHelperRunner(t *testing.T, mode string) *CommandTestRunner {
	t.Helper()
	t.Setenv(helperWorkerEnv, mode)

	runner := NewCommandTestRunner(m.Path(t.TempDir()), []string{os.Args[0], "-test.run=^TestHelperWorkerProcess$"})
	require.NoError(t, runner.Init(context.Background()))

	t.Cleanup(func() { _ = runner.Dispose(context.Background()) })

	return runner
}

func TestCommandTestRunner_Protocol(t *testing.T) {
	runner := newHelperRunner(t, "reload")
	ctx := context.Background()

	assert.True(t, runner.Capabilities().ReloadEnvironment)
	assert.True(t, runner.Capabilities().CountsHits)

	dryRun, err := runner.DryRun(ctx, m.DryRunOptions{CoverageAnalysis: m.CoveragePerTest})
	require.NoError(t, err)
	assert.Equal(t, m.DryRunComplete, dryRun.Status)
	require.Len(t, dryRun.Tests, 1)
	assert.Equal(t, 12*time.Millisecond, dryRun.Tests[0].TimeSpent)
	assert.Equal(t, 1, dryRun.Coverage.PerTest["t1"]["m2"])

	for i := range 3 {
		filter := []string{fmt.Sprintf("t%d", i)}

		result, err := runner.MutantRun(ctx, m.MutantRunOptions{ActiveMutant: m.Mutant{ID: "m2"}, TestFilter: filter})
		require.NoError(t, err)
		assert.Equal(t, m.RunKilled, result.Status)
		assert.Equal(t, filter, result.KilledBy)
	}
}

func TestCommandTestRunner_WorkerError(t *testing.T) {
	runner := newHelperRunner(t, "error")

	_, err := runner.MutantRun(context.Background(), m.MutantRunOptions{ActiveMutant: m.Mutant{ID: "m1"}})
	require.ErrorContains(t, err, "mutant run exploded")
}

func TestCommandTestRunner_Crash(t *testing.T) {
	runner := newHelperRunner(t, "crash")

	_, err := runner.MutantRun(context.Background(), m.MutantRunOptions{ActiveMutant: m.Mutant{ID: "m1"}})
	require.ErrorIs(t, err, ErrProcessCrashed)
}

func TestCommandTestRunner_OutOfMemory(t *testing.T) {
	runner := newHelperRunner(t, "oom")

	_, err := runner.MutantRun(context.Background(), m.MutantRunOptions{ActiveMutant: m.Mutant{ID: "m1"}})
	require.ErrorIs(t, err, ErrOutOfMemory)
}

func TestCommandTestRunner_DisposeKillsBusyWorker(t *testing.T) {
	runner := newHelperRunner(t, "hang")

	errs := make(chan error, 1)

	go func() {
		_, err := runner.MutantRun(context.Background(), m.MutantRunOptions{ActiveMutant: m.Mutant{ID: "m1"}})
		errs <- err
	}()

	require.Eventually(t, func() bool {
		runner.mu.Lock()
		defer runner.mu.Unlock()

		return len(runner.pending) > 0
	}, 5*time.Second, 10*time.Millisecond)

	start := time.Now()
	require.NoError(t, runner.Dispose(context.Background()))

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrProcessCrashed)
	case <-time.After(10 * time.Second):
		t.Fatal("MutantRun did not return after Dispose")
	}

	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCommandTestRunner_ContextCancelled(t *testing.T) {
	runner := newHelperRunner(t, "hang")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := runner.MutantRun(ctx, m.MutantRunOptions{ActiveMutant: m.Mutant{ID: "m1"}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCommandTestRunner_DisposeAfterAbandonedRun(t *testing.T) {
	runner := newHelperRunner(t, "hang")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := runner.MutantRun(ctx, m.MutantRunOptions{ActiveMutant: m.Mutant{ID: "m1"}})
	require.ErrorIs(t, err, context.DeadlineExceeded)

	start := time.Now()
	require.NoError(t, runner.Dispose(context.Background()))
	assert.Less(t, time.Since(start), gracefulDispose, "hung worker should be killed without a graceful dispose")

	select {
	case <-runner.exited:
	default:
		t.Fatal("worker still running after Dispose")
	}
}

func TestCommandTestRunner_DisposeIdleWorker(t *testing.T) {
	runner := newHelperRunner(t, "idle")

	_, err := runner.MutantRun(context.Background(), m.MutantRunOptions{ActiveMutant: m.Mutant{ID: "m1"}})
	require.NoError(t, err)

	runner.mu.Lock()
	assert.Zero(t, runner.unanswered)
	runner.mu.Unlock()

	require.NoError(t, runner.Dispose(context.Background()))
	assert.ErrorContains(t, runner.exitError(), "exit status 0", "idle worker exits on its own")
}

func TestCommandTestRunner_NoCommand(t *testing.T) {
	runner := NewCommandTestRunner(m.Path(t.TempDir()), nil)
	require.Error(t, runner.Init(context.Background()))
	require.NoError(t, runner.Dispose(context.Background()))
}

func TestTailBuffer(t *testing.T) {
	buffer := &tailBuffer{limit: 4}

	_, _ = buffer.Write([]byte("abc"))
	_, _ = buffer.Write([]byte("def"))

	assert.Equal(t, "cdef", buffer.String())
}
