package adapter

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

const spinPIDFileEnv = "MUTINY_SPIN_PID_FILE"

const spinTestSource = `package spin

import (
	"os"
	"strconv"
	"testing"
)

func TestSpin(t *testing.T) {
	_ = os.WriteFile(os.Getenv("` + spinPIDFileEnv + `"), []byte(strconv.Itoa(os.Getpid())), 0o600)
	for {
	}
}
`

func TestGoTestRunner_DisposeKillsTestBinary(t *testing.T) {
	if testing.Short() {
		t.Skip("runs go test")
	}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/spin\n\ngo 1.21\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spin_test.go"), []byte(spinTestSource), 0o600))

	pidFile := filepath.Join(t.TempDir(), "pid")
	t.Setenv(spinPIDFileEnv, pidFile)

	ctx := context.Background()
	runner := NewGoTestRunner(m.Path(dir))

	if err := runner.Init(ctx); err != nil {
		t.Skipf("go toolchain not usable: %v", err)
	}

	errs := make(chan error, 1)

	go func() {
		_, err := runner.MutantRun(ctx, m.MutantRunOptions{
			ActiveMutant: m.Mutant{ID: "m1"},
			TestFilter:   []string{"example.com/spin::TestSpin"},
		})
		errs <- err
	}()

	var pid int

	require.Eventually(t, func() bool {
		content, err := os.ReadFile(pidFile)
		if err != nil || len(content) == 0 {
			return false
		}

		pid, err = strconv.Atoi(string(content))

		return err == nil
	}, 2*time.Minute, 50*time.Millisecond, "test binary did not start")

	require.NoError(t, runner.Dispose(ctx))

	select {
	case err := <-errs:
		require.ErrorContains(t, err, "interrupted")
	case <-time.After(30 * time.Second):
		t.Fatal("MutantRun did not return after Dispose")
	}

	assert.Eventually(t, func() bool { return !processRunning(pid) }, 5*time.Second, 50*time.Millisecond,
		"test binary %d still running", pid)
}

// processRunning reports whether pid exists and is not a zombie.
func processRunning(pid int) bool {
	stat, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err != nil {
		return false
	}

	// The state follows the parenthesised command name.
	end := strings.LastIndex(string(stat), ") ")
	if end < 0 {
		return false
	}

	rest := string(stat)[end+2:]

	return !strings.HasPrefix(rest, "Z") && !strings.HasPrefix(rest, "X")
}
