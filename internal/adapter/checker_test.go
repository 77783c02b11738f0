package adapter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

func TestNewCheckerFactory(t *testing.T) {
	factory, err := NewCheckerFactory(GoBuildCheckerName)
	require.NoError(t, err)
	assert.IsType(t, &GoBuildChecker{}, factory("dir"))

	_, err = NewCheckerFactory("tsc")
	require.ErrorContains(t, err, `unknown checker "tsc"`)
}

func TestGoBuildChecker_CalcExample(t *testing.T) {
	dir := calcSandbox(t)
	ctx := context.Background()

	mutants, err := NewFileMutantReader().Read(ctx, m.Path(filepath.Join(dir, "mutants.json")))
	require.NoError(t, err)

	checker := NewGoBuildChecker(m.Path(dir))
	require.NoError(t, checker.Init(ctx))

	t.Run("valid mutant passes", func(t *testing.T) {
		restore := activateInDir(t, dir, mutants[0])
		defer restore()

		results, err := checker.Check(ctx, mutants[:1])
		require.NoError(t, err)
		assert.Equal(t, m.CheckPassed, results["add-plus"].Status)
	})

	t.Run("invalid mutant is a compile error", func(t *testing.T) {
		broken := mutants[0]
		broken.Replacement = "&&"

		restore := activateInDir(t, dir, broken)
		defer restore()

		results, err := checker.Check(ctx, []m.Mutant{broken})
		require.NoError(t, err)
		assert.Equal(t, m.CheckCompileError, results["add-plus"].Status)
		assert.Contains(t, results["add-plus"].Reason, "calc.go")
	})

	require.NoError(t, checker.Dispose(ctx))
}
