package cmd

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mutiny.dev/pkg/mutiny/internal/adapter"
	"mutiny.dev/pkg/mutiny/internal/domain"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

func TestConfigConstants(t *testing.T) {
	assert.Equal(t, "mutiny", configBaseName)
	assert.Equal(t, "mutiny.yaml", configFileName)
	assert.Equal(t, ".", configFolderPath)
	assert.Equal(t, "MUTINY", envPrefix)
	assert.Equal(t, "reports/mutiny-incremental.json", defaultIncrementalFile)
	assert.Equal(t, ".mutiny.log", defaultLogFilename)
}

func TestConfigVersionConstants(t *testing.T) {
	assert.Equal(t, "version", configVersionKey)
	assert.Equal(t, 1, currentConfigVersion)
}

func TestDefaultConcurrency(t *testing.T) {
	assert.GreaterOrEqual(t, defaultConcurrency(), 1)
}

func TestParseSlogLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelWarn},
		{"debug", slog.LevelDebug},
		{" INFO ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"-4", slog.LevelDebug},
		{"loud", slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, parseSlogLevel(tt.value, slog.LevelWarn))
		})
	}
}

func TestConfigureLogger(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	logPath := filepath.Join(t.TempDir(), "mutiny.log")

	configureLogger(logPath, true)
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	setConfig(t, logLevelKey, "error")
	configureLogger(logPath, false)
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelError))
}

func TestParseCoverageAnalysis(t *testing.T) {
	for _, value := range []string{"off", "all", "perTest"} {
		got, err := parseCoverageAnalysis(value)
		require.NoError(t, err)
		assert.Equal(t, m.CoverageAnalysis(value), got)
	}

	got, err := parseCoverageAnalysis("")
	require.NoError(t, err)
	assert.Equal(t, m.CoveragePerTest, got)

	_, err = parseCoverageAnalysis("pertest")
	require.ErrorIs(t, err, domain.ErrConfig)
}

func TestParseCleanTempDir(t *testing.T) {
	tests := []struct {
		value   string
		want    string
		wantErr bool
	}{
		{"true", domain.CleanTempDirTrue, false},
		{"False", domain.CleanTempDirFalse, false},
		{"always", domain.CleanTempDirAlways, false},
		{"", domain.CleanTempDirTrue, false},
		{"sometimes", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseCleanTempDir(tt.value)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrConfig)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTestRunnerFactoryFromConfig(t *testing.T) {
	t.Run("go", func(t *testing.T) {
		setConfig(t, runnerKey, runnerGo)

		factory, err := testRunnerFactoryFromConfig()
		require.NoError(t, err)
		assert.IsType(t, &adapter.GoTestRunner{}, factory("/project"))
	})

	t.Run("command", func(t *testing.T) {
		setConfig(t, runnerKey, runnerCommand)
		setConfig(t, runnerCommandKey, []string{"node", "worker.js"})

		factory, err := testRunnerFactoryFromConfig()
		require.NoError(t, err)
		assert.IsType(t, &adapter.CommandTestRunner{}, factory("/project"))
	})

	t.Run("command without command line", func(t *testing.T) {
		setConfig(t, runnerKey, runnerCommand)

		_, err := testRunnerFactoryFromConfig()
		require.ErrorIs(t, err, domain.ErrConfig)
	})

	t.Run("unknown", func(t *testing.T) {
		setConfig(t, runnerKey, "karma")

		_, err := testRunnerFactoryFromConfig()
		require.ErrorIs(t, err, domain.ErrConfig)
		assert.ErrorContains(t, err, "karma")
	})
}

func TestCheckerFactoriesFromConfig(t *testing.T) {
	factories, err := checkerFactoriesFromConfig()
	require.NoError(t, err)
	assert.Empty(t, factories)

	setConfig(t, checkersKey, []string{adapter.GoBuildCheckerName})

	factories, err = checkerFactoriesFromConfig()
	require.NoError(t, err)
	require.Len(t, factories, 1)
	assert.IsType(t, &adapter.GoBuildChecker{}, factories[0]("/project"))

	setConfig(t, checkersKey, []string{"typescript"})

	_, err = checkerFactoriesFromConfig()
	require.ErrorIs(t, err, domain.ErrConfig)
}
