package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
	"mutiny.dev/pkg/mutiny/internal/adapter"
	"mutiny.dev/pkg/mutiny/internal/domain"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "mutiny"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	envPrefix = "MUTINY"

	concurrencyKey        = "concurrency"
	timeoutMSKey          = "timeout_ms"
	timeoutFactorKey      = "timeout_factor"
	dryRunTimeoutKey      = "dry_run_timeout"
	maxTestRunnerReuseKey = "max_test_runner_reuse"
	disableBailKey        = "disable_bail"
	ignoreStaticKey       = "ignore_static"
	coverageAnalysisKey   = "coverage_analysis"
	incrementalKey        = "incremental"
	incrementalFileKey    = "incremental_file"
	forceKey              = "force"
	inPlaceKey            = "in_place"
	symlinkDirsKey        = "symlink_dirs"
	tempDirNameKey        = "temp_dir_name"
	cleanTempDirKey       = "clean_temp_dir"
	runnerKey             = "runner"
	runnerCommandKey      = "runner_command"
	checkersKey           = "checkers"
	allowEmptyKey         = "allow_empty"
	mutantsKey            = "mutants"
	metricsFileKey        = "metrics_file"

	concurrencyFlagName      = "concurrency"
	timeoutMSFlagName        = "timeout-ms"
	timeoutFactorFlagName    = "timeout-factor"
	dryRunTimeoutFlagName    = "dry-run-timeout"
	maxRunnerReuseFlagName   = "max-test-runner-reuse"
	disableBailFlagName      = "disable-bail"
	ignoreStaticFlagName     = "ignore-static"
	coverageAnalysisFlagName = "coverage-analysis"
	incrementalFlagName      = "incremental"
	incrementalFileFlagName  = "incremental-file"
	forceFlagName            = "force"
	inPlaceFlagName          = "in-place"
	runnerFlagName           = "runner"
	checkersFlagName         = "checkers"
	allowEmptyFlagName       = "allow-empty"
	mutantsFlagName          = "mutants"
	metricsFileFlagName      = "metrics-file"
	verboseFlagName          = "verbose"
	logFileFlagName          = "log-file"

	runnerGo      = "go"
	runnerCommand = "command"

	defaultTimeoutMS          = 5000
	defaultTimeoutFactor      = 1.5
	defaultDryRunTimeout      = 5 * time.Minute
	defaultMaxTestRunnerReuse = 0
	defaultIncrementalFile    = "reports/mutiny-incremental.json"
	defaultMutantsFile        = "mutants.json"
	defaultRunner             = runnerGo

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".mutiny.log"
	defaultLogLevel      = "info"
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

func setDefaults() {
	viper.SetDefault(configVersionKey, currentConfigVersion)

	viper.SetDefault(concurrencyKey, defaultConcurrency())
	viper.SetDefault(timeoutMSKey, defaultTimeoutMS)
	viper.SetDefault(timeoutFactorKey, defaultTimeoutFactor)
	viper.SetDefault(dryRunTimeoutKey, defaultDryRunTimeout)
	viper.SetDefault(maxTestRunnerReuseKey, defaultMaxTestRunnerReuse)
	viper.SetDefault(disableBailKey, false)
	viper.SetDefault(ignoreStaticKey, false)
	viper.SetDefault(coverageAnalysisKey, string(m.CoveragePerTest))
	viper.SetDefault(incrementalKey, false)
	viper.SetDefault(incrementalFileKey, defaultIncrementalFile)
	viper.SetDefault(forceKey, false)
	viper.SetDefault(inPlaceKey, false)
	viper.SetDefault(symlinkDirsKey, []string{"node_modules", "vendor"})
	viper.SetDefault(tempDirNameKey, domain.DefaultTempDirName)
	viper.SetDefault(cleanTempDirKey, domain.CleanTempDirTrue)
	viper.SetDefault(runnerKey, defaultRunner)
	viper.SetDefault(runnerCommandKey, []string{})
	viper.SetDefault(checkersKey, []string{})
	viper.SetDefault(allowEmptyKey, false)
	viper.SetDefault(mutantsKey, defaultMutantsFile)
	viper.SetDefault(metricsFileKey, "")

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)
}

// defaultConcurrency leaves one CPU for the orchestrating process.
func defaultConcurrency() int {
	return max(runtime.NumCPU()-1, 1)
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at the configured level; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}

// runArgsFromConfig assembles the run arguments from the merged flag/env/file configuration.
func runArgsFromConfig(projectRoot string, shardIndex, shardCount int) (domain.RunArgs, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return domain.RunArgs{}, fmt.Errorf("resolve project root: %w", err)
	}

	coverage, err := parseCoverageAnalysis(viper.GetString(coverageAnalysisKey))
	if err != nil {
		return domain.RunArgs{}, err
	}

	cleanTempDir, err := parseCleanTempDir(viper.GetString(cleanTempDirKey))
	if err != nil {
		return domain.RunArgs{}, err
	}

	timeout := time.Duration(viper.GetInt(timeoutMSKey)) * time.Millisecond
	disableBail := viper.GetBool(disableBailKey)

	return domain.RunArgs{
		ProjectRoot:     m.Path(root),
		MutantsFile:     m.Path(viper.GetString(mutantsKey)),
		Concurrency:     viper.GetInt(concurrencyKey),
		ShardIndex:      shardIndex,
		ShardCount:      shardCount,
		Incremental:     viper.GetBool(incrementalKey),
		IncrementalFile: m.Path(viper.GetString(incrementalFileKey)),
		Force:           viper.GetBool(forceKey),
		Sandbox: domain.SandboxOptions{
			ProjectRoot:  m.Path(root),
			TempDirName:  viper.GetString(tempDirNameKey),
			SymlinkDirs:  viper.GetStringSlice(symlinkDirsKey),
			InPlace:      viper.GetBool(inPlaceKey),
			CleanTempDir: cleanTempDir,
		},
		DryRun: domain.DryRunOptions{
			Timeout:          viper.GetDuration(dryRunTimeoutKey),
			CoverageAnalysis: coverage,
			DisableBail:      disableBail,
			AllowEmpty:       viper.GetBool(allowEmptyKey),
		},
		Planner: domain.PlannerOptions{
			Timeout:          timeout,
			TimeoutFactor:    viper.GetFloat64(timeoutFactorKey),
			IgnoreStatic:     viper.GetBool(ignoreStaticKey),
			DisableBail:      disableBail,
			CoverageAnalysis: coverage,
		},
		MaxTestRunnerReuse: viper.GetInt(maxTestRunnerReuseKey),
	}, nil
}

func parseCoverageAnalysis(value string) (m.CoverageAnalysis, error) {
	switch analysis := m.CoverageAnalysis(strings.TrimSpace(value)); analysis {
	case m.CoverageOff, m.CoverageAll, m.CoveragePerTest:
		return analysis, nil
	case "":
		return m.CoveragePerTest, nil
	default:
		return "", fmt.Errorf("%w: unknown coverage analysis %q (want off, all or perTest)", domain.ErrConfig, value)
	}
}

func parseCleanTempDir(value string) (string, error) {
	switch clean := strings.ToLower(strings.TrimSpace(value)); clean {
	case domain.CleanTempDirTrue, domain.CleanTempDirFalse, domain.CleanTempDirAlways:
		return clean, nil
	case "":
		return domain.CleanTempDirTrue, nil
	default:
		return "", fmt.Errorf("%w: unknown clean_temp_dir %q (want true, false or always)", domain.ErrConfig, value)
	}
}

// testRunnerFactoryFromConfig selects the test runner implementation.
func testRunnerFactoryFromConfig() (adapter.TestRunnerFactory, error) {
	switch runner := viper.GetString(runnerKey); runner {
	case runnerGo, "":
		return func(dir m.Path) adapter.TestRunner {
			return adapter.NewGoTestRunner(dir)
		}, nil
	case runnerCommand:
		command := viper.GetStringSlice(runnerCommandKey)
		if len(command) == 0 {
			return nil, fmt.Errorf("%w: runner %q needs %s", domain.ErrConfig, runnerCommand, runnerCommandKey)
		}

		return func(dir m.Path) adapter.TestRunner {
			return adapter.NewCommandTestRunner(dir, command)
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown runner %q", domain.ErrConfig, runner)
	}
}

func checkerFactoriesFromConfig() ([]adapter.CheckerFactory, error) {
	names := viper.GetStringSlice(checkersKey)
	factories := make([]adapter.CheckerFactory, 0, len(names))

	for _, name := range names {
		factory, err := adapter.NewCheckerFactory(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrConfig, err)
		}

		factories = append(factories, factory)
	}

	return factories, nil
}
