package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path"
	"strings"

	m "mutiny.dev/pkg/mutiny/internal/model"
)

// GoBuildCheckerName is the configuration name of GoBuildChecker.
const GoBuildCheckerName = "go-build"

// Checker validates mutants before any test runs, typically by compiling them.
// The mutants handed to Check must already be active in the checker's sandbox.
type Checker interface {
	Init(ctx context.Context) error
	Check(ctx context.Context, mutants []m.Mutant) (map[string]m.CheckResult, error)
	Dispose(ctx context.Context) error
}

// CheckerFactory creates a checker working in dir.
type CheckerFactory func(dir m.Path) Checker

// NewCheckerFactory returns the factory for the named checker.
func NewCheckerFactory(name string) (CheckerFactory, error) {
	switch name {
	case GoBuildCheckerName:
		return func(dir m.Path) Checker { return NewGoBuildChecker(dir) }, nil
	default:
		return nil, fmt.Errorf("unknown checker %q", name)
	}
}

// GoBuildChecker compiles the package of each mutant with `go build`.
type GoBuildChecker struct {
	dir   m.Path
	goBin string
}

// NewGoBuildChecker creates a checker for the module rooted at dir.
func NewGoBuildChecker(dir m.Path) *GoBuildChecker {
	return &GoBuildChecker{dir: dir, goBin: "go"}
}

// Init implements Checker.
func (c *GoBuildChecker) Init(_ context.Context) error {
	goBin, err := exec.LookPath(c.goBin)
	if err != nil {
		return fmt.Errorf("find go binary: %w", err)
	}

	c.goBin = goBin

	return nil
}

// Check implements Checker. Every mutant's package is built once; a build
// failure marks the mutants of that package as compile errors.
func (c *GoBuildChecker) Check(ctx context.Context, mutants []m.Mutant) (map[string]m.CheckResult, error) {
	results := make(map[string]m.CheckResult, len(mutants))
	built := map[string]m.CheckResult{}

	for _, mt := range mutants {
		pkgDir := "./" + path.Dir(mt.FileName)

		result, ok := built[pkgDir]
		if !ok {
			var err error

			result, err = c.build(ctx, pkgDir)
			if err != nil {
				return nil, err
			}

			built[pkgDir] = result
		}

		results[mt.ID] = result
	}

	return results, nil
}

func (c *GoBuildChecker) build(ctx context.Context, pkgDir string) (m.CheckResult, error) {
	// #nosec G204 - the package directory comes from a mutant file name inside the sandbox
	cmd := exec.CommandContext(ctx, c.goBin, "build", "-o", os.DevNull, pkgDir)
	cmd.Dir = string(c.dir)

	var output bytes.Buffer

	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if ctx.Err() != nil {
		return m.CheckResult{}, ctx.Err()
	}

	var exitErr *exec.ExitError

	switch {
	case err == nil:
		return m.CheckResult{Status: m.CheckPassed}, nil
	case errors.As(err, &exitErr):
		slog.Debug("Mutant failed to compile", "package", pkgDir)
		return m.CheckResult{Status: m.CheckCompileError, Reason: strings.TrimSpace(output.String())}, nil
	default:
		return m.CheckResult{}, fmt.Errorf("run go build: %w", err)
	}
}

// Dispose implements Checker.
func (c *GoBuildChecker) Dispose(_ context.Context) error {
	return nil
}
