// Package adapter contains the infrastructure adapters of mutiny: file system,
// test runners, checkers, report storage and metrics.
package adapter

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

// SourceFSAdapter abstracts filesystem-specific operations that the domain layer
// relies on when reading projects and building sandboxes. It hides direct `os`
// access so the sandbox logic can be tested without touching the disk.
//
//nolint:interfacebloat // A richer interface keeps sandbox logic decoupled from os/fs.
type SourceFSAdapter interface {
	// ReadProject lists the regular files below root, relative to root and
	// slash separated. Hidden directories and the named skip directories are
	// not descended into. Contents are not loaded.
	ReadProject(ctx context.Context, root m.Path, skipDirs []string) ([]m.File, error)

	// ReadFile loads a file from disk and returns its contents.
	ReadFile(ctx context.Context, path m.Path) ([]byte, error)

	// WriteFile writes content to a file with the given permissions.
	WriteFile(ctx context.Context, path m.Path, content []byte, perm os.FileMode) error

	// FileInfo returns metadata for a path so callers can check existence.
	FileInfo(ctx context.Context, path m.Path) (os.FileInfo, error)

	// FindProjectRoot searches for go.mod file walking up the directory tree.
	FindProjectRoot(ctx context.Context, startPath m.Path) (m.Path, error)

	// CreateTempDir creates a new directory matching pattern inside parent.
	CreateTempDir(ctx context.Context, parent m.Path, pattern string) (m.Path, error)

	// RemoveAll removes a directory and all its contents.
	RemoveAll(ctx context.Context, path m.Path) error

	// CopyFiles copies the named files from src to dst, keeping at most limit
	// files open at once.
	CopyFiles(ctx context.Context, src, dst m.Path, names []string, limit int) error

	// Symlink creates link pointing at target.
	Symlink(ctx context.Context, target, link m.Path) error

	// JoinPath joins path elements into a single path.
	JoinPath(elem ...string) m.Path
}

// LocalSourceFSAdapter is the os backed SourceFSAdapter.
type LocalSourceFSAdapter struct{}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter instance ready to
// be wired into the workflow.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{}
}

// ReadProject lists project files below root.
func (a *LocalSourceFSAdapter) ReadProject(ctx context.Context, root m.Path, skipDirs []string) ([]m.File, error) {
	skip := make(map[string]bool, len(skipDirs))
	for _, dir := range skipDirs {
		skip[dir] = true
	}

	rootStr := string(root)

	var files []m.File

	err := filepath.WalkDir(rootStr, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		name := entry.Name()

		if entry.IsDir() {
			if path != rootStr && (skip[name] || name[0] == '.') {
				return filepath.SkipDir
			}

			return nil
		}

		if !entry.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(rootStr, path)
		if err != nil {
			return err
		}

		files = append(files, m.File{Name: filepath.ToSlash(rel)})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read project %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	slog.Debug("Read project", "root", root, "files", len(files))

	return files, nil
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFSAdapter) ReadFile(_ context.Context, path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// WriteFile writes content to a file with the given permissions, creating
// parent directories as needed.
func (a *LocalSourceFSAdapter) WriteFile(_ context.Context, path m.Path, content []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return err
	}

	return os.WriteFile(string(path), content, perm)
}

// FileInfo returns os.FileInfo metadata for the given path.
func (a *LocalSourceFSAdapter) FileInfo(_ context.Context, path m.Path) (os.FileInfo, error) {
	return os.Stat(string(path))
}

// FindProjectRoot searches for go.mod file walking up the directory tree,
// starting at startPath itself when it is a directory.
func (a *LocalSourceFSAdapter) FindProjectRoot(_ context.Context, startPath m.Path) (m.Path, error) {
	dir := string(startPath)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return m.Path(dir), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory of %s", startPath)
		}

		dir = parent
	}
}

// CreateTempDir creates a temporary directory inside parent.
func (a *LocalSourceFSAdapter) CreateTempDir(_ context.Context, parent m.Path, pattern string) (m.Path, error) {
	if err := os.MkdirAll(string(parent), 0o750); err != nil {
		return "", err
	}

	tmpDir, err := os.MkdirTemp(string(parent), pattern)
	if err != nil {
		return "", err
	}

	return m.Path(tmpDir), nil
}

// RemoveAll removes a directory and all its contents.
func (a *LocalSourceFSAdapter) RemoveAll(_ context.Context, path m.Path) error {
	return os.RemoveAll(string(path))
}

// CopyFiles copies files concurrently with a bounded number of open files.
func (a *LocalSourceFSAdapter) CopyFiles(ctx context.Context, src, dst m.Path, names []string, limit int) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(max(1, limit))

	for _, name := range names {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			from := filepath.Join(string(src), filepath.FromSlash(name))
			to := filepath.Join(string(dst), filepath.FromSlash(name))

			if err := a.copyFile(from, to); err != nil {
				return fmt.Errorf("copy %s: %w", name, err)
			}

			return nil
		})
	}

	return group.Wait()
}

// copyFile copies a single file, keeping its mode.
func (a *LocalSourceFSAdapter) copyFile(src, dst string) error {
	// #nosec G304 - src is internal project file path, not user input
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer func() { _ = sourceFile.Close() }()

	info, err := sourceFile.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}

	// #nosec G304 - dst is internal destination path, not user input
	destFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		_ = destFile.Close()
		return err
	}

	return destFile.Close()
}

// Symlink creates link pointing at target.
func (a *LocalSourceFSAdapter) Symlink(_ context.Context, target, link m.Path) error {
	if err := os.MkdirAll(filepath.Dir(string(link)), 0o750); err != nil {
		return err
	}

	return os.Symlink(string(target), string(link))
}

// JoinPath joins path elements into a single path.
func (a *LocalSourceFSAdapter) JoinPath(elem ...string) m.Path {
	return m.Path(filepath.Join(elem...))
}
