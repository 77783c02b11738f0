package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"mutiny.dev/pkg/mutiny/internal/adapter"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

// ErrUnknownFile is returned when a path does not belong to the project.
var ErrUnknownFile = errors.New("unknown file")

// Values of SandboxOptions.CleanTempDir.
const (
	CleanTempDirTrue   = "true"
	CleanTempDirFalse  = "false"
	CleanTempDirAlways = "always"
)

const (
	// DefaultTempDirName is created inside the project root and holds the sandboxes.
	DefaultTempDirName = ".mutiny-tmp"

	maxOpenFiles = 256

	// interruptedExitCode is used after an interrupted in-place run restored the project.
	interruptedExitCode = 130
)

// SandboxOptions configures the SandboxManager.
type SandboxOptions struct {
	ProjectRoot m.Path
	TempDirName string
	// SymlinkDirs are dependency directories linked into every sandbox instead of copied.
	SymlinkDirs []string
	// InPlace mutates the project itself after backing up every touched file.
	InPlace bool
	// CleanTempDir is "true" (remove after a successful run), "false" or "always".
	CleanTempDir string
}

// Sandbox is the directory one worker runs its tests in.
type Sandbox interface {
	Dir() m.Path
	SandboxFileFor(name string) (m.Path, error)
	OriginalFileFor(path m.Path) (m.Path, error)
	// Activate writes the mutated file into the sandbox and returns its path.
	// A previously active mutant is deactivated first.
	Activate(ctx context.Context, mt m.Mutant) (m.Path, error)
	// Deactivate restores the file changed by the last Activate.
	Deactivate(ctx context.Context) error
}

// SandboxManager creates and cleans up the sandboxes of a run.
type SandboxManager interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, workerID int) (Sandbox, error)
	// Original returns the unmodified content of a project file.
	Original(ctx context.Context, name string) ([]byte, error)
	Dispose(ctx context.Context, runSucceeded bool) error
}

type sandboxManager struct {
	fs      adapter.SourceFSAdapter
	options SandboxOptions
	names   []string
	known   map[string]bool

	originalsMu sync.Mutex
	originals   map[string][]byte

	mu        sync.Mutex
	backupDir m.Path
	backedUp  []string
	disposed  bool

	notify     func(chan<- os.Signal, ...os.Signal)
	stopNotify func(chan<- os.Signal)
	exit       func(int)
	signals    chan os.Signal
	hookDone   chan struct{}
}

// NewSandboxManager creates a manager for the given project files.
func NewSandboxManager(fs adapter.SourceFSAdapter, files []m.File, options SandboxOptions) SandboxManager {
	if options.TempDirName == "" {
		options.TempDirName = DefaultTempDirName
	}

	if options.CleanTempDir == "" {
		options.CleanTempDir = CleanTempDirTrue
	}

	manager := &sandboxManager{
		fs:         fs,
		options:    options,
		known:      make(map[string]bool, len(files)),
		originals:  map[string][]byte{},
		notify:     signal.Notify,
		stopNotify: signal.Stop,
		exit:       os.Exit,
	}

	for _, file := range files {
		manager.names = append(manager.names, file.Name)
		manager.known[file.Name] = true

		if file.Content != nil {
			manager.originals[file.Name] = file.Content
		}
	}

	return manager
}

func (s *sandboxManager) tempDir() m.Path {
	return s.fs.JoinPath(string(s.options.ProjectRoot), s.options.TempDirName)
}

// Init prepares in-place mode: it creates the backup directory and installs a
// signal hook that restores the project before the process exits.
func (s *sandboxManager) Init(ctx context.Context) error {
	if !s.options.InPlace {
		return nil
	}

	backupDir, err := s.fs.CreateTempDir(ctx, s.tempDir(), "backup-*")
	if err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	s.mu.Lock()
	s.backupDir = backupDir
	s.mu.Unlock()

	s.installRestoreHook()

	slog.Info("Running in place, originals are backed up", "backupDir", backupDir)

	return nil
}

func (s *sandboxManager) installRestoreHook() {
	s.signals = make(chan os.Signal, 1)
	s.hookDone = make(chan struct{})

	s.notify(s.signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-s.signals:
			slog.Warn("Interrupted, restoring original files", "signal", sig.String())

			if err := s.restoreBackups(context.Background()); err != nil {
				slog.Error("Failed to restore original files", "backupDir", s.backupDir, "error", err)
			}

			s.exit(interruptedExitCode)
		case <-s.hookDone:
		}
	}()
}

// Create builds the sandbox of one worker. In in-place mode every worker
// shares the project directory.
func (s *sandboxManager) Create(ctx context.Context, workerID int) (Sandbox, error) {
	if s.options.InPlace {
		return &sandbox{manager: s, dir: s.options.ProjectRoot}, nil
	}

	dir, err := s.fs.CreateTempDir(ctx, s.tempDir(), fmt.Sprintf("sandbox-%d-*", workerID))
	if err != nil {
		return nil, fmt.Errorf("create sandbox directory: %w", err)
	}

	if err := s.fs.CopyFiles(ctx, s.options.ProjectRoot, dir, s.names, maxOpenFiles); err != nil {
		return nil, fmt.Errorf("fill sandbox %s: %w", dir, err)
	}

	s.symlinkDependencies(ctx, dir)

	slog.Debug("Created sandbox", "worker", workerID, "dir", dir, "files", len(s.names))

	return &sandbox{manager: s, dir: dir}, nil
}

func (s *sandboxManager) symlinkDependencies(ctx context.Context, dir m.Path) {
	for _, name := range s.options.SymlinkDirs {
		target := s.fs.JoinPath(string(s.options.ProjectRoot), name)
		if _, err := s.fs.FileInfo(ctx, target); err != nil {
			slog.Warn("Dependency directory not found, not symlinking it into the sandbox", "dir", target)
			continue
		}

		link := s.fs.JoinPath(string(dir), name)
		if _, err := s.fs.FileInfo(ctx, link); err == nil {
			slog.Warn("Dependency directory already exists in the sandbox, not symlinking it", "dir", link)
			continue
		}

		if err := s.fs.Symlink(ctx, target, link); err != nil {
			slog.Warn("Failed to symlink dependency directory", "target", target, "link", link, "error", err)
		}
	}
}

// Original returns the unmodified content of a project file.
func (s *sandboxManager) Original(ctx context.Context, name string) ([]byte, error) {
	name, err := s.resolve(name)
	if err != nil {
		return nil, err
	}

	s.originalsMu.Lock()
	defer s.originalsMu.Unlock()

	if content, ok := s.originals[name]; ok {
		return content, nil
	}

	content, err := s.fs.ReadFile(ctx, s.projectFile(name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	s.originals[name] = content

	return content, nil
}

// resolve turns a project relative or absolute path into a known file name.
func (s *sandboxManager) resolve(name string) (string, error) {
	if filepath.IsAbs(name) {
		rel, err := filepath.Rel(string(s.options.ProjectRoot), name)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", fmt.Errorf("%s is outside the project %s: %w", name, s.options.ProjectRoot, ErrUnknownFile)
		}

		name = rel
	}

	name = filepath.ToSlash(filepath.Clean(filepath.FromSlash(name)))
	if !s.known[name] {
		return "", fmt.Errorf("%s is not part of the project: %w", name, ErrUnknownFile)
	}

	return name, nil
}

func (s *sandboxManager) projectFile(name string) m.Path {
	return s.fs.JoinPath(string(s.options.ProjectRoot), filepath.FromSlash(name))
}

// backup saves the original of name before it is first changed in place.
func (s *sandboxManager) backup(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, done := range s.backedUp {
		if done == name {
			return nil
		}
	}

	original, err := s.Original(ctx, name)
	if err != nil {
		return err
	}

	target := s.fs.JoinPath(string(s.backupDir), filepath.FromSlash(name))
	if err := s.fs.WriteFile(ctx, target, original, 0o600); err != nil {
		return fmt.Errorf("back up %s: %w", name, err)
	}

	s.backedUp = append(s.backedUp, name)

	return nil
}

// restoreBackups writes every backed up file back into the project.
func (s *sandboxManager) restoreBackups(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error

	for _, name := range s.backedUp {
		backup := s.fs.JoinPath(string(s.backupDir), filepath.FromSlash(name))

		content, err := s.fs.ReadFile(ctx, backup)
		if err != nil {
			errs = append(errs, fmt.Errorf("read backup of %s: %w", name, err))
			continue
		}

		if err := s.fs.WriteFile(ctx, s.projectFile(name), content, s.perm(ctx, s.projectFile(name))); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", name, err))
		}
	}

	if len(errs) == 0 {
		slog.Debug("Restored original files", "files", len(s.backedUp))
		s.backedUp = nil
	}

	return errors.Join(errs...)
}

func (s *sandboxManager) perm(ctx context.Context, path m.Path) os.FileMode {
	info, err := s.fs.FileInfo(ctx, path)
	if err != nil {
		return 0o600
	}

	return info.Mode().Perm()
}

// Dispose restores the project in in-place mode, otherwise removes the
// sandboxes when CleanTempDir asks for it.
func (s *sandboxManager) Dispose(ctx context.Context, runSucceeded bool) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}

	s.disposed = true
	s.mu.Unlock()

	if s.options.InPlace {
		defer s.removeRestoreHook()

		if err := s.restoreBackups(ctx); err != nil {
			return fmt.Errorf("restore in-place changes, originals remain in %s: %w", s.backupDir, err)
		}

		if err := s.fs.RemoveAll(ctx, s.backupDir); err != nil {
			return fmt.Errorf("remove backup directory: %w", err)
		}

		return nil
	}

	switch {
	case s.options.CleanTempDir == CleanTempDirAlways,
		s.options.CleanTempDir == CleanTempDirTrue && runSucceeded:
		if err := s.fs.RemoveAll(ctx, s.tempDir()); err != nil {
			return fmt.Errorf("remove sandboxes: %w", err)
		}

		slog.Debug("Removed sandboxes", "dir", s.tempDir())
	default:
		slog.Info("Keeping sandboxes", "dir", s.tempDir())
	}

	return nil
}

func (s *sandboxManager) removeRestoreHook() {
	if s.signals == nil {
		return
	}

	s.stopNotify(s.signals)
	close(s.hookDone)
}

type sandbox struct {
	manager *sandboxManager
	dir     m.Path

	mu     sync.Mutex
	active string
}

func (s *sandbox) Dir() m.Path {
	return s.dir
}

// SandboxFileFor translates a project file into its path inside the sandbox.
func (s *sandbox) SandboxFileFor(name string) (m.Path, error) {
	name, err := s.manager.resolve(name)
	if err != nil {
		return "", fmt.Errorf("cannot find sandbox file: %w", err)
	}

	return s.manager.fs.JoinPath(string(s.dir), filepath.FromSlash(name)), nil
}

// OriginalFileFor translates a path inside the sandbox back to the project.
func (s *sandbox) OriginalFileFor(path m.Path) (m.Path, error) {
	rel, err := filepath.Rel(string(s.dir), string(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("cannot find original file: %s is outside sandbox %s: %w", path, s.dir, ErrUnknownFile)
	}

	name, err := s.manager.resolve(filepath.ToSlash(rel))
	if err != nil {
		return "", fmt.Errorf("cannot find original file: %w", err)
	}

	return s.manager.projectFile(name), nil
}

func (s *sandbox) Activate(ctx context.Context, mt m.Mutant) (m.Path, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.deactivate(ctx); err != nil {
		return "", err
	}

	name, err := s.manager.resolve(mt.FileName)
	if err != nil {
		return "", fmt.Errorf("activate mutant %s: %w", mt.ID, err)
	}

	original, err := s.manager.Original(ctx, name)
	if err != nil {
		return "", err
	}

	mutated, err := mt.Apply(original)
	if err != nil {
		return "", err
	}

	if s.manager.options.InPlace {
		if err := s.manager.backup(ctx, name); err != nil {
			return "", err
		}
	}

	target := s.manager.fs.JoinPath(string(s.dir), filepath.FromSlash(name))
	if err := s.manager.fs.WriteFile(ctx, target, mutated, s.manager.perm(ctx, target)); err != nil {
		return "", fmt.Errorf("write mutant %s: %w", mt.ID, err)
	}

	s.active = name

	return target, nil
}

func (s *sandbox) Deactivate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.deactivate(ctx)
}

func (s *sandbox) deactivate(ctx context.Context) error {
	if s.active == "" {
		return nil
	}

	original, err := s.manager.Original(ctx, s.active)
	if err != nil {
		return err
	}

	target := s.manager.fs.JoinPath(string(s.dir), filepath.FromSlash(s.active))
	if err := s.manager.fs.WriteFile(ctx, target, original, s.manager.perm(ctx, target)); err != nil {
		return fmt.Errorf("restore %s: %w", s.active, err)
	}

	s.active = ""

	return nil
}
