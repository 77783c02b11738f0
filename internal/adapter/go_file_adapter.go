package adapter

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"log/slog"
	"os"
	"path/filepath"

	m "mutiny.dev/pkg/mutiny/internal/model"
)

// ScopeType classifies a top-level declaration by when its code runs.
type ScopeType string

const (
	// ScopeGlobal is a package-level const or var declaration.
	ScopeGlobal ScopeType = "global"
	// ScopeInit is an init function.
	ScopeInit ScopeType = "init"
	// ScopeFunction is any other function or method.
	ScopeFunction ScopeType = "function"
)

// RunsAtInit reports whether code in the scope runs while the package is
// initialized, before any test function.
func (s ScopeType) RunsAtInit() bool {
	return s == ScopeGlobal || s == ScopeInit
}

// CodeScope is the line range of one top-level declaration (1-based, inclusive).
type CodeScope struct {
	Type      ScopeType
	StartLine int
	EndLine   int
	Name      string
}

// GoFileAdapter encapsulates Go-specific parsing and scope detection. The
// Go test runner uses it to find mutants in code that runs at package
// initialization: per-test coverage cannot attribute those to a single test.
type GoFileAdapter interface {
	// Parse builds an AST using the provided file set and optional source bytes.
	Parse(ctx context.Context, fileSet *token.FileSet, filename string, src []byte) (*ast.File, error)

	// ExtractScopes returns the scopes of all top-level declarations.
	ExtractScopes(fileSet *token.FileSet, file *ast.File) []CodeScope

	// ScopeForLine returns the scope type for a given 1-based line number.
	ScopeForLine(scopes []CodeScope, line int) ScopeType
}

// LocalGoFileAdapter provides a concrete GoFileAdapter backed by go/parser.
type LocalGoFileAdapter struct{}

// NewLocalGoFileAdapter constructs a LocalGoFileAdapter.
func NewLocalGoFileAdapter() *LocalGoFileAdapter {
	return &LocalGoFileAdapter{}
}

// Parse builds an AST for the provided filename/source pair.
func (a *LocalGoFileAdapter) Parse(ctx context.Context, fileSet *token.FileSet, filename string, src []byte) (*ast.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return parser.ParseFile(fileSet, filename, src, parser.SkipObjectResolution)
}

// ExtractScopes inspects AST declarations and records their scopes.
func (a *LocalGoFileAdapter) ExtractScopes(fileSet *token.FileSet, file *ast.File) []CodeScope {
	var scopes []CodeScope

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.CONST && d.Tok != token.VAR {
				continue
			}

			for _, spec := range d.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}

				start := fileSet.Position(vs.Pos()).Line
				end := fileSet.Position(vs.End()).Line

				for _, name := range vs.Names {
					scopes = append(scopes, CodeScope{
						Type:      ScopeGlobal,
						StartLine: start,
						EndLine:   end,
						Name:      name.Name,
					})
				}
			}

		case *ast.FuncDecl:
			scopeType := ScopeFunction
			if d.Recv == nil && d.Name.Name == "init" {
				scopeType = ScopeInit
			}

			scopes = append(scopes, CodeScope{
				Type:      scopeType,
				StartLine: fileSet.Position(d.Pos()).Line,
				EndLine:   fileSet.Position(d.End()).Line,
				Name:      d.Name.Name,
			})
		}
	}

	return scopes
}

// ScopeForLine determines which scope type covers the requested line.
func (a *LocalGoFileAdapter) ScopeForLine(scopes []CodeScope, line int) ScopeType {
	for _, scope := range scopes {
		if line >= scope.StartLine && line <= scope.EndLine {
			return scope.Type
		}
	}

	return ScopeFunction
}

// initScopeMutants returns the ids of mutants placed in package-level
// declarations or init functions of the Go files under dir.
func initScopeMutants(ctx context.Context, files GoFileAdapter, dir m.Path, mutants []m.Mutant) (map[string]bool, error) {
	byFile := map[string][]m.Mutant{}

	for _, mt := range mutants {
		if filepath.Ext(mt.FileName) != ".go" {
			continue
		}

		byFile[mt.FileName] = append(byFile[mt.FileName], mt)
	}

	static := map[string]bool{}
	fileSet := token.NewFileSet()

	for name, fileMutants := range byFile {
		path := filepath.Join(string(dir), filepath.FromSlash(name))

		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		file, err := files.Parse(ctx, fileSet, path, src)
		if err != nil {
			slog.Warn("Failed to parse file for scope detection", "file", name, "error", err)
			continue
		}

		scopes := files.ExtractScopes(fileSet, file)

		for _, mt := range fileMutants {
			if files.ScopeForLine(scopes, mt.Location.Start.Line+1).RunsAtInit() {
				static[mt.ID] = true
			}
		}
	}

	return static, nil
}
