package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

// MutantReader loads the mutants produced by an external mutation generator.
type MutantReader interface {
	Read(ctx context.Context, path m.Path) ([]m.Mutant, error)
}

// MutantFile is the document written by a mutation generator. Locations are
// 1-based, as in the report.
type MutantFile struct {
	Mutants []MutantEntry `json:"mutants" yaml:"mutants"`
}

// MutantEntry is one generated mutant.
type MutantEntry struct {
	ID           string           `json:"id" yaml:"id"`
	FileName     string           `json:"fileName" yaml:"fileName"`
	MutatorName  string           `json:"mutatorName" yaml:"mutatorName"`
	Replacement  string           `json:"replacement" yaml:"replacement"`
	Location     m.ReportLocation `json:"location" yaml:"location"`
	IgnoreReason string           `json:"ignoreReason,omitempty" yaml:"ignoreReason,omitempty"`
}

// FileMutantReader reads mutant files in JSON or, for .yaml/.yml files, YAML.
type FileMutantReader struct{}

// NewFileMutantReader creates a FileMutantReader.
func NewFileMutantReader() *FileMutantReader {
	return &FileMutantReader{}
}

// Read implements MutantReader. Mutants without an id are numbered by position.
func (r *FileMutantReader) Read(_ context.Context, path m.Path) ([]m.Mutant, error) {
	data, err := os.ReadFile(string(path))
	if err != nil {
		return nil, fmt.Errorf("read mutants %s: %w", path, err)
	}

	var file MutantFile

	switch strings.ToLower(filepath.Ext(string(path))) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	default:
		err = json.Unmarshal(data, &file)
	}

	if err != nil {
		return nil, fmt.Errorf("parse mutants %s: %w", path, err)
	}

	mutants := make([]m.Mutant, 0, len(file.Mutants))
	seen := make(map[string]bool, len(file.Mutants))

	for i, entry := range file.Mutants {
		if entry.FileName == "" {
			return nil, fmt.Errorf("mutant %d in %s has no fileName", i, path)
		}

		id := entry.ID
		if id == "" {
			id = strconv.Itoa(i)
		}

		if seen[id] {
			return nil, fmt.Errorf("duplicate mutant id %q in %s", id, path)
		}

		seen[id] = true

		mutants = append(mutants, m.Mutant{
			ID:           id,
			FileName:     filepath.ToSlash(entry.FileName),
			MutatorName:  entry.MutatorName,
			Replacement:  entry.Replacement,
			Location:     entry.Location.ToLocation(),
			IgnoreReason: entry.IgnoreReason,
			Status:       m.Pending,
		})
	}

	return mutants, nil
}
