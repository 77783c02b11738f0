package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	m "mutiny.dev/pkg/mutiny/internal/model"
)

// ReportStore persists mutation reports. Locations are 1-based on disk.
type ReportStore interface {
	// Load reads the report at path. A missing file yields a nil report and no error.
	Load(ctx context.Context, path m.Path) (*m.Report, error)
	// Save writes report to path, creating parent directories.
	Save(ctx context.Context, path m.Path, report *m.Report) error
}

// JSONReportStore stores reports as indented JSON documents.
type JSONReportStore struct{}

// NewJSONReportStore creates a JSONReportStore.
func NewJSONReportStore() *JSONReportStore {
	return &JSONReportStore{}
}

// Load implements ReportStore.
func (s *JSONReportStore) Load(_ context.Context, path m.Path) (*m.Report, error) {
	data, err := os.ReadFile(string(path))
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("No previous report found", "path", path)
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}

	var report m.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}

	if report.Files == nil {
		report.Files = map[string]m.FileResult{}
	}

	slog.Debug("Loaded report", "path", path, "files", len(report.Files), "schemaVersion", report.SchemaVersion)

	return &report, nil
}

// Save implements ReportStore.
func (s *JSONReportStore) Save(_ context.Context, path m.Path, report *m.Report) error {
	if report == nil {
		return errors.New("save report: nil report")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	if err := os.WriteFile(string(path), data, 0o600); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}

	slog.Debug("Saved report", "path", path, "files", len(report.Files))

	return nil
}
