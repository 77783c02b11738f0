package model

import (
	"path"
	"sort"
)

// ReportSchemaVersion is written into every report.
const ReportSchemaVersion = "1.0"

// ReportPosition is a 1-based line/column pair as stored on disk.
type ReportPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// ReportLocation is a 1-based location as stored on disk.
type ReportLocation struct {
	Start ReportPosition `json:"start"`
	End   ReportPosition `json:"end"`
}

// MutantResult is a mutant as persisted in the incremental report.
type MutantResult struct {
	ID             string         `json:"id"`
	MutatorName    string         `json:"mutatorName"`
	Replacement    string         `json:"replacement,omitempty"`
	Location       ReportLocation `json:"location"`
	Status         MutantStatus   `json:"status"`
	StatusReason   string         `json:"statusReason,omitempty"`
	KilledBy       []string       `json:"killedBy,omitempty"`
	CoveredBy      []string       `json:"coveredBy,omitempty"`
	TestsCompleted int            `json:"testsCompleted,omitempty"`
	Static         bool           `json:"static,omitempty"`
	DurationMS     int64          `json:"duration,omitempty"`
}

// FileResult groups the mutants of one source file.
type FileResult struct {
	Language string         `json:"language"`
	Source   string         `json:"source"`
	Mutants  []MutantResult `json:"mutants"`
}

// TestDefinition describes a test known at report time.
type TestDefinition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TestFileResult groups the tests of one test file.
type TestFileResult struct {
	Source string           `json:"source,omitempty"`
	Tests  []TestDefinition `json:"tests"`
}

// Report is the persisted result of a mutation run. It doubles as the input
// of the next incremental run.
type Report struct {
	SchemaVersion string                    `json:"schemaVersion"`
	Files         map[string]FileResult     `json:"files"`
	TestFiles     map[string]TestFileResult `json:"testFiles,omitempty"`
}

// ToReportLocation converts a 0-based location to the 1-based on-disk form.
func ToReportLocation(l Location) ReportLocation {
	return ReportLocation{
		Start: ReportPosition{Line: l.Start.Line + 1, Column: l.Start.Column + 1},
		End:   ReportPosition{Line: l.End.Line + 1, Column: l.End.Column + 1},
	}
}

// ToLocation converts a 1-based on-disk location to the 0-based form.
func (l ReportLocation) ToLocation() Location {
	return Location{
		Start: Position{Line: l.Start.Line - 1, Column: l.Start.Column - 1},
		End:   Position{Line: l.End.Line - 1, Column: l.End.Column - 1},
	}
}

// NewMutantResult converts a tested mutant into its persisted form.
func NewMutantResult(mt Mutant) MutantResult {
	return MutantResult{
		ID:             mt.ID,
		MutatorName:    mt.MutatorName,
		Replacement:    mt.Replacement,
		Location:       ToReportLocation(mt.Location),
		Status:         mt.Status,
		StatusReason:   mt.StatusReason,
		KilledBy:       mt.KilledBy,
		CoveredBy:      mt.CoveredBy,
		TestsCompleted: mt.TestsCompleted,
		Static:         mt.Static,
		DurationMS:     mt.Duration.Milliseconds(),
	}
}

// ToMutant converts a persisted mutant back to the in-memory form.
func (r MutantResult) ToMutant(fileName string) Mutant {
	return Mutant{
		ID:             r.ID,
		FileName:       fileName,
		MutatorName:    r.MutatorName,
		Replacement:    r.Replacement,
		Location:       r.Location.ToLocation(),
		Status:         r.Status,
		StatusReason:   r.StatusReason,
		KilledBy:       r.KilledBy,
		CoveredBy:      r.CoveredBy,
		TestsCompleted: r.TestsCompleted,
		Static:         r.Static,
	}
}

// Mutants returns every mutant in the report with 0-based locations,
// ordered by file name and then by id.
func (r *Report) Mutants() []Mutant {
	if r == nil {
		return nil
	}

	names := make([]string, 0, len(r.Files))
	for name := range r.Files {
		names = append(names, name)
	}

	sort.Strings(names)

	var mutants []Mutant

	for _, name := range names {
		for _, result := range r.Files[name].Mutants {
			mutants = append(mutants, result.ToMutant(name))
		}
	}

	return mutants
}

// NewReport builds a report from tested mutants, the project files that hold
// them and the tests known from the dry run.
func NewReport(files []File, mutants []Mutant, tests []TestResult) *Report {
	report := &Report{
		SchemaVersion: ReportSchemaVersion,
		Files:         map[string]FileResult{},
		TestFiles:     map[string]TestFileResult{},
	}

	sources := make(map[string]string, len(files))
	for _, file := range files {
		sources[file.Name] = string(file.Content)
	}

	for _, mt := range mutants {
		fileResult, ok := report.Files[mt.FileName]
		if !ok {
			fileResult = FileResult{
				Language: languageOf(mt.FileName),
				Source:   sources[mt.FileName],
			}
		}

		fileResult.Mutants = append(fileResult.Mutants, NewMutantResult(mt))
		report.Files[mt.FileName] = fileResult
	}

	for _, test := range tests {
		testFile := report.TestFiles[test.FileName]
		testFile.Tests = append(testFile.Tests, TestDefinition{ID: test.ID, Name: test.Name})
		report.TestFiles[test.FileName] = testFile
	}

	return report
}

func languageOf(fileName string) string {
	switch path.Ext(fileName) {
	case ".go":
		return "go"
	case ".js", ".mjs", ".cjs", ".jsx":
		return "javascript"
	case ".ts", ".mts", ".cts", ".tsx":
		return "typescript"
	default:
		return "unknown"
	}
}
