package adapter

import (
	"encoding/json"
	"time"

	m "mutiny.dev/pkg/mutiny/internal/model"
)

// Message kinds exchanged with a worker process over stdio, one JSON document per line.
const (
	KindInit      = "init"
	KindDryRun    = "dryRun"
	KindMutantRun = "mutantRun"
	KindDispose   = "dispose"

	KindResult = "result"
	KindError  = "error"
)

// Request is sent to the worker process.
type Request struct {
	ID      uint64          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is sent back by the worker process, correlated by ID.
type Response struct {
	ID      uint64          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// WireMutant is the mutant as seen by a worker process. Locations are 1-based.
type WireMutant struct {
	ID          string           `json:"id"`
	FileName    string           `json:"fileName"`
	MutatorName string           `json:"mutatorName"`
	Replacement string           `json:"replacement"`
	Location    m.ReportLocation `json:"location"`
}

// WireInitResult is the payload of a successful init.
type WireInitResult struct {
	Capabilities m.Capabilities `json:"capabilities"`
}

// WireDryRunOptions is the payload of a dryRun request.
type WireDryRunOptions struct {
	TimeoutMS        int64              `json:"timeoutMs"`
	CoverageAnalysis m.CoverageAnalysis `json:"coverageAnalysis"`
	DisableBail      bool               `json:"disableBail"`
	Mutants          []WireMutant       `json:"mutants,omitempty"`
}

// WireTestResult is one test in a dryRun result.
type WireTestResult struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	FileName       string       `json:"fileName,omitempty"`
	Status         m.TestStatus `json:"status"`
	TimeSpentMS    int64        `json:"timeSpentMs"`
	FailureMessage string       `json:"failureMessage,omitempty"`
}

// WireDryRunResult is the payload of a dryRun result.
type WireDryRunResult struct {
	Status       m.DryRunStatus   `json:"status"`
	Tests        []WireTestResult `json:"tests"`
	Coverage     *m.CoverageData  `json:"coverage,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	Reason       string           `json:"reason,omitempty"`
}

// WireMutantRunOptions is the payload of a mutantRun request. A null
// testFilter runs every test.
type WireMutantRunOptions struct {
	ActiveMutant      WireMutant         `json:"activeMutant"`
	TestFilter        []string           `json:"testFilter"`
	TimeoutMS         int64              `json:"timeoutMs"`
	HitLimit          *int               `json:"hitLimit,omitempty"`
	DisableBail       bool               `json:"disableBail"`
	MutantActivation  m.MutantActivation `json:"mutantActivation"`
	ReloadEnvironment bool               `json:"reloadEnvironment"`
	SandboxFileName   string             `json:"sandboxFileName,omitempty"`
}

// WireMutantRunResult is the payload of a mutantRun result.
type WireMutantRunResult struct {
	Status         m.MutantRunStatus `json:"status"`
	KilledBy       []string          `json:"killedBy,omitempty"`
	FailureMessage string            `json:"failureMessage,omitempty"`
	NrOfTests      int               `json:"nrOfTests"`
	Reason         string            `json:"reason,omitempty"`
	ErrorMessage   string            `json:"errorMessage,omitempty"`
	CompileError   bool              `json:"compileError,omitempty"`
	HitCount       *int              `json:"hitCount,omitempty"`
}

func toWireMutant(mt m.Mutant) WireMutant {
	return WireMutant{
		ID:          mt.ID,
		FileName:    mt.FileName,
		MutatorName: mt.MutatorName,
		Replacement: mt.Replacement,
		Location:    m.ToReportLocation(mt.Location),
	}
}

func toWireDryRunOptions(options m.DryRunOptions) WireDryRunOptions {
	wire := WireDryRunOptions{
		TimeoutMS:        options.Timeout.Milliseconds(),
		CoverageAnalysis: options.CoverageAnalysis,
		DisableBail:      options.DisableBail,
	}

	for _, mt := range options.Mutants {
		wire.Mutants = append(wire.Mutants, toWireMutant(mt))
	}

	return wire
}

func toWireMutantRunOptions(options m.MutantRunOptions) WireMutantRunOptions {
	return WireMutantRunOptions{
		ActiveMutant:      toWireMutant(options.ActiveMutant),
		TestFilter:        options.TestFilter,
		TimeoutMS:         options.Timeout.Milliseconds(),
		HitLimit:          options.HitLimit,
		DisableBail:       options.DisableBail,
		MutantActivation:  options.MutantActivation,
		ReloadEnvironment: options.ReloadEnvironment,
		SandboxFileName:   options.SandboxFileName,
	}
}

func (w WireDryRunResult) toModel() m.DryRunResult {
	result := m.DryRunResult{
		Status:       w.Status,
		Coverage:     w.Coverage,
		ErrorMessage: w.ErrorMessage,
		Reason:       w.Reason,
	}

	for _, test := range w.Tests {
		result.Tests = append(result.Tests, m.TestResult{
			ID:             test.ID,
			Name:           test.Name,
			FileName:       test.FileName,
			Status:         test.Status,
			TimeSpent:      time.Duration(test.TimeSpentMS) * time.Millisecond,
			FailureMessage: test.FailureMessage,
		})
	}

	return result
}

func (w WireMutantRunResult) toModel() m.MutantRunResult {
	return m.MutantRunResult{
		Status:         w.Status,
		KilledBy:       w.KilledBy,
		FailureMessage: w.FailureMessage,
		NrOfTests:      w.NrOfTests,
		Reason:         w.Reason,
		ErrorMessage:   w.ErrorMessage,
		CompileError:   w.CompileError,
		HitCount:       w.HitCount,
	}
}
