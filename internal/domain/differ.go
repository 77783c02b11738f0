package domain

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sergi/go-diff/diffmatchpatch"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

// IncrementalDiffer annotates current mutants with results of a previous run
// when the code around them did not change.
type IncrementalDiffer interface {
	Diff(ctx context.Context, current []m.Mutant, previous *m.Report, currentFiles map[string][]byte, coverage *TestCoverage) []m.Mutant
}

type incrementalDiffer struct {
	force bool
	dmp   *diffmatchpatch.DiffMatchPatch
}

// NewIncrementalDiffer creates a differ. With force set nothing is reused.
func NewIncrementalDiffer(force bool) IncrementalDiffer {
	return &incrementalDiffer{force: force, dmp: diffmatchpatch.New()}
}

type mutantKey struct {
	fileName    string
	mutatorName string
	replacement string
	start, end  int
}

type diffStats struct {
	changedFiles int
	reused       int
	killedGone   int
	newCoverage  int
}

// Diff returns a copy of current in which every mutant with a reusable
// historic result carries that result.
func (d *incrementalDiffer) Diff(ctx context.Context, current []m.Mutant, previous *m.Report, currentFiles map[string][]byte, coverage *TestCoverage) []m.Mutant {
	result := append([]m.Mutant(nil), current...)

	if previous == nil {
		return result
	}

	if d.force {
		slog.Info("Incremental run forced, not reusing previous results")
		return result
	}

	var stats diffStats

	historic := d.historicByKey(ctx, previous, currentFiles, &stats)

	for i, mt := range result {
		if mt.IgnoreReason != "" || mt.HasResult() {
			continue
		}

		content, ok := currentFiles[mt.FileName]
		if !ok {
			continue
		}

		start, end, err := mt.Location.Offsets(content)
		if err != nil {
			continue
		}

		old, ok := historic[mutantKey{mt.FileName, mt.MutatorName, mt.Replacement, start, end}]
		if !ok || !d.reusable(mt, old, coverage, &stats) {
			continue
		}

		result[i] = reuse(mt, old)
		stats.reused++
	}

	slog.Info("Incremental analysis done",
		"reused", stats.reused,
		"total", len(current),
		"changedFiles", stats.changedFiles,
		"killedByRemovedTests", stats.killedGone,
		"newlyCovered", stats.newCoverage,
	)

	return result
}

// historicByKey maps every historic mutant whose code is unchanged to its
// position in the current source.
func (d *incrementalDiffer) historicByKey(ctx context.Context, previous *m.Report, currentFiles map[string][]byte, stats *diffStats) map[mutantKey]m.MutantResult {
	historic := map[mutantKey]m.MutantResult{}

	for name, file := range previous.Files {
		if ctx.Err() != nil {
			break
		}

		content, ok := currentFiles[name]
		if !ok || file.Source == "" {
			continue
		}

		oldSource := []byte(file.Source)

		var diffs []diffmatchpatch.Diff
		if file.Source != string(content) {
			stats.changedFiles++
			diffs = d.dmp.DiffMain(file.Source, string(content), false)
		}

		for _, old := range file.Mutants {
			start, end, err := old.Location.ToLocation().Offsets(oldSource)
			if err != nil {
				slog.Debug("Skipping historic mutant with invalid location", "file", name, "mutant", old.ID, "error", err)
				continue
			}

			newStart, newEnd, ok := translateSpan(diffs, start, end)
			if !ok {
				continue
			}

			historic[mutantKey{name, old.MutatorName, old.Replacement, newStart, newEnd}] = old
		}
	}

	return historic
}

// translateSpan maps the byte span [start, end) of the old text into the new
// text. It fails when a change overlaps or touches the span.
func translateSpan(diffs []diffmatchpatch.Diff, start, end int) (int, int, bool) {
	var oldPos, delta int

	for _, diff := range diffs {
		size := len(diff.Text)

		switch diff.Type {
		case diffmatchpatch.DiffEqual:
			oldPos += size
		case diffmatchpatch.DiffDelete:
			if oldPos <= end && start <= oldPos+size {
				return 0, 0, false
			}

			if oldPos+size < start {
				delta -= size
			}

			oldPos += size
		case diffmatchpatch.DiffInsert:
			if start <= oldPos && oldPos <= end {
				return 0, 0, false
			}

			if oldPos < start {
				delta += size
			}
		}
	}

	return start + delta, end + delta, true
}

func (d *incrementalDiffer) reusable(mt m.Mutant, old m.MutantResult, coverage *TestCoverage, stats *diffStats) bool {
	switch old.Status {
	case m.Killed:
		if coverage == nil {
			return true
		}

		for _, id := range old.KilledBy {
			if _, ok := coverage.TestsByID()[id]; ok {
				return true
			}
		}

		stats.killedGone++

		return false
	case m.Survived, m.NoCoverage:
		if coverage == nil || !coverage.HasCoverage() {
			return true
		}

		if old.Status == m.NoCoverage && coverage.HasStaticCoverage(mt.ID) {
			stats.newCoverage++
			return false
		}

		known := make(map[string]bool, len(old.CoveredBy))
		for _, id := range old.CoveredBy {
			known[id] = true
		}

		for _, test := range coverage.TestsByMutantID(mt.ID) {
			if !known[test.ID] {
				stats.newCoverage++
				return false
			}
		}

		return true
	case m.Timeout, m.RuntimeError, m.CompileError:
		return true
	default:
		return false
	}
}

func reuse(mt m.Mutant, old m.MutantResult) m.Mutant {
	mt.Status = old.Status
	mt.StatusReason = old.StatusReason
	mt.KilledBy = old.KilledBy
	mt.CoveredBy = old.CoveredBy
	mt.TestsCompleted = old.TestsCompleted
	mt.Static = old.Static
	mt.Duration = 0

	if mt.StatusReason == "" {
		mt.StatusReason = fmt.Sprintf("Reused result of mutant %s from the previous run", old.ID)
	}

	return mt
}
