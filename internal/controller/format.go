package controller

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pmezard/go-difflib/difflib"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

const (
	diffContextLines   = 2
	scoreNotApplicable = "n/a"
)

// mutantLocation renders the 1-based position of a mutant, as editors show it.
func mutantLocation(mt m.Mutant) string {
	loc := m.ToReportLocation(mt.Location)
	return fmt.Sprintf("%s:%d:%d", mt.FileName, loc.Start.Line, loc.Start.Column)
}

// mutantDiff renders the change a mutant makes to original as a unified diff.
func mutantDiff(mt m.Mutant, original []byte) (string, error) {
	if len(original) == 0 {
		return "", nil
	}

	mutated, err := mt.Apply(original)
	if err != nil {
		return "", err
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(original)),
		B:        difflib.SplitLines(string(mutated)),
		FromFile: "a/" + mt.FileName,
		ToFile:   "b/" + mt.FileName,
		Context:  diffContextLines,
	})
}

// showsDiff reports whether the change of a mutant with status is worth showing.
func showsDiff(status m.MutantStatus) bool {
	return status == m.Survived || status == m.NoCoverage
}

type statusCounts map[m.MutantStatus]int

func (c statusCounts) add(status m.MutantStatus) {
	c[status]++
}

func (c statusCounts) total() int {
	total := 0
	for _, n := range c {
		total += n
	}

	return total
}

func (c statusCounts) errors() int {
	return c[m.RuntimeError] + c[m.CompileError]
}

func (c statusCounts) score() string {
	detected, undetected := 0, 0

	for status, n := range c {
		switch {
		case status.Detected():
			detected += n
		case status.Undetected():
			undetected += n
		}
	}

	if detected+undetected == 0 {
		return scoreNotApplicable
	}

	return fmt.Sprintf("%.2f%%", float64(detected)*100/float64(detected+undetected))
}

func renderPlanTable(plans []m.MutantTestPlan) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"Mutant", "Location", "Mutator", "Decision", "Tests", "Timeout"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_RIGHT,
	})

	runs := 0

	for _, plan := range plans {
		decision := string(plan.Mutant.Status)
		tests, timeout := "", ""

		if plan.Kind == m.PlanRun {
			runs++
			decision = "run"

			if plan.Mutant.Static {
				decision = "run (static)"
			}

			tests = "all"
			if plan.RunOptions.TestFilter != nil {
				tests = strconv.Itoa(len(plan.RunOptions.TestFilter))
			}

			timeout = plan.RunOptions.Timeout.String()
		}

		table.Append([]string{plan.Mutant.ID, mutantLocation(plan.Mutant), plan.Mutant.MutatorName, decision, tests, timeout})
	}

	table.SetFooter([]string{
		fmt.Sprintf("Total %d", len(plans)),
		"", "",
		fmt.Sprintf("%d to run", runs),
		"", "",
	})

	table.Render()

	return tableBuffer.String()
}

func renderReportTable(report *m.Report) string {
	var tableBuffer bytes.Buffer

	table := tablewriter.NewWriter(&tableBuffer)
	table.SetHeader([]string{"File", "Mutants", "Killed", "Survived", "No Coverage", "Timeout", "Errors", "Ignored", "Score"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_RIGHT,
	})

	names := make([]string, 0, len(report.Files))
	for name := range report.Files {
		names = append(names, name)
	}

	sort.Strings(names)

	all := statusCounts{}

	for _, name := range names {
		counts := statusCounts{}

		for _, mt := range report.Files[name].Mutants {
			counts.add(mt.Status)
			all.add(mt.Status)
		}

		table.Append(countsRow(name, counts))
	}

	table.SetFooter(countsRow(fmt.Sprintf("Total Files %d", len(names)), all))
	table.Render()

	return tableBuffer.String()
}

func countsRow(label string, counts statusCounts) []string {
	return []string{
		label,
		strconv.Itoa(counts.total()),
		strconv.Itoa(counts[m.Killed]),
		strconv.Itoa(counts[m.Survived]),
		strconv.Itoa(counts[m.NoCoverage]),
		strconv.Itoa(counts[m.Timeout]),
		strconv.Itoa(counts.errors()),
		strconv.Itoa(counts[m.Ignored]),
		counts.score(),
	}
}
