package controller

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

func update(t *testing.T, model tea.Model, msgs ...tea.Msg) runModel {
	t.Helper()

	for _, msg := range msgs {
		model, _ = model.Update(msg)
	}

	rm, ok := model.(runModel)
	require.True(t, ok)

	return rm
}

func TestRunModel_Progress(t *testing.T) {
	diff, err := mutantDiff(addMutant(m.Survived), []byte(calcSource))
	require.NoError(t, err)

	rm := update(t, newRunModel(),
		RunInfo{MutantsFile: "mutants.json", ShardIndex: 0, ShardCount: 2},
		dryRunMsg{tests: 4},
		upcomingMsg{total: 4, runs: 3},
		mutantMsg{mutant: addMutant(m.Killed)},
		mutantMsg{mutant: addMutant(m.Survived), diff: diff},
	)

	assert.Equal(t, 2, rm.tested)
	assert.InDelta(t, 0.5, rm.percent(), 1e-9)
	assert.Equal(t, 1, rm.counts[m.Killed])
	assert.Equal(t, 1, rm.counts[m.Survived])

	view := rm.View()
	assert.Contains(t, view, "mutants.json")
	assert.Contains(t, view, "Shard 0/2")
	assert.Contains(t, view, "Initial test run: 4 test(s), 3 mutant(s) to run, 1 known without running")
	assert.Contains(t, view, "2/4")
	assert.Contains(t, view, "calc.go:4:11")
	assert.Contains(t, view, "return a - b")
	assert.NotContains(t, view, "Press q to quit")

	rm = update(t, rm, scoreMsg{score: 0.5})
	view = rm.View()
	assert.Contains(t, view, "50.00%")
	assert.Contains(t, view, "Press q to quit")
}

func TestRunModel_BeforeDryRun(t *testing.T) {
	assert.Contains(t, newRunModel().View(), "Running initial test run...")
	assert.Zero(t, newRunModel().percent())
}

func TestRunModel_KeepsRecentResults(t *testing.T) {
	var msgs []tea.Msg

	for i := range maxRecentResults + 3 {
		mt := addMutant(m.Killed)
		mt.ID = fmt.Sprint(i)
		msgs = append(msgs, mutantMsg{mutant: mt})
	}

	rm := update(t, newRunModel(), msgs...)

	assert.Len(t, rm.recent, maxRecentResults)
	assert.Equal(t, maxRecentResults+3, rm.tested)
}

func TestRunModel_Quit(t *testing.T) {
	model, cmd := newRunModel().Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, model.View())
}

func TestPagerModel_Pagination(t *testing.T) {
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %02d", i)
	}

	pm := newPagerModel("title", strings.Join(lines, "\n"))
	assert.False(t, pm.needsPagination(), "unknown terminal height prints everything")

	model, _ := pm.Update(tea.WindowSizeMsg{Width: 80, Height: 14})
	pm = model.(pagerModel)

	require.True(t, pm.needsPagination())
	assert.Equal(t, 10, pm.itemsPerPage())
	assert.Equal(t, 20, pm.maxOffset())

	model, _ = pm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	pm = model.(pagerModel)
	assert.Equal(t, 1, pm.offset)
	assert.Contains(t, pm.View(), "line 01")
	assert.NotContains(t, pm.View(), "line 00")

	model, _ = pm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("G")})
	pm = model.(pagerModel)
	assert.Equal(t, 20, pm.offset)
	assert.Contains(t, pm.View(), "lines 21-30 of 30")

	model, _ = pm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	pm = model.(pagerModel)
	assert.Equal(t, 20, pm.offset, "paging stops at the end")

	model, _ = pm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("g")})
	pm = model.(pagerModel)
	assert.Equal(t, 0, pm.offset)

	model, _ = pm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	pm = model.(pagerModel)
	assert.Equal(t, 0, pm.offset)
}

func TestTUI_PrintsShortTables(t *testing.T) {
	var buf bytes.Buffer

	tui := NewTUI(&buf)
	ctx := context.Background()

	require.NoError(t, tui.Start(ctx, WithPlanMode()))

	plans := []m.MutantTestPlan{{Kind: m.PlanEarlyResult, Mutant: addMutant(m.NoCoverage)}}
	require.NoError(t, tui.DisplayPlan(ctx, plans))

	tui.DisplayMutationScore(ctx, 0.25)
	tui.Wait(ctx)
	tui.Close(ctx)

	out := buf.String()
	assert.Contains(t, out, "mutiny - Test Plan")
	assert.Contains(t, out, "calc.go:4:11")
	assert.Contains(t, out, "25.00%")
}

func TestTUI_DisplayReport(t *testing.T) {
	var buf bytes.Buffer

	tui := NewTUI(&buf)

	report := m.NewReport(nil, []m.Mutant{addMutant(m.Killed)}, nil)
	require.NoError(t, tui.DisplayReport(context.Background(), report))
	require.Error(t, tui.DisplayReport(context.Background(), nil))

	assert.Contains(t, buf.String(), "mutiny - Mutation Report")
	assert.Contains(t, buf.String(), "100.00%")
}

func TestTUI_EventsWithoutProgramAreDropped(t *testing.T) {
	var buf bytes.Buffer

	tui := NewTUI(&buf)
	ctx := context.Background()

	tui.DisplayRunInfo(ctx, RunInfo{})
	tui.DisplayDryRun(ctx, m.DryRunResult{})
	tui.DisplayUpcomingTests(ctx, 1, 1)
	tui.DisplayMutantResult(ctx, addMutant(m.Survived), []byte(calcSource))

	assert.Empty(t, buf.String())
}

func TestNewUI(t *testing.T) {
	assert.IsType(t, &SimpleUI{}, NewUI(nil, false))
}
