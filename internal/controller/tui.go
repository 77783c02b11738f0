package controller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	m "mutiny.dev/pkg/mutiny/internal/model"
)

const (
	maxRecentResults = 8
	maxProgressWidth = 60
	defaultPageSize  = 10
	pagerChromeLines = 4
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	detectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	missedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// TUI implements UI using Bubble Tea for interactive display.
type TUI struct {
	output io.Writer

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

// Start launches the progress view in test mode. Other modes print on demand.
func (p *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if newStartConfig(options).mode != ModeTest {
		return nil
	}

	program := tea.NewProgram(newRunModel(), tea.WithOutput(p.output), tea.WithContext(ctx))
	done := make(chan struct{})

	p.mu.Lock()
	p.program = program
	p.done = done
	p.mu.Unlock()

	go func() {
		defer close(done)

		if _, err := program.Run(); err != nil && ctx.Err() == nil {
			slog.Warn("Progress view stopped", "error", err)
		}
	}()

	return nil
}

// Close stops the progress view and restores the terminal.
func (p *TUI) Close(_ context.Context) {
	program, done := p.running()
	if program == nil {
		return
	}

	program.Quit()
	<-done

	p.mu.Lock()
	p.program = nil
	p.done = nil
	p.mu.Unlock()
}

// Wait blocks until the user closes the progress view.
func (p *TUI) Wait(ctx context.Context) {
	_, done := p.running()
	if done == nil {
		return
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (p *TUI) running() (*tea.Program, chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.program, p.done
}

func (p *TUI) send(msg tea.Msg) {
	if program, _ := p.running(); program != nil {
		program.Send(msg)
	}
}

// DisplayRunInfo implements UI.
func (p *TUI) DisplayRunInfo(_ context.Context, info RunInfo) {
	p.send(info)
}

// DisplayDryRun implements UI.
func (p *TUI) DisplayDryRun(_ context.Context, result m.DryRunResult) {
	p.send(dryRunMsg{tests: len(result.Tests)})
}

// DisplayUpcomingTests implements UI.
func (p *TUI) DisplayUpcomingTests(_ context.Context, total, runs int) {
	p.send(upcomingMsg{total: total, runs: runs})
}

// DisplayMutantResult implements UI.
func (p *TUI) DisplayMutantResult(_ context.Context, mt m.Mutant, original []byte) {
	msg := mutantMsg{mutant: mt}

	if showsDiff(mt.Status) {
		diff, err := mutantDiff(mt, original)
		if err != nil {
			slog.Warn("Failed to render mutant diff", "mutant", mt.ID, "error", err)
		}

		msg.diff = diff
	}

	p.send(msg)
}

// DisplayMutationScore implements UI.
func (p *TUI) DisplayMutationScore(ctx context.Context, score float64) {
	if program, _ := p.running(); program != nil {
		program.Send(scoreMsg{score: score})
		return
	}

	if err := ctx.Err(); err != nil {
		return
	}

	_, _ = fmt.Fprintf(p.output, "%s %s\n", titleStyle.Render("Mutation score:"), scoreStyle(score).Render(fmt.Sprintf("%.2f%%", score*100)))
}

// DisplayPlan shows the plan table, paginated when it does not fit the terminal.
func (p *TUI) DisplayPlan(ctx context.Context, plans []m.MutantTestPlan) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.page("mutiny - Test Plan", renderPlanTable(plans))
}

// DisplayReport shows the report table, paginated when it does not fit the terminal.
func (p *TUI) DisplayReport(ctx context.Context, report *m.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if report == nil {
		return fmt.Errorf("display report: nil report")
	}

	return p.page("mutiny - Mutation Report", renderReportTable(report))
}

func (p *TUI) page(title, content string) error {
	model := newPagerModel(title, content)

	if f, ok := p.output.(*os.File); ok {
		width, height, err := term.GetSize(int(f.Fd()))
		if err == nil {
			model.height = height
			model.width = width
		}
	}

	// If the content is short, just print and exit
	if !model.needsPagination() {
		_, err := fmt.Fprint(p.output, model.View())
		return err
	}

	program := tea.NewProgram(model, tea.WithOutput(p.output), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return err
	}

	return nil
}

func scoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 0.8:
		return detectedStyle
	case score >= 0.5:
		return warnStyle
	default:
		return missedStyle
	}
}

type dryRunMsg struct {
	tests int
}

type upcomingMsg struct {
	total int
	runs  int
}

type mutantMsg struct {
	mutant m.Mutant
	diff   string
}

type scoreMsg struct {
	score float64
}

type resultLine struct {
	text string
	diff string
}

// runModel shows the progress of a mutation run.
type runModel struct {
	info     RunInfo
	tests    int
	dryRun   bool
	total    int
	runs     int
	tested   int
	counts   statusCounts
	recent   []resultLine
	score    *float64
	progress progress.Model
	width    int
	quitting bool
}

func newRunModel() runModel {
	return runModel{
		counts:   statusCounts{},
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxProgressWidth)),
	}
}

func (rm runModel) Init() tea.Cmd {
	return nil
}

func (rm runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		rm.width = msg.Width
		rm.progress.Width = max(10, min(maxProgressWidth, msg.Width-10))

		return rm, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			rm.quitting = true
			return rm, tea.Quit
		}

		return rm, nil

	case RunInfo:
		rm.info = msg
	case dryRunMsg:
		rm.dryRun = true
		rm.tests = msg.tests
	case upcomingMsg:
		rm.total = msg.total
		rm.runs = msg.runs
	case mutantMsg:
		rm.tested++
		rm.counts.add(msg.mutant.Status)

		rm.recent = append(rm.recent, resultLine{
			text: fmt.Sprintf("%s %s (%s)", statusLabel(msg.mutant.Status), mutantLocation(msg.mutant), msg.mutant.MutatorName),
			diff: msg.diff,
		})
		if len(rm.recent) > maxRecentResults {
			rm.recent = rm.recent[len(rm.recent)-maxRecentResults:]
		}
	case scoreMsg:
		score := msg.score
		rm.score = &score
	}

	return rm, nil
}

func (rm runModel) percent() float64 {
	if rm.total == 0 {
		return 0
	}

	return float64(rm.tested) / float64(rm.total)
}

func (rm runModel) View() string {
	if rm.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("mutiny - Mutation Testing"))
	b.WriteString("\n")

	if rm.info.MutantsFile != "" {
		line := fmt.Sprintf("Mutants: %s", rm.info.MutantsFile)
		if rm.info.ShardCount > 1 {
			line += fmt.Sprintf("  Shard %d/%d", rm.info.ShardIndex, rm.info.ShardCount)
		}

		b.WriteString(mutedStyle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")

	if !rm.dryRun {
		b.WriteString("Running initial test run...\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Initial test run: %d test(s), %d mutant(s) to run, %d known without running\n\n", rm.tests, rm.runs, rm.total-rm.runs)
	fmt.Fprintf(&b, "%s %d/%d\n\n", rm.progress.ViewAs(rm.percent()), rm.tested, rm.total)

	fmt.Fprintf(&b, "%s %d  %s %d  %s %d  %s %d  %s %d\n\n",
		detectedStyle.Render("killed"), rm.counts[m.Killed],
		detectedStyle.Render("timeout"), rm.counts[m.Timeout],
		missedStyle.Render("survived"), rm.counts[m.Survived],
		missedStyle.Render("no coverage"), rm.counts[m.NoCoverage],
		warnStyle.Render("errors"), rm.counts.errors(),
	)

	for _, line := range rm.recent {
		b.WriteString(line.text)
		b.WriteString("\n")
	}

	if last := rm.lastDiff(); last != "" {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(last))
		b.WriteString("\n")
	}

	if rm.score != nil {
		fmt.Fprintf(&b, "\n%s %s\n", titleStyle.Render("Mutation score:"), scoreStyle(*rm.score).Render(fmt.Sprintf("%.2f%%", *rm.score*100)))
		b.WriteString(mutedStyle.Render("Press q to quit"))
		b.WriteString("\n")
	}

	return b.String()
}

func (rm runModel) lastDiff() string {
	for i := len(rm.recent) - 1; i >= 0; i-- {
		if rm.recent[i].diff != "" {
			return rm.recent[i].diff
		}
	}

	return ""
}

func statusLabel(status m.MutantStatus) string {
	label := fmt.Sprintf("%-12s", status)

	switch {
	case status.Detected():
		return detectedStyle.Render(label)
	case status.Undetected():
		return missedStyle.Render(label)
	case status == m.Ignored:
		return mutedStyle.Render(label)
	default:
		return warnStyle.Render(label)
	}
}

// pagerModel shows long tables page by page.
type pagerModel struct {
	title    string
	lines    []string
	offset   int
	height   int
	width    int
	quitting bool
}

func newPagerModel(title, content string) pagerModel {
	return pagerModel{
		title: title,
		lines: strings.Split(strings.TrimRight(content, "\n"), "\n"),
	}
}

func (pm pagerModel) Init() tea.Cmd {
	return nil
}

func (pm pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		pm.height = msg.Height
		pm.width = msg.Width
		pm.offset = min(pm.offset, pm.maxOffset())

		return pm, nil

	case tea.KeyMsg:
		return pm.handleKeyPress(msg)
	}

	return pm, nil
}

//nolint:cyclop // Key handling requires multiple cases for UI navigation
func (pm pagerModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		pm.quitting = true
		return pm, tea.Quit

	case "down", "j":
		pm.offset = min(pm.offset+1, pm.maxOffset())

	case "up", "k":
		pm.offset = max(pm.offset-1, 0)

	case "g", "home":
		pm.offset = 0

	case "G", "end":
		pm.offset = pm.maxOffset()

	case "d", "pgdown":
		pm.offset = min(pm.offset+pm.itemsPerPage(), pm.maxOffset())

	case "u", "pgup":
		pm.offset = max(pm.offset-pm.itemsPerPage(), 0)
	}

	return pm, nil
}

// itemsPerPage calculates how many lines fit on screen.
func (pm pagerModel) itemsPerPage() int {
	if pm.height == 0 {
		return defaultPageSize
	}

	return max(1, pm.height-pagerChromeLines)
}

func (pm pagerModel) maxOffset() int {
	return max(0, len(pm.lines)-pm.itemsPerPage())
}

func (pm pagerModel) needsPagination() bool {
	if pm.height == 0 {
		return false
	}

	return len(pm.lines) > pm.itemsPerPage()
}

func (pm pagerModel) View() string {
	if pm.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render(pm.title))
	b.WriteString("\n\n")

	lines := pm.lines
	if pm.needsPagination() {
		end := min(pm.offset+pm.itemsPerPage(), len(lines))
		lines = lines[pm.offset:end]
	}

	for _, line := range lines {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if pm.needsPagination() {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("lines %d-%d of %d  j/k scroll  d/u page  q quit",
			pm.offset+1, min(pm.offset+pm.itemsPerPage(), len(pm.lines)), len(pm.lines))))
		b.WriteString("\n")
	}

	return b.String()
}
