package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/stainfetch/ledger"
)

// pollInterval is how often the view samples the orchestrator's
// progress counter.
const pollInterval = 100 * time.Millisecond

// ProgressFunc samples the run: settled tasks and the total.
type ProgressFunc func() (settled, total int64)

// tickMsg drives the polling loop.
type tickMsg time.Time

// DoneMsg ends the view. The fetch command sends it after the run
// settles, carrying the finalized summary for the closing frame.
type DoneMsg struct {
	Summary *ledger.Summary
}

// keyMap defines the key bindings for the progress view.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ProgressModel is a Bubble Tea model showing live download progress.
// It only reads the orchestrator's counters; quitting the view never
// stops the run, the surrounding command handles interrupts.
type ProgressModel struct {
	poll     ProgressFunc
	bar      progress.Model
	settled  int64
	total    int64
	summary  *ledger.Summary
	width    int
	quitting bool
}

// NewProgressModel creates a progress model sampling poll.
func NewProgressModel(poll ProgressFunc) ProgressModel {
	bar := progress.New(progress.WithDefaultGradient())
	return ProgressModel{poll: poll, bar: bar}
}

// Init implements tea.Model.
func (m ProgressModel) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = msg.Width - 8
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.settled, m.total = m.poll()
		return m, tick()

	case DoneMsg:
		m.settled, m.total = m.poll()
		m.summary = msg.Summary
		return m, tea.Quit
	}

	return m, nil
}

// View implements tea.Model.
func (m ProgressModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Downloading channel images"))
	b.WriteString("\n\n")

	ratio := 0.0
	if m.total > 0 {
		ratio = float64(m.settled) / float64(m.total)
	}
	b.WriteString(m.bar.ViewAs(ratio))
	b.WriteString(fmt.Sprintf("\n\n%d / %d tasks settled\n", m.settled, m.total))

	if m.summary != nil {
		b.WriteString("\n")
		b.WriteString(RenderSummary(m.summary))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("Press q or Ctrl+C to quit"))
	return b.String()
}

// Run drives the progress view until done carries a value or the user
// quits. The run itself executes elsewhere; done delivers its summary.
func Run(poll ProgressFunc, done <-chan DoneMsg) error {
	p := tea.NewProgram(NewProgressModel(poll))
	go func() {
		msg, ok := <-done
		if ok {
			p.Send(msg)
		}
	}()
	_, err := p.Run()
	return err
}

// RenderSummary renders the closing stat boxes for a finalized run.
// The plain (non-TUI) path prints the same figures through the
// renderer instead.
func RenderSummary(summary *ledger.Summary) string {
	boxes := []string{
		renderStatBox("Succeeded", summary.Succeeded, successColor),
		renderStatBox("Skipped", summary.SkippedExisting, warningColor),
		renderStatBox("Synthesized", summary.Synthesized, warningColor),
		renderStatBox("Failed", summary.Failed, errorColor),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func renderStatBox(label string, value int, color lipgloss.Color) string {
	box := StatBoxStyle.BorderForeground(color)
	content := StatLabelStyle.Render(label) + "\n" +
		StatValueStyle.Render(fmt.Sprintf("%d", value))
	return box.Render(content)
}
