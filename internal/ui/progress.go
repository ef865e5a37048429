// Package ui renders the live replay view in a terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"kernelfuzz/internal/replay"
)

// maxRows bounds the per-input list; beyond it only findings and the tail
// of recent inputs are shown.
const maxRows = 20

type progressModel struct {
	title    string
	events   <-chan replay.Outcome
	spinner  spinner.Model
	prog     progress.Model
	items    []inputItem
	index    map[string]int
	recent   []int
	finished int
	summary  []replay.Outcome
	width    int
	done     bool
}

type inputItem struct {
	path   string
	status string
	note   string
}

type eventMsg replay.Outcome
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that follows a replay. The
// model quits once events is closed.
func NewProgressModel(title string, paths []string, events <-chan replay.Outcome) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]inputItem, 0, len(paths))
	index := make(map[string]int, len(paths))
	for i, p := range paths {
		items = append(items, inputItem{path: p, status: "queued"})
		index[p] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyOutcome(replay.Outcome(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		progressModel, cmd := m.prog.Update(msg)
		m.prog = progressModel.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (%d/%d)", m.title, m.finished, len(m.items))
	if m.done {
		header = fmt.Sprintf("done: %s", header)
	} else {
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 14
	nameWidth := m.width - statusWidth - 4
	if nameWidth < 20 {
		nameWidth = 20
	}
	for _, idx := range m.visibleRows() {
		item := m.items[idx]
		statusStyled := styleStatus(item.status).Render(fmt.Sprintf("%14s", item.status))
		line := fmt.Sprintf("  %s %s", statusStyled, truncate(item.path, nameWidth))
		if item.note != "" {
			line += "  " + truncate(item.note, max(m.width-runewidth.StringWidth(line)-2, 0))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	b.WriteString(replay.Summarize(m.summary).String())
	b.WriteString("\n")
	return b.String()
}

// visibleRows lists every row for small replays; otherwise findings first,
// then the most recent inputs.
func (m *progressModel) visibleRows() []int {
	if len(m.items) <= maxRows {
		rows := make([]int, len(m.items))
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	rows := make([]int, 0, maxRows)
	shown := make(map[int]bool, maxRows)
	for i, item := range m.items {
		if len(rows) == maxRows {
			return rows
		}
		if isFinding(item.status) {
			rows = append(rows, i)
			shown[i] = true
		}
	}
	for j := len(m.recent) - 1; j >= 0 && len(rows) < maxRows; j-- {
		if !shown[m.recent[j]] {
			rows = append(rows, m.recent[j])
			shown[m.recent[j]] = true
		}
	}
	return rows
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyOutcome(out replay.Outcome) tea.Cmd {
	idx, ok := m.index[out.Path]
	if !ok {
		return nil
	}
	if m.items[idx].status == "queued" {
		m.finished++
	}
	m.items[idx].status = out.Verdict.String()
	if out.Cached {
		m.items[idx].status += "*"
	}
	if out.Verdict.Finding() {
		m.items[idx].note = firstLine(out.Message)
	}
	m.recent = append(m.recent, idx)
	if len(m.recent) > maxRows {
		m.recent = m.recent[1:]
	}
	m.summary = append(m.summary, out)
	return m.prog.SetPercent(float64(m.finished) / float64(len(m.items)))
}

func isFinding(status string) bool {
	status = strings.TrimSuffix(status, "*")
	return status == replay.VerdictUnsound.String() ||
		status == replay.VerdictKernelPanic.String() ||
		status == replay.VerdictDecoderPanic.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func styleStatus(status string) lipgloss.Style {
	switch strings.TrimSuffix(status, "*") {
	case "rejected":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case "admitted":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	case "queued":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	default:
		// находки
		return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width-3, "...")
}
