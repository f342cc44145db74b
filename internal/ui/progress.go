// Package ui renders interactive terminal views for long-running commands.
package ui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"chtl/internal/build"
)

type progressModel struct {
	title    string
	events   <-chan build.Event
	spinner  spinner.Model
	prog     progress.Model
	items    []fileItem
	index    map[string]int
	finished int
	failed   int
	width    int
	done     bool
}

type fileItem struct {
	path    string
	display string
	status  build.Status
	detail  string
}

type eventMsg build.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders compile progress
// for files. It quits when events is closed.
func NewProgressModel(title, baseDir string, files []string, events <-chan build.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]fileItem, 0, len(files))
	index := make(map[string]int, len(files))
	for i, file := range files {
		items = append(items, fileItem{path: file, display: displayPath(baseDir, file), status: build.StatusQueued})
		index[file] = i
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
		cmd := m.applyEvent(build.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
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
	header := fmt.Sprintf("%s %d/%d", m.title, m.finished, len(m.items))
	if m.failed > 0 {
		header = fmt.Sprintf("%s, %d failed", header, m.failed)
	}
	if m.done {
		header = "done: " + header
	} else {
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 12
	nameWidth := m.width - statusWidth - 4
	if nameWidth < 20 {
		nameWidth = 20
	}

	for _, item := range m.items {
		name := item.display
		if item.detail != "" {
			name += " (" + item.detail + ")"
		}
		status := styleStatus(item.status).Render(fmt.Sprintf("%12s", item.status))
		fmt.Fprintf(&b, "  %s %s\n", status, truncate(name, nameWidth))
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
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

func (m *progressModel) applyEvent(ev build.Event) tea.Cmd {
	idx, ok := m.index[ev.File]
	if !ok {
		return nil
	}
	item := &m.items[idx]
	wasFinal := isFinal(item.status)
	item.status = ev.Status
	item.detail = ""
	if ev.Err != nil {
		item.detail = ev.Err.Error()
	} else if ev.Elapsed > 0 {
		item.detail = ev.Elapsed.Round(time.Millisecond).String()
	}
	if !wasFinal && isFinal(ev.Status) {
		m.finished++
		if ev.Status == build.StatusError {
			m.failed++
		}
	}
	return m.prog.SetPercent(float64(m.finished) / float64(len(m.items)))
}

func isFinal(status build.Status) bool {
	switch status {
	case build.StatusDone, build.StatusError, build.StatusSkipped:
		return true
	default:
		return false
	}
}

func styleStatus(status build.Status) lipgloss.Style {
	switch status {
	case build.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case build.StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case build.StatusWorking:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	case build.StatusSkipped:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func displayPath(baseDir, path string) string {
	if baseDir == "" {
		return path
	}
	if rel, err := filepath.Rel(baseDir, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
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
