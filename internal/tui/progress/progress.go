// Package progress renders the indexing progress display for
// "buildli index".
package progress

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FileMsg reports one processed file
type FileMsg struct {
	Done  int
	Total int
	Path  string
}

// DoneMsg ends the display. Err is the indexing error, if any.
type DoneMsg struct {
	Err error
}

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))
	countStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	pathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// Model is the bubbletea model for the indexing progress bar
type Model struct {
	bar     progress.Model
	spinner spinner.Model

	width    int
	done     int
	total    int
	path     string
	err      error
	quitting bool
}

// New creates a progress model
func New() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		bar:     progress.New(progress.WithDefaultGradient()),
		spinner: sp,
		width:   80,
	}
}

// Init starts the spinner
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(msg.Width-20, 50)

	case FileMsg:
		m.done = msg.Done
		m.total = msg.Total
		m.path = msg.Path
		if m.total > 0 {
			return m, m.bar.SetPercent(float64(m.done) / float64(m.total))
		}

	case DoneMsg:
		m.err = msg.Err
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// View renders the progress line
func (m Model) View() string {
	if m.quitting {
		if m.err != nil {
			return errorStyle.Render("indexing failed: "+m.err.Error()) + "\n"
		}
		return ""
	}

	var s strings.Builder
	s.WriteString(m.spinner.View())
	s.WriteString("Indexing ")
	s.WriteString(m.bar.View())
	s.WriteString(" ")
	s.WriteString(countStyle.Render(fmt.Sprintf("%d/%d", m.done, m.total)))
	s.WriteString("\n")
	if m.path != "" {
		s.WriteString("  ")
		s.WriteString(pathStyle.Render(truncate(m.path, m.width-4)))
		s.WriteString("\n")
	}
	return s.String()
}

// Err returns the indexing error reported via DoneMsg
func (m Model) Err() error {
	return m.err
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n+3:]
}
