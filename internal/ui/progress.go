package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"importwaterfall/internal/sample"
)

type runItem struct {
	status sample.Status
	wall   time.Duration
}

type samplingModel struct {
	title   string
	events  <-chan sample.Event
	spinner spinner.Model
	prog    progress.Model
	runs    []runItem
	best    int
	width   int
	done    bool
	failed  bool
	stopped bool
}

type eventMsg sample.Event
type doneMsg struct{}

// NewSamplingModel returns a Bubble Tea model that renders the progress of
// a best-of-N sampling session fed by events.
func NewSamplingModel(title string, total int, events <-chan sample.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	runs := make([]runItem, max(total, 0))
	for i := range runs {
		runs[i].status = "queued"
	}
	return &samplingModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		runs:    runs,
		best:    -1,
		width:   80,
	}
}

// Interrupted reports whether the user quit the sampling view before the
// session finished.
func Interrupted(model tea.Model) bool {
	m, ok := model.(*samplingModel)
	return ok && m.stopped
}

func (m *samplingModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *samplingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(sample.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.stopped = true
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

func (m *samplingModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := truncate(m.title, m.width-4)
	switch {
	case m.failed:
		header = "failed: " + header
	case m.done:
		header = "done: " + header
	default:
		header = m.spinner.View() + " " + header
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")
	for i, run := range m.runs {
		label := string(run.status)
		if run.status == sample.StatusDone {
			label = run.wall.Round(100 * time.Microsecond).String()
		}
		style := styleStatus(run.status)
		if i == m.best {
			style = style.Bold(true)
			label += " (best)"
		}
		fmt.Fprintf(&b, "  run %2d  %s\n", i+1, style.Render(label))
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

func (m *samplingModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *samplingModel) applyEvent(ev sample.Event) tea.Cmd {
	idx := ev.Run - 1
	if idx < 0 {
		return nil
	}
	for len(m.runs) <= idx {
		m.runs = append(m.runs, runItem{status: "queued"})
	}
	m.runs[idx].status = ev.Status
	switch ev.Status {
	case sample.StatusDone:
		m.runs[idx].wall = ev.Wall
		if m.best < 0 || ev.Wall < m.runs[m.best].wall {
			m.best = idx
		}
	case sample.StatusError:
		m.failed = true
	}

	finished := 0
	for _, run := range m.runs {
		if run.status == sample.StatusDone {
			finished++
		}
	}
	return m.prog.SetPercent(float64(finished) / float64(len(m.runs)))
}

func styleStatus(status sample.Status) lipgloss.Style {
	switch status {
	case sample.StatusDone:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case sample.StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case sample.StatusRunning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
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
	return runewidth.Truncate(value, width, "...")
}
