// Package monitor is a terminal viewer for the telemetry of a running program.
package monitor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/sweeney/teleop/internal/telemetry"
)

const historyCapacity = 120

var (
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(22)
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	plotStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 2)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true).MarginTop(1)
)

// FrameMsg carries one received telemetry frame.
type FrameMsg telemetry.Frame

type closedMsg struct{}

// Model shows the latest frame and plots one numeric key over time.
type Model struct {
	frames   <-chan telemetry.Frame
	frame    telemetry.Frame
	received int
	closed   bool

	plot    string // "SECTION/Key"
	history []float64
}

// New creates a model reading from frames. plot selects the plotted key as
// "SECTION/Key"; empty plots the first numeric key seen.
func New(frames <-chan telemetry.Frame, plot string) Model {
	return Model{frames: frames, plot: plot}
}

func (m Model) Init() tea.Cmd {
	return wait(m.frames)
}

func wait(frames <-chan telemetry.Frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return closedMsg{}
		}
		return FrameMsg(f)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.cyclePlot()
		}
	case FrameMsg:
		m.frame = telemetry.Frame(msg)
		m.received++
		if m.plot == "" {
			if keys := numericKeys(m.frame); len(keys) > 0 {
				m.plot = keys[0]
			}
		}
		if v, ok := m.value(m.plot); ok {
			m.history = append(m.history, v)
			if len(m.history) > historyCapacity {
				m.history = m.history[len(m.history)-historyCapacity:]
			}
		}
		return m, wait(m.frames)
	case closedMsg:
		m.closed = true
	}
	return m, nil
}

func (m *Model) cyclePlot() {
	keys := numericKeys(m.frame)
	if len(keys) == 0 {
		return
	}
	next := keys[0]
	for i, k := range keys {
		if k == m.plot {
			next = keys[(i+1)%len(keys)]
			break
		}
	}
	m.plot = next
	m.history = nil
}

func (m Model) value(plot string) (float64, bool) {
	section, key, ok := strings.Cut(plot, "/")
	if !ok {
		return 0, false
	}
	s, ok := m.frame.Get(section, key)
	if !ok {
		return 0, false
	}
	return parseNumber(s)
}

// parseNumber accepts plain numbers and seconds written as "1.25s".
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "s"), 64)
	return v, err == nil
}

func numericKeys(f telemetry.Frame) []string {
	var keys []string
	for _, l := range f.Lines {
		if _, ok := parseNumber(l.Value); ok {
			keys = append(keys, l.Section+"/"+l.Key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m Model) View() string {
	var s strings.Builder
	title := "TELEOP MONITOR"
	if m.frame.Program != "" {
		title += "  " + strings.ToUpper(m.frame.Program)
	}
	s.WriteString(headerStyle.Render(title) + "\n")

	if m.received == 0 {
		s.WriteString(valueStyle.Render("waiting for telemetry...") + "\n")
	}

	var body strings.Builder
	for _, section := range m.frame.Sections() {
		body.WriteString(sectionStyle.Render(section) + "\n")
		for _, l := range m.frame.Lines {
			if l.Section != section {
				continue
			}
			body.WriteString(labelStyle.Render(l.Key) + valueStyle.Render(l.Value) + "\n")
		}
	}
	if body.Len() > 0 {
		s.WriteString(panelStyle.Render(strings.TrimRight(body.String(), "\n")) + "\n")
	}

	if len(m.history) > 1 {
		chart := asciigraph.Plot(m.history, asciigraph.Height(8), asciigraph.Width(60), asciigraph.Caption(m.plot))
		s.WriteString(plotStyle.Render(chart) + "\n")
	}

	status := fmt.Sprintf("%d frames", m.received)
	if m.closed {
		status += "  (stream closed)"
	}
	s.WriteString(helpStyle.Render(status+"  tab: next plot  q: quit") + "\n")
	return s.String()
}
