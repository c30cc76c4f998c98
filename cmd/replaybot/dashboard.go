package main

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/replaybot/pkg/teleop"
)

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	statusHeight = 3 // status lines
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border

	// armScale brings the arm angle into the chart's power range.
	armScale = 100
)

type series struct {
	name  string
	color string
}

var chartSeries = []series{
	{"left", "46"},  // green
	{"right", "51"}, // cyan
	{"arm", "208"},  // orange
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type dashboardModel struct {
	title  string
	ctrl   *teleop.Controller
	keys   *keyboard
	logCh  <-chan string
	done   <-chan error
	cancel context.CancelFunc

	chart    *streamlinechart.Model
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	state    teleop.State
	stopping bool
	finished bool
	err      error
}

func (m *dashboardModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string
type doneMsg struct{ err error }

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		return logMsg(<-ch)
	}
}

func waitForDone(done <-chan error) tea.Cmd {
	return func() tea.Msg {
		return doneMsg{err: <-done}
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 16 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - statusHeight - footerHeight - borderSize
	if height < 8 {
		height = 8
	}
	return width, height
}

func (m *dashboardModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func newDashboardModel(title string, ctrl *teleop.Controller, s *session, cancel context.CancelFunc, done <-chan error) dashboardModel {
	chart := streamlinechart.New(80, 16,
		streamlinechart.WithYRange(-130, 130),
	)
	for _, sr := range chartSeries {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(sr.color))
		chart.SetDataSetStyles(sr.name, runes.ThinLineStyle, style)
	}

	return dashboardModel{
		title:  title,
		ctrl:   ctrl,
		keys:   s.keys,
		logCh:  s.logs,
		done:   done,
		cancel: cancel,
		chart:  &chart,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.logCh),
		waitForDone(m.done),
	)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			// Stopping lets the mode finish cleanly (a recording is still saved).
			m.stopping = true
			m.cancel()
			return m, nil
		}
		if m.keys != nil {
			m.keys.Press(msg.String())
		}

	case stateMsg:
		m.state = teleop.State(msg)
		cmd := m.state.Commands
		m.chart.PushDataSet("left", float64(cmd.LeftPower))
		m.chart.PushDataSet("right", float64(cmd.RightPower))
		m.chart.PushDataSet("arm", float64(m.state.Sensors.ArmAngle)/armScale)
		m.chart.DrawAll()
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.logCh)

	case doneMsg:
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.finished {
		return ""
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("replaybot " + m.title))
	sb.WriteString(fmt.Sprintf(" - %s - %s", rate(m.ctrl.Period()), m.progress()))
	if m.stopping {
		sb.WriteString(statusStyle.Render("  stopping..."))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Status
	sb.WriteString(m.renderStatus())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render(m.help())
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m dashboardModel) progress() string {
	st := m.state
	if st.Total > 0 {
		return fmt.Sprintf("%s %d/%d", st.Phase, st.Tick+1, st.Total)
	}
	return fmt.Sprintf("%s %d", st.Phase, st.Tick)
}

func (m dashboardModel) renderStatus() string {
	cmd := m.state.Commands
	lines := []string{
		fmt.Sprintf("left %s right %s", valueStyle.Render(fmt.Sprint(cmd.LeftPower)), valueStyle.Render(fmt.Sprint(cmd.RightPower))),
		fmt.Sprintf("rotational %s", valueStyle.Render(fmt.Sprint(m.state.Sensors.ArmAngle))),
		statusStyle.Render(fmt.Sprintf("buttons %s  conveyor %s  clamp %s  arm %s",
			m.state.Frame.Buttons, cmd.Conveyor, cmd.Clamp, cmd.Arm)),
	}
	return strings.Join(lines, "\n")
}

func (m dashboardModel) help() string {
	if m.keys != nil {
		return "Arrows drive, a b x y r l L R press buttons, space releases, q stops"
	}
	return "Press 'q' to stop"
}

func renderLegend() string {
	var items []string
	for _, sr := range chartSeries {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(sr.color)).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+sr.name)
	}
	return strings.Join(items, "  ")
}

func runDashboard(title string, ctrl *teleop.Controller, s *session, cancel context.CancelFunc, done <-chan error) error {
	p := tea.NewProgram(newDashboardModel(title, ctrl, s, cancel, done), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		cancel()
		<-done
		return fmt.Errorf("run dashboard: %w", err)
	}
	m := final.(dashboardModel)
	if m.err == nil {
		fmt.Println(successStyle.Render(title + " finished."))
	}
	return m.err
}
