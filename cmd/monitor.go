// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/magician/pkg/arm"
	"github.com/Thermoquad/magician/pkg/dobot"
	"github.com/Thermoquad/magician/pkg/link"
	"github.com/Thermoquad/magician/pkg/state"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive TUI for monitoring and jogging the arm",
	Long: `Monitor the arm via an interactive terminal UI.

The screen shows the polled pose, alarms and queue progress, link health
and traffic statistics, and an event log. Commands typed at the prompt are
queued on the arm; type "help" for the list.

Supports serial, WebSocket and simulator connections.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, connInfo := openArm(ctx)
	defer a.Close()

	p := tea.NewProgram(initialMonitorModel(ctx, a, connInfo), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}
	return nil
}

//////////////////////////////////////////////////////////////
// Model
//////////////////////////////////////////////////////////////

type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

type monitorModel struct {
	ctx      context.Context
	arm      *arm.Arm
	connInfo string

	snap  state.Snapshot
	link  state.LinkStatus
	stats link.Stats

	input textinput.Model

	eventLog      []eventLogEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
	linkLost bool
	degraded bool
}

type monitorTickMsg time.Time

type commandResultMsg struct {
	line   string
	result string
	err    error
}

type linkLostMsg struct{}

func initialMonitorModel(ctx context.Context, a *arm.Arm, connInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "movj_xyz 200 0 50 0"
	ti.Prompt = "> "
	ti.CharLimit = 80
	ti.Width = 60
	ti.Focus()

	m := monitorModel{
		ctx:           ctx,
		arm:           a,
		connInfo:      connInfo,
		input:         ti,
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	m.addLogEntry("Connected - type help for commands", false)
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(monitorTickCmd(), textinput.Blink, m.waitLinkLost())
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) waitLinkLost() tea.Cmd {
	done := m.arm.Done()
	return func() tea.Msg {
		<-done
		return linkLostMsg{}
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-8, 10)

	case monitorTickMsg:
		m.refresh()
		return m, monitorTickCmd()

	case commandResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s: %v", msg.line, msg.err), true)
		} else {
			m.addLogEntry(msg.result, false)
		}
		return m, nil

	case linkLostMsg:
		m.linkLost = true
		m.addLogEntry("Connection lost", true)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// refresh copies the cached state; it never blocks on the link
func (m *monitorModel) refresh() {
	m.snap = m.arm.Snapshot()
	m.link = m.arm.LinkStatus()
	m.stats = m.arm.Statistics()

	if m.link.Degraded != m.degraded {
		m.degraded = m.link.Degraded
		if m.degraded {
			m.addLogEntry(fmt.Sprintf("Link degraded: %v", m.link.LastError), true)
		} else {
			m.addLogEntry("Link recovered", false)
		}
	}
}

func (m monitorModel) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if line == "" {
		return m, nil
	}
	if m.linkLost {
		m.addLogEntry(line+": not connected", true)
		return m, nil
	}

	action, err := parseMonitorCommand(line)
	if err != nil {
		m.addLogEntry(err.Error(), true)
		return m, nil
	}

	ctx, a := m.ctx, m.arm
	return m, func() tea.Msg {
		result, err := action(ctx, a)
		return commandResultMsg{line: line, result: result, err: err}
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var (
	monitorTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("12")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	monitorHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))

	monitorLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("12")).
				Bold(true)

	monitorValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("10"))

	monitorErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("9")).
				Bold(true)

	monitorWarningStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("11"))

	monitorBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	s.WriteString(monitorTitleStyle.Render("MAGICIAN MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.linkLost {
		connStatus = monitorErrorStyle.Render("DISCONNECTED")
	} else if m.link.Degraded {
		connStatus = monitorWarningStyle.Render(m.connInfo + " (degraded)")
	}
	s.WriteString(monitorHeaderStyle.Render(fmt.Sprintf("| %s | Enter=run Esc=quit", connStatus)))
	s.WriteString("\n\n")

	s.WriteString(m.renderPose())
	s.WriteString("\n")
	s.WriteString(m.renderQueue())
	s.WriteString("\n")
	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n")
	s.WriteString(m.renderEventLog())
	s.WriteString("\n")
	s.WriteString(m.input.View())
	s.WriteString("\n")
	return s.String()
}

func (m monitorModel) field(label, value string) string {
	return fmt.Sprintf("%s %s  ", monitorLabelStyle.Render(label), monitorValueStyle.Render(value))
}

func (m monitorModel) renderPose() string {
	p := m.snap.Pose
	var content strings.Builder
	content.WriteString(monitorLabelStyle.Render("POSE"))
	content.WriteString(" | ")
	if m.snap.PoseAt.IsZero() {
		content.WriteString("No pose yet")
		return monitorBoxStyle.Width(m.width - 4).Render(content.String())
	}
	content.WriteString(m.field("X:", fmt.Sprintf("%.2f", p.X)))
	content.WriteString(m.field("Y:", fmt.Sprintf("%.2f", p.Y)))
	content.WriteString(m.field("Z:", fmt.Sprintf("%.2f", p.Z)))
	content.WriteString(m.field("R:", fmt.Sprintf("%.2f", p.R)))
	content.WriteString("\n")
	content.WriteString(m.field("Joints:", fmt.Sprintf("%.2f %.2f %.2f %.2f",
		p.JointAngle[0], p.JointAngle[1], p.JointAngle[2], p.JointAngle[3])))
	content.WriteString(monitorHeaderStyle.Render(formatAge(m.snap.PoseAt)))
	return monitorBoxStyle.Width(m.width - 4).Render(content.String())
}

func (m monitorModel) renderQueue() string {
	var content strings.Builder
	content.WriteString(monitorLabelStyle.Render("QUEUE"))
	content.WriteString(" | ")
	content.WriteString(m.field("Index:", fmt.Sprintf("%d", m.snap.CurrentIndex)))
	content.WriteString(m.field("Free:", fmt.Sprintf("%d", m.snap.LeftSpace)))

	alarms := dobot.FormatAlarms(m.snap.Alarms)
	if m.snap.Alarms.Any() {
		content.WriteString(fmt.Sprintf("%s %s", monitorLabelStyle.Render("Alarms:"), monitorErrorStyle.Render(alarms)))
	} else {
		content.WriteString(m.field("Alarms:", alarms))
	}
	return monitorBoxStyle.Width(m.width - 4).Render(content.String())
}

func (m monitorModel) renderStatisticsBar() string {
	var content strings.Builder
	content.WriteString(m.field("Sent:", fmt.Sprintf("%d", m.stats.FramesSent)))
	content.WriteString(m.field("Recv:", fmt.Sprintf("%d", m.stats.FramesReceived)))
	content.WriteString(m.field("Rate:", fmt.Sprintf("%.1f f/s", m.stats.FrameRate)))

	errCount := m.stats.Timeouts + m.stats.Orphans + m.stats.Resyncs
	if errCount > 0 || m.stats.DiscardedBytes > 0 {
		content.WriteString(fmt.Sprintf("%s %s  ", monitorLabelStyle.Render("Errors:"),
			monitorErrorStyle.Render(fmt.Sprintf("%d (%d bytes skipped)", errCount, m.stats.DiscardedBytes))))
	} else {
		content.WriteString(m.field("Errors:", "0"))
	}
	content.WriteString(m.field("Last OK:", formatAge(m.link.LastSuccess)))
	return monitorBoxStyle.Width(m.width - 4).Render(content.String())
}

func (m monitorModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(monitorLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := max(m.height-20, 4)
	start := max(len(m.eventLog)-logHeight, 0)

	for _, entry := range m.eventLog[start:] {
		icon := "i"
		style := monitorWarningStyle
		if entry.isError {
			icon = "x"
			style = monitorErrorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			monitorHeaderStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}
	return monitorBoxStyle.Width(m.width - 4).Render(strings.TrimRight(s.String(), "\n"))
}
