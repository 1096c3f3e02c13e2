package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/lashbits/silicon-toaster/host/calibration"
	"github.com/lashbits/silicon-toaster/host/toaster"
)

var monitorInterval time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live TUI showing voltage, setpoint and controller state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withToaster(func(t *toaster.Toaster) error {
			m := newMonitorModel(t)
			_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		})
	},
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 250*time.Millisecond, "Refresh interval")

	rootCmd.AddCommand(monitorCmd)
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("55")).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dangerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// reading is one polled snapshot of the device state.
type reading struct {
	raw      uint16
	setpoint uint16
	control  bool
	samples  []uint16
	err      error
}

type tickMsg time.Time

type monitorModel struct {
	t        *toaster.Toaster
	last     reading
	readErr  error
	width    int
	quitting bool
}

func newMonitorModel(t *toaster.Toaster) monitorModel {
	return monitorModel{t: t}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(m.poll(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(monitorInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// poll reads the device state off the UI goroutine.
func (m monitorModel) poll() tea.Cmd {
	t := m.t
	return func() tea.Msg {
		var r reading
		if r.raw, r.err = t.ReadVoltageRaw(); r.err != nil {
			return r
		}
		if r.setpoint, r.err = t.GetSetpointRaw(); r.err != nil {
			return r
		}
		if r.control, r.err = t.ControlEnabled(); r.err != nil {
			return r
		}
		r.samples, r.err = t.Samples()
		return r
	}
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		return m, tea.Batch(m.poll(), tick())
	case reading:
		if msg.err != nil {
			m.readErr = msg.err
		} else {
			m.readErr = nil
			m.last = msg
		}
	}
	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("silicon toaster"))
	b.WriteString("\n\n")

	volts := calibration.ToVolts(m.last.raw)
	voltLine := fmt.Sprintf("%.1f V (raw %d)", volts, m.last.raw)
	if volts >= 500 {
		voltLine = dangerStyle.Render(voltLine)
	} else {
		voltLine = valueStyle.Render(voltLine)
	}

	setpoint := fmt.Sprintf("%.1f V (raw %d)", calibration.ToVolts(m.last.setpoint), m.last.setpoint)

	controlState := okStyle.Render("enabled")
	if !m.last.control {
		controlState = valueStyle.Render("disabled")
	}

	rows := []string{
		labelStyle.Render("Voltage") + voltLine,
		labelStyle.Render("Setpoint") + valueStyle.Render(setpoint),
		labelStyle.Render("Control") + controlState,
		labelStyle.Render("History") + valueStyle.Render(sparkline(m.last.samples)),
	}
	b.WriteString(panelStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	if m.readErr != nil {
		b.WriteString(errStyle.Render("read error: " + m.readErr.Error()))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(fmt.Sprintf("refresh %s · q to quit", monitorInterval)))
	b.WriteString("\n")
	return b.String()
}

// sparkline renders recent samples as a unicode bar strip.
func sparkline(samples []uint16) string {
	if len(samples) == 0 {
		return "(no samples)"
	}
	bars := []rune("▁▂▃▄▅▆▇█")
	var max uint16 = 1
	for _, s := range samples {
		if s > max {
			max = s
		}
	}
	var b strings.Builder
	for _, s := range samples {
		idx := int(uint32(s) * uint32(len(bars)-1) / uint32(max))
		b.WriteRune(bars[idx])
	}
	return b.String()
}
