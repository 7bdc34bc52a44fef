// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/opilio/pkg/otw"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	pollInterval  = 500 * time.Millisecond
	averageWindow = 60 * time.Second
	maxLogEntries = 100
	barWidth      = 30

	// Full scale of the speed bars
	pumpGaugeRPM = 3000
	fanGaugeRPM  = 2000
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

type sample struct {
	at    time.Time
	stats otw.Stats
}

// statsWindow keeps the readings of the last span for averaging
type statsWindow struct {
	span    time.Duration
	samples []sample
}

func newStatsWindow(span time.Duration) *statsWindow {
	return &statsWindow{span: span}
}

// Add appends a reading and drops those older than span before at
func (w *statsWindow) Add(at time.Time, s otw.Stats) {
	w.samples = append(w.samples, sample{at: at, stats: s})
	cutoff := at.Add(-w.span)
	drop := 0
	for drop < len(w.samples) && w.samples[drop].at.Before(cutoff) {
		drop++
	}
	w.samples = w.samples[drop:]
}

// Len returns the number of readings in the window
func (w *statsWindow) Len() int {
	return len(w.samples)
}

// Average returns the field-wise mean of the window
func (w *statsWindow) Average() otw.Stats {
	if len(w.samples) == 0 {
		return otw.Stats{}
	}
	var sum [7]float64
	for _, s := range w.samples {
		for i, v := range statsFields(s.stats) {
			sum[i] += float64(v)
		}
	}
	n := float64(len(w.samples))
	return otw.Stats{
		Pump1RPM:      float32(sum[0] / n),
		Fan1RPM:       float32(sum[1] / n),
		Fan2RPM:       float32(sum[2] / n),
		Fan3RPM:       float32(sum[3] / n),
		LiquidTemp:    float32(sum[4] / n),
		LiquidOutTemp: float32(sum[5] / n),
		AmbientTemp:   float32(sum[6] / n),
	}
}

func statsFields(s otw.Stats) [7]float32 {
	return [7]float32{s.Pump1RPM, s.Fan1RPM, s.Fan2RPM, s.Fan3RPM, s.LiquidTemp, s.LiquidOutTemp, s.AmbientTemp}
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	ctx      context.Context
	client   monitorClient
	connInfo string

	// Readings
	last     otw.Stats
	hasStats bool
	window   *statsWindow

	// Device state
	smartKnown bool
	smartOn    bool
	sleepAfter uint16

	// In-flight requests
	polling  bool
	toggling bool

	// Components
	spinner spinner.Model
	bar     progress.Model

	// UI state
	errorLog       []logEntry
	width          int
	height         int
	connectionLost bool
	quitting       bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type statsMsg struct {
	stats otw.Stats
	err   error
	at    time.Time
	info  string
}

type configMsg struct {
	config otw.Config
	err    error
}

type smartToggledMsg struct {
	enabled bool
	err     error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(ctx context.Context, client monitorClient) monitorModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth))
	bar.ShowPercentage = false

	return monitorModel{
		ctx:      ctx,
		client:   client,
		window:   newStatsWindow(averageWindow),
		spinner:  sp,
		bar:      bar,
		errorLog: make([]logEntry, 0),
		width:    80,
		height:   24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, monitorTickCmd(), fetchConfigCmd(m.ctx, m.client))
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case monitorTickMsg:
		cmds := []tea.Cmd{monitorTickCmd()}
		if !m.polling {
			m.polling = true
			cmds = append(cmds, pollStatsCmd(m.ctx, m.client))
		}
		return m, tea.Batch(cmds...)

	case statsMsg:
		return m.handleStats(msg)

	case configMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Reading config failed: %v", msg.err), true)
			return m, nil
		}
		m.smartKnown = true
		m.smartOn = msg.config.SmartModeEnabled()
		m.sleepAfter = msg.config.General.SleepAfter
		m.addLogEntry(fmt.Sprintf("Config: smart mode %s, sleep after %ds",
			boolToSwitch(m.smartOn), m.sleepAfter), false)

	case smartToggledMsg:
		m.toggling = false
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Smart mode toggle failed: %v", msg.err), true)
			return m, nil
		}
		m.smartKnown = true
		m.smartOn = msg.enabled
		m.addLogEntry(fmt.Sprintf("Smart mode %s (not saved to flash)", boolToSwitch(msg.enabled)), false)
	}

	return m, nil
}

func (m monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "s":
		if m.toggling {
			return m, nil
		}
		if m.connectionLost {
			m.addLogEntry("Cannot toggle smart mode: connection lost", true)
			return m, nil
		}
		m.toggling = true
		m.addLogEntry("Toggling smart mode...", false)
		return m, toggleSmartCmd(m.ctx, m.client)
	}
	return m, nil
}

func (m monitorModel) handleStats(msg statsMsg) (tea.Model, tea.Cmd) {
	m.polling = false
	if msg.err != nil {
		if !m.connectionLost {
			m.connectionLost = true
			m.addLogEntry(fmt.Sprintf("Connection lost - reconnecting... (%v)", msg.err), true)
		}
		return m, nil
	}

	var cmd tea.Cmd
	if m.connectionLost {
		m.connectionLost = false
		m.addLogEntry("Reconnected", false)
		cmd = fetchConfigCmd(m.ctx, m.client)
	}
	if msg.info != "" {
		m.connInfo = msg.info
	}
	m.last = msg.stats
	m.hasStats = true
	m.window.Add(msg.at, msg.stats)
	return m, cmd
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	s.WriteString(titleStyle.Render("OPILIO MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	switch {
	case m.connectionLost:
		connStatus = warningStyle.Render("RECONNECTING...")
	case connStatus == "":
		connStatus = "connecting"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit s=smart mode", connStatus)))
	s.WriteString("\n\n")

	if !m.hasStats {
		s.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), warningStyle.Render("Waiting for the controller...")))
		s.WriteString(m.renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle))
		return s.String()
	}

	speeds := m.renderSpeeds(labelStyle, valueStyle, headerStyle)
	temps := m.renderTemperatures(labelStyle, valueStyle, headerStyle, warningStyle)
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxStyle.Render(speeds), " ", boxStyle.Render(temps)))
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	s.WriteString(m.renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m monitorModel) renderSpeeds(labelStyle, valueStyle, headerStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("SPEEDS"))
	s.WriteString(headerStyle.Render(fmt.Sprintf("  (avg over %d readings)", m.window.Len())))
	s.WriteString("\n")

	avg := m.window.Average()
	for _, id := range otw.AllFanIDs() {
		rpm := m.last.RPM(id)
		s.WriteString(fmt.Sprintf("%-5s %s %s %s\n",
			id,
			m.bar.ViewAs(gaugePercent(id, rpm)),
			valueStyle.Render(fmt.Sprintf("%5.0f rpm", rpm)),
			headerStyle.Render(fmt.Sprintf("avg %5.0f", avg.RPM(id)))))
	}
	return strings.TrimSuffix(s.String(), "\n")
}

func (m monitorModel) renderTemperatures(labelStyle, valueStyle, headerStyle, warningStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("TEMPERATURES"))
	s.WriteString("\n")

	avg := m.window.Average()
	rows := []struct {
		name      string
		now, mean float32
	}{
		{"Liquid in", m.last.LiquidTemp, avg.LiquidTemp},
		{"Liquid out", m.last.LiquidOutTemp, avg.LiquidOutTemp},
		{"Ambient", m.last.AmbientTemp, avg.AmbientTemp},
	}
	for _, r := range rows {
		s.WriteString(fmt.Sprintf("%-10s %s %s\n",
			r.name,
			valueStyle.Render(fmt.Sprintf("%5.1f°C", r.now)),
			headerStyle.Render(fmt.Sprintf("avg %5.1f", r.mean))))
	}

	s.WriteString("\n")
	s.WriteString(labelStyle.Render("Smart mode: "))
	switch {
	case m.toggling:
		s.WriteString(m.spinner.View())
	case !m.smartKnown:
		s.WriteString(warningStyle.Render("unknown"))
	case m.smartOn:
		s.WriteString(valueStyle.Render("on"))
	default:
		s.WriteString(headerStyle.Render("off"))
	}
	return s.String()
}

func (m monitorModel) renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle lipgloss.Style) string {
	stats := m.client.Statistics()
	stats.CalculateRates()

	errors := valueStyle.Render("0")
	if n := stats.Errors(); n > 0 {
		errors = errorStyle.Render(fmt.Sprintf("%d", n))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("Exchanges:"), valueStyle.Render(fmt.Sprintf("%d", stats.TotalExchanges)),
		labelStyle.Render("OK:"), valueStyle.Render(fmt.Sprintf("%.1f%%", stats.SuccessPercent())),
		labelStyle.Render("Errors:"), errors,
		labelStyle.Render("RTT:"), valueStyle.Render(stats.LastRTT.Round(time.Millisecond).String()),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f/s", stats.ExchangeRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := min(8, len(m.errorLog))
	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.errorLog[len(m.errorLog)-logHeight:] {
		icon := "i"
		style := warningStyle
		if entry.isError {
			icon = "x"
			style = errorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}

	return boxStyle.Width(m.width - 4).Render(strings.TrimSuffix(s.String(), "\n"))
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.errorLog) > maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-maxLogEntries:]
	}
}

// gaugePercent maps rpm onto the bar scale of the channel
func gaugePercent(id otw.FanID, rpm float32) float64 {
	full := float32(fanGaugeRPM)
	if id == otw.FanPump {
		full = pumpGaugeRPM
	}
	p := float64(rpm / full)
	switch {
	case !(p > 0):
		return 0
	case p > 1:
		return 1
	}
	return p
}
