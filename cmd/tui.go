// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/radiolink/pkg/amber"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styles shared by the error_detection and control TUIs
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	focusedBoxStyle = boxStyle.BorderForeground(lipgloss.Color("12"))
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// rfActivity summarizes DATAEX indications seen on the link
type rfActivity struct {
	last     amber.Indication
	lastSeen time.Time
	count    int
	rssiMin  int8
	rssiMax  int8
	rssiSum  int
}

func (a *rfActivity) add(ind amber.Indication) {
	if a.count == 0 || ind.RSSI < a.rssiMin {
		a.rssiMin = ind.RSSI
	}
	if a.count == 0 || ind.RSSI > a.rssiMax {
		a.rssiMax = ind.RSSI
	}
	a.count++
	a.rssiSum += int(ind.RSSI)
	a.last = ind
	a.lastSeen = time.Now()
}

func (a *rfActivity) rssiAvg() float64 {
	if a.count == 0 {
		return 0
	}
	return float64(a.rssiSum) / float64(a.count)
}

// TUI model
type model struct {
	connInfo      string
	mode          amber.AddressMode
	statsInterval int
	showAll       bool
	stats         *amber.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int
	synchronized  bool
	invalidBytes  int
	width         int
	height        int
	quitting      bool
	linkErr       error
	rf            *rfActivity
}

// Messages
type tickMsg time.Time
type linkDataMsg linkEvent
type syncMsg struct {
	invalidBytes int
}
type linkClosedMsg struct {
	err error
}

func initialModel(connInfo string, mode amber.AddressMode, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		mode:          mode,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         amber.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
		rf:            &rfActivity{},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.rf = &rfActivity{}
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case syncMsg:
		m.synchronized = true
		m.invalidBytes = msg.invalidBytes
		if msg.invalidBytes > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d invalid bytes", msg.invalidBytes), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case linkClosedMsg:
		m.linkErr = msg.err
		m.addLogEntry(fmt.Sprintf("Link closed: %v", msg.err), true)

	case linkDataMsg:
		if msg.decodeErr != nil {
			m.stats.Update(nil, msg.decodeErr, nil)
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
			break
		}

		m.stats.Update(msg.frame, nil, msg.validationErrors)
		name := amber.FormatCommand(msg.frame.Command())

		if msg.frame.Command() == amber.CmdDataExInd {
			if ind, err := amber.ParseIndication(m.mode, msg.frame); err == nil {
				m.stats.AddRFBytes(len(ind.Payload))
				m.rf.add(ind)
			}
		}

		if len(msg.validationErrors) > 0 {
			for _, err := range msg.validationErrors {
				m.addLogEntry(fmt.Sprintf("%s: %s", name, err.Message), true)
			}
		} else if m.showAll {
			m.addLogEntry(fmt.Sprintf("%s (valid)", name), false)
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("RADIOLINK - ERROR DETECTION"))
	s.WriteString("\n")
	viewMode := "Errors only"
	if m.showAll {
		viewMode = "All frames"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Address mode %d | %s | 'r' reset stats, 'q' quit",
		m.connInfo, m.mode, viewMode)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.linkErr != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Link closed: %v", m.linkErr)))
	case !m.synchronized:
		s.WriteString(noticeStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(valueStyle.Render("✓ Synchronized"))
		if m.invalidBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d invalid bytes)", m.invalidBytes)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	totalErrors := m.stats.ErrorCount()
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
		errorPercent = float64(totalErrors) * 100.0 / float64(m.stats.TotalFrames)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Total:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidFrames, validPercent)),
		labelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s\n",
		labelStyle.Render("REQ/CNF/IND:"),
		valueStyle.Render(fmt.Sprintf("%d/%d/%d", m.stats.Requests, m.stats.Confirmations, m.stats.Indications)),
	))

	if m.stats.ChecksumErrors > 0 || m.stats.DecodeErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Checksum Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.ChecksumErrors)),
			labelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.DecodeErrors)),
		))
	}

	if m.stats.MalformedFrames > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			labelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.MalformedFrames)),
			headerStyle.Render("unknown commands"), m.stats.UnknownCommands,
			headerStyle.Render("length mismatches"), m.stats.LengthMismatches,
		))
	}

	if m.stats.FailedStatuses > 0 || m.stats.InvalidValues > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Failed Status:"), noticeStyle.Render(fmt.Sprintf("%d", m.stats.FailedStatuses)),
			labelStyle.Render("Invalid Values:"), noticeStyle.Render(fmt.Sprintf("%d", m.stats.InvalidValues)),
		))
	}

	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Frame Rate:"), valueStyle.Render(fmt.Sprintf("%.1f frames/s", m.stats.FrameRate)),
		labelStyle.Render("Error Rate:"), func() string {
			if m.stats.ErrorRate > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
			}
			return valueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate))
		}(),
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// RF section (only shown once indications were received)
	if m.rf.count > 0 {
		s.WriteString(labelStyle.Render("RF Activity:"))
		s.WriteString("\n")

		rfContent := strings.Builder{}
		rfContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			labelStyle.Render("Indications:"), valueStyle.Render(fmt.Sprintf("%d", m.rf.count)),
			labelStyle.Render("Payload:"), valueStyle.Render(fmt.Sprintf("%d bytes", m.stats.RFBytes)),
		))
		rfContent.WriteString(fmt.Sprintf("%s %s\n",
			labelStyle.Render("RSSI min/avg/max:"),
			valueStyle.Render(fmt.Sprintf("%d / %.1f / %d dBm", m.rf.rssiMin, m.rf.rssiAvg(), m.rf.rssiMax)),
		))
		rfContent.WriteString(fmt.Sprintf("%s %s, %d bytes, %d dBm (%s ago)",
			labelStyle.Render("Last:"),
			valueStyle.Render(amber.FormatAddress(m.mode, m.rf.last.Address)),
			len(m.rf.last.Payload), m.rf.last.RSSI,
			time.Since(m.rf.lastSeen).Round(time.Second),
		))

		s.WriteString(boxStyle.Render(rfContent.String()))
		s.WriteString("\n\n")
	}

	// Error log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	// Calculate how many log entries we can show
	logHeight := m.height - 17 // Reserve space for header and stats
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					noticeStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
