// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Thermoquad/radiolink/pkg/amber"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	healthCheckSeconds = 1 // Check the driver for link errors every N seconds
	initialBackoff     = 1 * time.Second
	maxBackoff         = 30 * time.Second
	maxChatEntries     = 200
)

// Focus states
const (
	focusPeerList = iota
	focusInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// peer is a message target: a sender heard on the air, or one of the
// two fixed entries
type peer struct {
	name        string
	addr        amber.Address
	defaultDest bool
	lastRSSI    int8
	heard       int
	lastSeen    time.Time
}

// Implement list.Item interface
func (p peer) Title() string { return p.name }
func (p peer) Description() string {
	if p.heard == 0 {
		return "not heard"
	}
	return fmt.Sprintf("%d msgs, %d dBm", p.heard, p.lastRSSI)
}
func (p peer) FilterValue() string { return p.name }

// chatEntry is one line of the message log
type chatEntry struct {
	timestamp time.Time
	peer      string
	text      string
	outgoing  bool
	failed    bool
	rssi      int8
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	link *linkManager
	mode amber.AddressMode

	// Connection
	connInfo  string
	connected bool
	firmware  [3]byte
	channel   uint8

	// Peers
	peers    []peer
	peerList list.Model

	// Messages
	chat      []chatEntry
	input     textinput.Model
	sending   bool
	focused   int
	lastCheck time.Time

	// Monitoring (reused from tui.go patterns)
	stats         *amber.Statistics
	errorLog      []errorLogEntry
	maxLogEntries int

	// UI state
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type controlBatchMsg struct {
	events      []linkEvent
	indications []amber.Indication
}

type connectedMsg struct {
	connInfo string
	firmware [3]byte
	channel  uint8
}

type connectFailedMsg struct {
	err   error
	delay time.Duration
}

type connectionLostMsg struct {
	err error
}

type sentMsg struct {
	target  peer
	payload []byte
	err     error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(link *linkManager, mode amber.AddressMode) controlModel {
	ti := textinput.New()
	ti.Placeholder = "message"
	ti.CharLimit = amber.MaxPayloadSize - mode.PrefixLen()
	ti.Width = 40

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	peerList := list.New([]list.Item{}, delegate, 30, 10)
	peerList.Title = "Peers"
	peerList.SetShowStatusBar(false)
	peerList.SetShowHelp(false)
	peerList.SetFilteringEnabled(false)

	m := controlModel{
		link:     link,
		mode:     mode,
		peerList: peerList,
		peers: []peer{
			{name: "Default destination", defaultDest: true},
			{name: "Broadcast", addr: amber.Broadcast},
		},
		input:         ti,
		focused:       focusPeerList,
		stats:         amber.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
	m.updatePeerList()
	m.addLogEntry("Connecting...", false)
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	var connect tea.Cmd
	if m.link != nil {
		connect = m.link.connectCmd(0)
	}
	return tea.Batch(controlTickCmd(), connect)
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		if m.focused == focusPeerList {
			m.peerList, _ = m.peerList.Update(msg)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		m.stats.CalculateRates()
		if m.connected && time.Since(m.lastCheck) >= healthCheckSeconds*time.Second {
			m.lastCheck = time.Now()
			if mod := m.link.get(); mod != nil {
				if err := mod.Err(); err != nil {
					cmds = append(cmds, func() tea.Msg { return connectionLostMsg{err: err} })
				}
			}
		}
		cmds = append(cmds, controlTickCmd())
		return m, tea.Batch(cmds...)

	case controlBatchMsg:
		for _, ev := range msg.events {
			m.processLinkEvent(ev)
		}
		for _, ind := range msg.indications {
			m.handleIndication(ind)
		}

	case connectedMsg:
		m.connected = true
		m.connInfo = msg.connInfo
		m.firmware = msg.firmware
		m.channel = msg.channel
		m.addLogEntry(fmt.Sprintf("Module ready: firmware %d.%d.%d, channel %d",
			msg.firmware[0], msg.firmware[1], msg.firmware[2], msg.channel), false)

	case connectFailedMsg:
		next := nextBackoff(msg.delay)
		m.addLogEntry(fmt.Sprintf("Connect failed: %v (retrying in %s)", msg.err, next), true)
		return m, m.link.connectCmd(next)

	case connectionLostMsg:
		if !m.connected {
			return m, nil
		}
		m.connected = false
		m.sending = false
		m.link.drop()
		m.addLogEntry(fmt.Sprintf("Connection lost: %v - reconnecting...", msg.err), true)
		return m, m.link.connectCmd(initialBackoff)

	case sentMsg:
		m.sending = false
		m.handleSent(msg)
	}

	// Update child components
	var cmd tea.Cmd
	if m.focused == focusInput {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focused != focusInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		m.toggleFocus()
		return m, nil

	case "enter":
		if m.focused == focusInput {
			return m.sendMessage()
		}
		m.toggleFocus()
		return m, nil
	}

	// Pass through to focused component
	var cmd tea.Cmd
	if m.focused == focusInput {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.peerList, cmd = m.peerList.Update(msg)
	}
	return m, cmd
}

func (m *controlModel) toggleFocus() {
	if m.focused == focusPeerList {
		m.focused = focusInput
		m.input.Focus()
	} else {
		m.focused = focusPeerList
		m.input.Blur()
	}
}

func (m *controlModel) sendMessage() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	if text == "" {
		return m, nil
	}
	if !m.connected {
		m.addLogEntry("Cannot send: module not connected", true)
		return m, nil
	}
	if m.sending {
		m.addLogEntry("Cannot send: previous message still in flight", true)
		return m, nil
	}

	target := m.selectedPeer()
	if target == nil {
		return m, nil
	}

	m.sending = true
	m.input.Reset()
	return m, m.link.transmitCmd(*target, m.channel, []byte(text))
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	// Header
	s.WriteString(titleStyle.Render("RADIOLINK CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if !m.connected {
		connStatus = noticeStyle.Render("CONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | mode %d | Tab=switch Enter=send ctrl+c=quit", connStatus, m.mode)))
	s.WriteString("\n")
	if m.connected {
		s.WriteString(fmt.Sprintf(" %s %s  %s %s",
			labelStyle.Render("Firmware:"),
			valueStyle.Render(fmt.Sprintf("%d.%d.%d", m.firmware[0], m.firmware[1], m.firmware[2])),
			labelStyle.Render("Channel:"),
			valueStyle.Render(fmt.Sprintf("%d", m.channel))))
	}
	s.WriteString("\n\n")

	// Layout: left panel (peers) | right panel (messages)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 20 {
		rightWidth = 20
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focused == focusPeerList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	peerPanel := listStyle.Render(m.peerList.View())

	chatPanel := boxStyle.Width(rightWidth).Render(m.renderChat())

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, peerPanel, " ", chatPanel))
	s.WriteString("\n")

	// Input
	inputStyle := boxStyle.Width(m.width - 4)
	if m.focused == focusInput {
		inputStyle = focusedBoxStyle.Width(m.width - 4)
	}
	target := "-"
	if p := m.selectedPeer(); p != nil {
		target = p.name
	}
	prompt := labelStyle.Render(fmt.Sprintf("To %s: ", target))
	if m.sending {
		prompt += noticeStyle.Render("sending... ")
	}
	s.WriteString(inputStyle.Render(prompt + m.input.View()))
	s.WriteString("\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n")

	// Event log
	s.WriteString(m.renderEventLog())

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderChat() string {
	var s strings.Builder

	chatHeight := m.height/3 + 4
	if chatHeight < 6 {
		chatHeight = 6
	}
	startIdx := len(m.chat) - chatHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.chat) == 0 {
		s.WriteString(headerStyle.Render("(no messages yet)"))
		return s.String()
	}

	for i := startIdx; i < len(m.chat); i++ {
		e := m.chat[i]
		ts := headerStyle.Render(e.timestamp.Format("15:04:05"))
		switch {
		case e.failed:
			s.WriteString(fmt.Sprintf("%s %s %s\n", ts, errorStyle.Render("x -> "+e.peer+":"), e.text))
		case e.outgoing:
			s.WriteString(fmt.Sprintf("%s %s %s\n", ts, noticeStyle.Render("-> "+e.peer+":"), e.text))
		default:
			s.WriteString(fmt.Sprintf("%s %s %s %s\n", ts, valueStyle.Render(e.peer+":"), e.text,
				headerStyle.Render(fmt.Sprintf("(%d dBm)", e.rssi))))
		}
	}
	return s.String()
}

func (m controlModel) renderStatisticsBar() string {
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
		errorPercent = float64(m.stats.ErrorCount()) * 100.0 / float64(m.stats.TotalFrames)
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		labelStyle.Render("Errors:"), func() string {
			if errorPercent > 0 {
				return errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
			}
			return valueStyle.Render("0.0%")
		}(),
		labelStyle.Render("RF:"), valueStyle.Render(fmt.Sprintf("%d B", m.stats.RFBytes)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f f/s", m.stats.FrameRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	logHeight := 6
	if len(m.errorLog) < logHeight {
		logHeight = len(m.errorLog)
	}
	startIdx := len(m.errorLog) - logHeight

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
			icon := "i"
			style := noticeStyle
			if entry.isError {
				icon = "x"
				style = errorStyle
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) processLinkEvent(ev linkEvent) {
	if ev.decodeErr != nil {
		m.stats.Update(nil, ev.decodeErr, nil)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.decodeErr), true)
		return
	}
	if ev.frame == nil {
		return
	}

	m.stats.Update(ev.frame, nil, ev.validationErrors)
	for _, v := range ev.validationErrors {
		m.addLogEntry(fmt.Sprintf("%s: %s", amber.FormatCommand(ev.frame.Command()), v.Message), true)
	}

	switch ev.frame.Command() {
	case amber.CmdResetInd:
		m.addLogEntry("Module reported RESET_IND", false)
	case amber.CmdStandbyInd:
		m.addLogEntry("Module reported STANDBY_IND", false)
	}
}

// handleIndication records a received payload and its sender
func (m *controlModel) handleIndication(ind amber.Indication) {
	m.stats.AddRFBytes(len(ind.Payload))

	p := m.heardPeer(ind.Address)
	p.heard++
	p.lastRSSI = ind.RSSI
	p.lastSeen = time.Now()
	m.updatePeerList()

	m.addChat(chatEntry{
		timestamp: time.Now(),
		peer:      p.name,
		text:      payloadText(ind.Payload),
		rssi:      ind.RSSI,
	})
}

// heardPeer returns the peer entry for addr, adding it on first contact.
// Senders that carry no address fold into the broadcast entry.
func (m *controlModel) heardPeer(addr amber.Address) *peer {
	addr = m.mode.Mask(addr)
	for i := range m.peers {
		if !m.peers[i].defaultDest && m.peers[i].addr == addr {
			return &m.peers[i]
		}
	}

	m.peers = append(m.peers, peer{name: amber.FormatAddress(m.mode, addr), addr: addr})
	m.addLogEntry(fmt.Sprintf("New peer: %s", amber.FormatAddress(m.mode, addr)), false)
	return &m.peers[len(m.peers)-1]
}

func (m *controlModel) handleSent(msg sentMsg) {
	entry := chatEntry{
		timestamp: time.Now(),
		peer:      msg.target.name,
		text:      payloadText(msg.payload),
		outgoing:  true,
	}
	if msg.err != nil {
		entry.failed = true
		m.addLogEntry(fmt.Sprintf("Send to %s failed: %v", msg.target.name, msg.err), true)
	}
	m.addChat(entry)
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

func (m *controlModel) addChat(e chatEntry) {
	m.chat = append(m.chat, e)
	if len(m.chat) > maxChatEntries {
		m.chat = m.chat[len(m.chat)-maxChatEntries:]
	}
}

func (m controlModel) selectedPeer() *peer {
	idx := m.peerList.Index()
	if idx < 0 || idx >= len(m.peers) {
		return nil
	}
	return &m.peers[idx]
}

func (m *controlModel) updatePeerList() {
	items := make([]list.Item, len(m.peers))
	for i, p := range m.peers {
		items[i] = p
	}
	m.peerList.SetItems(items)
}

func (m *controlModel) updateListSize() {
	listHeight := m.height / 3
	if listHeight < 5 {
		listHeight = 5
	}
	m.peerList.SetSize(28, listHeight)
}

// nextBackoff doubles the reconnect delay up to maxBackoff
func nextBackoff(d time.Duration) time.Duration {
	if d < initialBackoff {
		return initialBackoff
	}
	d *= 2
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

// payloadText renders printable payloads as text and anything else as hex
func payloadText(b []byte) string {
	for _, r := range string(b) {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return "[" + amber.FormatHex(b) + "]"
		}
	}
	return string(b)
}
