package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type SubtitleMsg struct{ Original, Translated string }
type SessionStartMsg struct{}
type SessionStopMsg struct{}
type AudioLevelMsg struct{ Level float64 }
type PausedMsg struct{ Paused bool }
type StatusLineMsg struct{ Text string }
type tickMsg time.Time

const subtitleHistory = 4

type sentencePair struct {
	original   string
	translated string
}

// Pre-built styles, the render loop runs every tick.
var (
	styleTitle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	styleLive       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleStandby    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	stylePaused     = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	styleStatus     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleOriginal   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	styleTranslated = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleHistory    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleHelp       = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpKey    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)

	styleBarLow  = lipgloss.NewStyle().Foreground(lipgloss.Color("40"))
	styleBarMid  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleBarHigh = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleBarOff  = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
)

type tuiModel struct {
	running bool
	paused  bool
	frame   int
	level   float64
	width   int
	height  int

	status    string
	current   sentencePair
	history   []sentencePair
	sentences int

	togglePause func() bool
}

func NewTUIProgram(togglePause func() bool) *tea.Program {
	m := tuiModel{togglePause: togglePause}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "p":
			if m.togglePause != nil {
				m.paused = m.togglePause()
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case SessionStartMsg:
		m.running = true
		m.paused = false
		m.level = 0

	case SessionStopMsg:
		m.running = false
		m.level = 0

	case AudioLevelMsg:
		// Light smoothing so the bar does not flicker.
		m.level = m.level*0.6 + msg.Level*0.4

	case PausedMsg:
		m.paused = msg.Paused

	case StatusLineMsg:
		m.status = msg.Text

	case SubtitleMsg:
		if msg.Original != m.current.original || msg.Translated != m.current.translated {
			if m.current.original != "" && msg.Original != m.current.original {
				m.history = append(m.history, m.current)
				if len(m.history) > subtitleHistory {
					m.history = m.history[1:]
				}
				m.sentences++
			}
			m.current = sentencePair{msg.Original, msg.Translated}
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(styleTitle.Render("livesub") + "  ")

	switch {
	case m.paused:
		b.WriteString(stylePaused.Render("‖ PAUSED"))
	case m.running:
		b.WriteString(styleLive.Render("● LIVE"))
	default:
		b.WriteString(styleStandby.Render("○ STANDBY"))
	}
	b.WriteString("  " + renderLevelBar(m.level, m.running && !m.paused))
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(styleStatus.Render(m.status) + "\n")
	}
	b.WriteString("\n")

	wrap := lipgloss.NewStyle().Width(m.width - 2)
	for _, p := range m.history {
		b.WriteString(wrap.Render(styleHistory.Render(p.original)) + "\n")
		if p.translated != "" {
			b.WriteString(wrap.Render(styleHistory.Render(p.translated)) + "\n")
		}
		b.WriteString("\n")
	}

	if m.current.original != "" {
		b.WriteString(wrap.Render(styleOriginal.Render(m.current.original)) + "\n")
		if m.current.translated != "" {
			b.WriteString(wrap.Render(styleTranslated.Render(m.current.translated)) + "\n")
		}
	} else if m.running {
		b.WriteString(styleStandby.Render("listening...") + "\n")
	}
	b.WriteString("\n")

	if m.sentences > 0 {
		b.WriteString(styleHelp.Render(fmt.Sprintf("%d sentences", m.sentences)) + "\n")
	}
	b.WriteString(styleHelpKey.Render("p") + styleHelp.Render("/") +
		styleHelpKey.Render("Ctrl+Shift+S") + styleHelp.Render(" pause  ") +
		styleHelpKey.Render("q") + styleHelp.Render(" quit"))
	return b.String()
}

const levelBarWidth = 24

// renderLevelBar draws a VU bar. Capture RMS rarely exceeds 0.25, so
// the level is scaled up before mapping to cells.
func renderLevelBar(level float64, active bool) string {
	scaled := level * 4
	if scaled > 1 {
		scaled = 1
	}
	filled := int(scaled * levelBarWidth)

	var b strings.Builder
	for i := 0; i < levelBarWidth; i++ {
		if !active || i >= filled {
			b.WriteString(styleBarOff.Render("▁"))
			continue
		}
		frac := float64(i) / levelBarWidth
		switch {
		case frac < 0.6:
			b.WriteString(styleBarLow.Render("▄"))
		case frac < 0.85:
			b.WriteString(styleBarMid.Render("▄"))
		default:
			b.WriteString(styleBarHigh.Render("▄"))
		}
	}
	return b.String()
}

// tuiSink forwards session events into the Bubble Tea program.
type tuiSink struct {
	p *tea.Program
}

func (s *tuiSink) UpdateSubtitle(original, translated string) {
	s.p.Send(SubtitleMsg{Original: original, Translated: translated})
}

func (s *tuiSink) SessionStart()           { s.p.Send(SessionStartMsg{}) }
func (s *tuiSink) SessionStop()            { s.p.Send(SessionStopMsg{}) }
func (s *tuiSink) AudioLevel(level float64) { s.p.Send(AudioLevelMsg{Level: level}) }
func (s *tuiSink) Paused(paused bool)      { s.p.Send(PausedMsg{Paused: paused}) }
func (s *tuiSink) StatusLine(text string)  { s.p.Send(StatusLineMsg{Text: text}) }
