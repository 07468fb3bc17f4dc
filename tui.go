package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"vocalscript/clipboard"
	"vocalscript/log"
	"vocalscript/recorder"
	"vocalscript/ui"
)

// TUI message types
type eventMsg recorder.Event
type noticeMsg struct{ Text string }
type tickMsg time.Time

// toggler is the part of the controller the keyboard drives.
type toggler interface {
	Toggle() error
}

type tuiModel struct {
	state         ui.State
	ctrl          toggler
	frame         int
	width, height int
	recStart      time.Time
	modeLine      string // "[audio/flac | gemini]"
	deviceLine    string
	notice        string
	count         int
}

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("160")).Bold(true).Padding(0, 1)
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	textStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
)

func newTUIModel(initial ui.State, ctrl toggler, modeLine, deviceLine string) tuiModel {
	return tuiModel{state: initial, ctrl: ctrl, modeLine: modeLine, deviceLine: deviceLine}
}

func NewTUIProgram(m tuiModel) *tea.Program {
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

// toggleCmd runs off the update loop; Toggle waits for the controller.
func (m tuiModel) toggleCmd() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if err := ctrl.Toggle(); err != nil {
			log.Warnf("toggle: %v", err)
		}
		return nil
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.Copy(text); err != nil {
			return noticeMsg{Text: "copy failed: " + err.Error()}
		}
		return noticeMsg{Text: "copied"}
	}
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
		case " ", "enter":
			if !m.state.Processing {
				m.notice = ""
				return m, m.toggleCmd()
			}
		case "c":
			m.state.Clear()
			m.notice = ""
		case "y":
			if strings.TrimSpace(m.state.Text) != "" {
				return m, copyCmd(m.state.Text)
			}
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case eventMsg:
		e := recorder.Event(msg)
		m.state.Apply(e)
		switch e.Kind {
		case recorder.RecordingStarted:
			m.recStart = time.Now()
		case recorder.ProcessingFinished:
			if m.state.Error == "" && m.state.Text != "" {
				m.count++
			}
		}

	case noticeMsg:
		m.notice = msg.Text
	}
	return m, nil
}

func (m tuiModel) statusLine() string {
	switch {
	case m.state.Recording:
		return recStyle.Render(fmt.Sprintf("%s REC %.1fs", pulse(m.frame), time.Since(m.recStart).Seconds()))
	case m.state.Processing:
		return busyStyle.Render(spinner(m.frame) + " PROCESSING")
	}
	return dimStyle.Render("○ STANDBY")
}

// pulse blinks the recording dot about once a second.
func pulse(frame int) string {
	if math.Sin(float64(frame)*0.6) >= 0 {
		return "●"
	}
	return "○"
}

func spinner(frame int) string {
	const frames = "⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏"
	r := []rune(frames)
	return string(r[frame%len(r)])
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const sideWidth = 44

	var side []string
	side = append(side, titleStyle.Render("vocalscript "+version), "")
	if b := m.state.Banner(); b != "" {
		side = append(side, bannerStyle.Render(b), "")
	}
	side = append(side, m.statusLine())
	if m.modeLine != "" {
		side = append(side, dimStyle.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		side = append(side, dimStyle.Render(m.deviceLine))
	}
	if m.state.Error != "" {
		side = append(side, "")
		for _, line := range wrapText(m.state.Error, sideWidth-2) {
			side = append(side, errStyle.Render(line))
		}
	}
	side = append(side, "",
		keyStyle.Render("space")+helpStyle.Render(" record/stop"),
		keyStyle.Render("c")+helpStyle.Render(" clear  ")+keyStyle.Render("y")+helpStyle.Render(" copy  ")+keyStyle.Render("q")+helpStyle.Render(" quit"),
	)

	textWidth := m.width - sideWidth - 1
	if textWidth < 20 {
		textWidth = 20
	}

	var body strings.Builder
	if m.state.Text != "" {
		title := fmt.Sprintf("Transcript (#%d)", m.count)
		if m.state.Processing {
			title = "Transcript (live)"
		}
		body.WriteString(dimStyle.Render(title) + "\n\n")
		lines := wrapText(m.state.Text, textWidth-2)
		for i, line := range lines {
			body.WriteString(textStyle.Render(line))
			if i == len(lines)-1 && m.notice != "" {
				body.WriteString(" " + okStyle.Render("["+m.notice+"]"))
			}
			body.WriteString("\n")
		}
	} else {
		body.WriteString(dimStyle.Render("No transcript yet"))
		if m.notice != "" {
			body.WriteString(" " + okStyle.Render("["+m.notice+"]"))
		}
	}

	sidePanel := lipgloss.NewStyle().
		Width(sideWidth).
		Height(m.height).
		Render(strings.Join(side, "\n"))
	textPanel := lipgloss.NewStyle().
		Width(textWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(body.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, sidePanel, textPanel)
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		r := []rune(para)
		for len(r) > width {
			// Find last space within width
			splitAt := width
			for i := width; i > 0; i-- {
				if r[i] == ' ' {
					splitAt = i
					break
				}
			}
			lines = append(lines, string(r[:splitAt]))
			r = []rune(strings.TrimLeft(string(r[splitAt:]), " "))
		}
		lines = append(lines, string(r))
	}
	return lines
}
