// Package picker is the interactive quality-ladder selector used by the
// command-line client when no height is given.
package picker

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lvcoi/ytsource/internal/media"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0B0B0B")).
			Background(lipgloss.Color("#7FDBFF")).
			Bold(true).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A6ADC8")).
			Faint(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8F8F2")).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#0B0B0B")).
			Background(lipgloss.Color("#00F5D4")).
			Bold(true)

	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EAEAEA"))
)

const digitBufferTimeout = 1500 * time.Millisecond

type model struct {
	viewport    viewport.Model
	title       string
	ready       bool
	rungs       []media.QualityEntry
	selected    int
	quitting    bool
	digitBuffer string
	lastDigit   time.Time
}

type quitMsg struct{}

type digitExpireMsg struct {
	at time.Time
}

func newModel(title string, rungs []media.QualityEntry, preselect int) *model {
	vp := viewport.New(60, 16)
	vp.MouseWheelEnabled = true
	vp.Style = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#7FDBFF"))

	m := &model{
		viewport: vp,
		title:    title,
		rungs:    rungs,
		selected: preselect,
	}
	m.viewport.SetContent(buildContent(rungs, m.selected))
	return m
}

func buildContent(rungs []media.QualityEntry, selected int) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("quality    bitrate      audio"))
	b.WriteString("\n")

	for i, rung := range rungs {
		audio := "video only"
		if rung.HasAudio {
			audio = "with audio"
		}
		bitrate := "-"
		if rung.Bitrate > 0 {
			bitrate = fmt.Sprintf("%dk", rung.Bitrate/1000)
		}
		line := fmt.Sprintf("%-10s %-12s %s", rung.Label, bitrate, audio)
		if i == selected {
			line = selectedStyle.Render(line)
		} else {
			line = rowStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *model) Init() tea.Cmd {
	return nil
}

func quitAfterDelay() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
		return quitMsg{}
	})
}

func scheduleDigitExpiry(at time.Time) tea.Cmd {
	return tea.Tick(digitBufferTimeout, func(time.Time) tea.Msg {
		return digitExpireMsg{at: at}
	})
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if m.quitting {
		switch msg := msg.(type) {
		case tea.WindowSizeMsg:
			_ = msg
			return m, nil
		case quitMsg:
			return m, tea.Quit
		default:
			return m, nil
		}
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = msg.Height - 6
		m.viewport, cmd = m.viewport.Update(msg)
		m.ready = true
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			m.selected = -1
			return m, quitAfterDelay()
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			} else if len(m.rungs) > 0 {
				m.selected = len(m.rungs) - 1
			}
			m.refresh()
		case "down", "j":
			if m.selected < len(m.rungs)-1 {
				m.selected++
			} else if len(m.rungs) > 0 {
				m.selected = 0
			}
			m.refresh()
		case "home", "g":
			if len(m.rungs) > 0 {
				m.selected = 0
			}
			m.refresh()
		case "end", "G":
			if len(m.rungs) > 0 {
				m.selected = len(m.rungs) - 1
			}
			m.refresh()
		case "enter":
			if m.selected >= 0 && m.selected < len(m.rungs) {
				m.quitting = true
				return m, quitAfterDelay()
			}
		case "0", "1", "2", "3", "4", "5", "6", "7", "8", "9":
			now := time.Now()
			if !m.lastDigit.IsZero() && time.Since(m.lastDigit) > digitBufferTimeout {
				m.digitBuffer = ""
			}
			m.digitBuffer += msg.String()
			m.lastDigit = now
			for i, rung := range m.rungs {
				if strings.HasPrefix(strconv.Itoa(rung.Height), m.digitBuffer) {
					m.selected = i
					break
				}
			}
			m.refresh()
			return m, scheduleDigitExpiry(now)
		}
		return m, nil
	case digitExpireMsg:
		if msg.at.Equal(m.lastDigit) {
			m.digitBuffer = ""
		}
		return m, nil
	case tea.MouseMsg:
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case quitMsg:
		return m, tea.Quit
	}

	return m, nil
}

func (m *model) refresh() {
	m.viewport.SetContent(buildContent(m.rungs, m.selected))
	if m.selected >= 0 {
		target := 1 + m.selected
		top := m.viewport.YOffset
		bottom := top + m.viewport.Height - 2
		if target < top {
			m.viewport.YOffset = target
		} else if target >= bottom {
			m.viewport.YOffset = target - m.viewport.Height + 3
		}
	}
}

func (m *model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString(" ")
	switch {
	case m.quitting && m.selected >= 0 && m.selected < len(m.rungs):
		b.WriteString(helpStyle.Render(fmt.Sprintf("Selected: %s", m.rungs[m.selected].Label)))
	case m.quitting:
		b.WriteString(helpStyle.Render("Cancelled"))
	case m.digitBuffer != "":
		b.WriteString(helpStyle.Render(fmt.Sprintf("Typing height: %s_", m.digitBuffer)))
	default:
		b.WriteString(helpStyle.Render("↑/↓ select · Enter confirm · q cancel"))
	}
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	if !m.quitting {
		b.WriteString(helpStyle.Render("Type a height to jump (e.g. 720)"))
	}
	return b.String()
}

// Pick shows the ladder and returns the chosen rung. ok is false when
// the user cancels or the ladder is empty.
func Pick(title string, rungs []media.QualityEntry, preselect int) (media.QualityEntry, bool, error) {
	if len(rungs) == 0 {
		return media.QualityEntry{}, false, nil
	}
	if preselect < 0 || preselect >= len(rungs) {
		preselect = 0
	}
	m := newModel(title, rungs, preselect)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithOutput(os.Stderr))
	result, err := p.Run()
	if err != nil {
		return media.QualityEntry{}, false, err
	}
	final, ok := result.(*model)
	if !ok || final.selected < 0 || final.selected >= len(final.rungs) {
		return media.QualityEntry{}, false, nil
	}
	return final.rungs[final.selected], true, nil
}
