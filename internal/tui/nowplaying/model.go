package nowplaying

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/justchokingaround/watchengine/internal/mediasession"
	"github.com/justchokingaround/watchengine/internal/tui/styles"
)

const (
	refreshInterval = 250 * time.Millisecond
	defaultWidth    = 60
)

type tickMsg time.Time

// KeyMap defines keybindings for the panel
type KeyMap struct {
	Previous key.Binding
	Next     key.Binding
	Hide     key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Previous: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "previous"),
		),
		Next: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "next"),
		),
		Hide: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "hide"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Previous, k.Next, k.Hide, k.Quit}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// Model is the now playing panel
type Model struct {
	surface  *Surface
	keys     KeyMap
	help     help.Model
	progress progress.Model

	state    mediasession.State
	shown    bool
	width    int
	quitting bool
}

// NewModel creates the panel for surface
func NewModel(surface *Surface) Model {
	bar := progress.New(
		progress.WithSolidFill(string(styles.OxocarbonPurple)),
		progress.WithoutPercentage(),
	)
	bar.Width = barWidth(defaultWidth)

	m := Model{
		surface:  surface,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		progress: bar,
		width:    defaultWidth,
	}
	m.sync()
	return m
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		h, _ := styles.AppStyle.GetFrameSize()
		m.progress.Width = barWidth(msg.Width)
		m.help.Width = msg.Width - h
		return m, nil

	case tickMsg:
		m.sync()
		return m, tick()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Hide):
			m.surface.hide()
			m.sync()
			return m, nil
		case key.Matches(msg, m.keys.Previous):
			return m, m.send(mediasession.CommandPrevious)
		case key.Matches(msg, m.keys.Next):
			return m, m.send(mediasession.CommandNext)
		}
	}
	return m, nil
}

// send dispatches cmd off the UI goroutine
func (m Model) send(cmd mediasession.Command) tea.Cmd {
	if !m.shown {
		return nil
	}
	surface := m.surface
	return func() tea.Msg {
		surface.dispatch(cmd)
		return nil
	}
}

func (m *Model) sync() {
	m.state, m.shown = m.surface.snapshot()
	m.keys.Previous.SetEnabled(m.shown && m.state.HasPrevious)
	m.keys.Next.SetEnabled(m.shown && m.state.HasNext)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	h, _ := styles.AppStyle.GetFrameSize()
	inner := max(20, m.width-h)

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Now Playing"))
	b.WriteString("\n\n")

	if !m.shown {
		b.WriteString(styles.HelpStyle.Render("Nothing playing"))
	} else {
		b.WriteString(styles.SubtitleStyle.Render(runewidth.Truncate(m.state.Title, inner, "…")))
		b.WriteString("\n")
		if m.state.EpisodeTitle != "" {
			b.WriteString(styles.MetadataStyle.Render(runewidth.Truncate(m.state.EpisodeTitle, inner, "…")))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(m.renderProgress())
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))

	return styles.AppStyle.Width(inner).Render(b.String())
}

func (m Model) renderProgress() string {
	status := styles.PausedStyle.Render("⏸")
	if m.state.Playing {
		status = styles.PlayingStyle.Render("▶")
	}

	var percent float64
	if m.state.Duration > 0 {
		percent = m.state.CurrentTime / m.state.Duration
	}

	total := "--:--"
	if m.state.Duration > 0 {
		total = formatClock(m.state.Duration)
	}
	position := fmt.Sprintf("%s / %s", formatClock(m.state.CurrentTime), total)
	return lipgloss.JoinHorizontal(lipgloss.Center,
		status, " ",
		m.progress.ViewAs(percent), " ",
		styles.MetadataStyle.Render(position),
	)
}

// barWidth leaves room for the frame and the clock
func barWidth(width int) int {
	return max(10, width-30)
}

// formatClock renders seconds as m:ss or h:mm:ss
func formatClock(seconds float64) string {
	if seconds <= 0 {
		return "0:00"
	}
	total := int(seconds)
	hours, minutes, secs := total/3600, (total%3600)/60, total%60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}
