package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tessro/sheetplayer/internal/core"
	apperrors "github.com/tessro/sheetplayer/internal/errors"
	"github.com/tessro/sheetplayer/internal/poller"
	"github.com/tessro/sheetplayer/internal/tui/components"
	"github.com/tessro/sheetplayer/internal/tui/styles"
)

// Panel represents which panel is focused
type Panel int

const (
	PanelNowPlaying Panel = iota
	PanelFeatures
)

const errorDisplay = 5 * time.Second

// Model is the main TUI model. It renders what the poller publishes and
// never calls the backend itself.
type Model struct {
	updates <-chan poller.Update

	width        int
	height       int
	focusedPanel Panel

	state    *core.PlayerState
	status   poller.State
	lastPoll time.Time
	loaded   bool

	nowPlaying *components.NowPlaying
	features   *components.Features
	spinner    spinner.Model

	showHelp bool

	lastError   error
	errorExpiry time.Time

	quitting bool
}

// NewModel creates a model fed by updates.
func NewModel(updates <-chan poller.Update) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return Model{
		updates:      updates,
		focusedPanel: PanelNowPlaying,
		status:       poller.Polling,
		nowPlaying:   components.NewNowPlaying(),
		features:     components.NewFeatures(),
		spinner:      sp,
	}
}

// Messages
type updateMsg poller.Update
type closedMsg struct{}

func (m Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-m.updates
		if !ok {
			return closedMsg{}
		}
		return updateMsg(u)
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForUpdate())
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		if m.loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case updateMsg:
		m.loaded = true
		m.status = msg.Status
		m.lastPoll = msg.At
		if msg.Err != nil {
			m.lastError = msg.Err
			m.errorExpiry = msg.At.Add(errorDisplay)
		} else {
			m.state = msg.State
			if msg.At.After(m.errorExpiry) {
				m.lastError = nil
			}
		}
		if m.status == poller.Unauthenticated {
			return m, nil
		}
		return m, m.waitForUpdate()

	case closedMsg:
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	}

	if m.showHelp {
		switch msg.String() {
		case "?", "esc":
			m.showHelp = false
		}
		return m, nil
	}

	switch msg.String() {
	case "?":
		m.showHelp = true
	case "tab", "shift+tab":
		m.focusedPanel = (m.focusedPanel + 1) % 2
	}
	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.width == 0 {
		return "Loading..."
	}

	if m.showHelp {
		return m.renderHelp()
	}

	if !m.loaded {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Render(m.spinner.View() + " Connecting...")
	}

	if m.status == poller.Unauthenticated {
		return m.renderLoggedOut()
	}

	leftWidth := m.width * 45 / 100
	rightWidth := m.width - leftWidth - 4
	height := m.height - 3

	var snap *core.PlaybackSnapshot
	var desc *core.AudioDescriptor
	if m.state != nil {
		snap = m.state.Snapshot
		desc = m.state.AudioFeatures
	}

	nowPlaying := m.nowPlaying.Render(snap, leftWidth-2, height, m.focusedPanel == PanelNowPlaying)
	features := m.features.Render(desc, snap.HasTrack(), rightWidth-2, height, m.focusedPanel == PanelFeatures)

	main := lipgloss.JoinHorizontal(lipgloss.Top, nowPlaying, features)
	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m Model) renderStatusBar() string {
	status := styles.Dim.Render("q:quit  ?:help  tab:switch panel")
	if !m.lastPoll.IsZero() {
		status += styles.Dim.Render("  updated " + m.lastPoll.Local().Format("15:04:05"))
	}
	if m.lastError != nil {
		status = styles.Paused.Render("Error: " + m.lastError.Error())
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Padding(0, 1).
		Render(status)
}

func (m Model) renderLoggedOut() string {
	msg := "Session ended."
	if m.lastError != nil {
		msg = "Session ended: " + m.lastError.Error()
	}
	body := lipgloss.JoinVertical(lipgloss.Center,
		styles.ErrorText.Render(msg),
		"",
		styles.Muted.Render(apperrors.GetSuggestion(apperrors.ErrNotAuthenticated)),
		"",
		styles.Dim.Render("Press q to quit"),
	)

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Padding(1, 2).Render(body))
}

func (m Model) renderHelp() string {
	help := `
  Sheetplayer - Keyboard Shortcuts
  ════════════════════════════════

  q, Ctrl+C    Quit
  ?            Toggle help
  Tab          Switch panel

  The dashboard refreshes on every poll.

  Press ? or Esc to close
`

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(styles.BorderStyle.Render(help))
}

// Run starts p, shows the dashboard until the user quits, then stops p.
func Run(ctx context.Context, p *poller.Poller) error {
	if err := p.Start(ctx); err != nil && !errors.Is(err, poller.ErrAlreadyStarted) {
		return err
	}
	defer p.Stop()

	prog := tea.NewProgram(NewModel(p.Updates()), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
