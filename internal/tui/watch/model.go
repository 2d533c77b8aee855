package watch

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/vitrine/internal/events"
)

const (
	maxEventLog  = 50
	pollInterval = 5 * time.Second
)

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	// State
	health   HealthState
	surfaces map[string]*SurfaceState
	counters Counters
	eventLog []events.Notice

	// Live indicators
	ticker  Ticker
	spinner Spinner

	// UI state
	theme Theme
	table table.Model

	// Communication
	notices chan events.Notice

	// Error display
	lastError string
}

// New creates a new watch TUI model.
func New(apiURL, apiKey string) *Model {
	t := table.New(
		table.WithColumns(surfaceColumns(80)),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#874BFD"))
	t.SetStyles(styles)

	return &Model{
		apiURL:   apiURL,
		apiKey:   apiKey,
		surfaces: make(map[string]*SurfaceState),
		notices:  make(chan events.Notice, 100),
		ticker:   NewTicker(),
		spinner:  NewSpinner(),
		theme:    NewDefaultTheme(),
		table:    t,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToNotices(m.apiURL, m.apiKey, m.notices),
		receiveNextNotice(m.notices),
		func() tea.Msg { return fetchHealth(m.apiURL, m.apiKey) },
		func() tea.Msg { return fetchSurfaces(m.apiURL, m.apiKey) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(surfaceColumns(m.width - 6))

	case tickMsg:
		m.ticker.Tick()
		m.spinner.Decay()
		m.refreshTable()
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case noticeMsg:
		n := events.Notice(msg)

		m.eventLog = append([]events.Notice{n}, m.eventLog...)
		if len(m.eventLog) > maxEventLog {
			m.eventLog = m.eventLog[:maxEventLog]
		}
		m.spinner.OnEvent()
		applyNotice(m.surfaces, &m.counters, n)
		m.health.LiveSurfaces = liveCount(m.surfaces)
		m.refreshTable()

		m.health.Connected = true
		m.lastError = ""

		return m, receiveNextNotice(m.notices)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.LiveSurfaces = msg.LiveSurfaces
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		m.lastError = ""

		return m, tea.Tick(pollInterval, func(time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.apiKey)
		})

	case surfacesMsg:
		applySnapshot(m.surfaces, msg, time.Now())
		m.refreshTable()
		return m, tea.Tick(pollInterval, func(time.Time) tea.Msg {
			return fetchSurfaces(m.apiURL, m.apiKey)
		})

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "SSE disconnected, reconnecting..."
		// The pending receiveNextNotice keeps waiting on the same channel.
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToNotices(m.apiURL, m.apiKey, m.notices)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(pollInterval, func(time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.apiKey)
		})
	}

	return m, nil
}

func (m *Model) refreshTable() {
	m.table.SetRows(surfaceRows(sortedSurfaces(m.surfaces), time.Now()))
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to vitrine..."
	}

	header := renderHeader(m.health, m.counters, m.ticker, m.spinner, m.theme, m.width)
	surfaces := m.theme.Border.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left, m.theme.Title.Render("SURFACES"), m.table.View()),
	)
	noticeStream := renderNoticeStream(m.eventLog, m.theme, m.width)

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [↑/↓] Navigate Surfaces")

	parts := []string{header, surfaces, noticeStream}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func surfaceColumns(width int) []table.Column {
	title := max(12, width-8-10-10-8-8-12)
	return []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Kind", Width: 10},
		{Title: "State", Width: 10},
		{Title: "Age", Width: 8},
		{Title: "Results", Width: 8},
		{Title: "Files", Width: 6},
		{Title: "Title", Width: title},
	}
}

func surfaceRows(list []*SurfaceState, now time.Time) []table.Row {
	rows := make([]table.Row, 0, len(list))
	for _, s := range list {
		state := "live"
		end := now
		if s.Closed {
			state = s.Reason
			if state == "" {
				state = "closed"
			}
			end = s.ClosedAt
		}
		age := "-"
		if !s.CreatedAt.IsZero() && !end.Before(s.CreatedAt) {
			age = formatDuration(end.Sub(s.CreatedAt))
		}
		kind := s.Kind
		if kind == "" {
			kind = "?"
		}
		rows = append(rows, table.Row{
			shortID(s.ID),
			kind,
			state,
			age,
			fmt.Sprintf("%d", s.Results),
			fmt.Sprintf("%d", s.Files),
			s.Title,
		})
	}
	return rows
}
