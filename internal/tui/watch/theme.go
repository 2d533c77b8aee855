// Package watch implements the `vitrine watch` monitor TUI. It follows the
// status API: /healthz and /surfaces are polled, /events is streamed.
package watch

import "github.com/charmbracelet/lipgloss"

// Theme holds every style the monitor draws with.
type Theme struct {
	StatusOK     lipgloss.Style
	StatusActive lipgloss.Style
	StatusFailed lipgloss.Style
	StatusClosed lipgloss.Style

	Border    lipgloss.Style
	Title     lipgloss.Style
	Header    lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style

	TickerActive   lipgloss.Style
	TickerInactive lipgloss.Style
}

func NewDefaultTheme() Theme {
	glass := lipgloss.Color("#5FAFD7")
	amber := lipgloss.Color("#E5C07B")
	slate := lipgloss.Color("#5C6370")

	return Theme{
		StatusOK:     lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379")),
		StatusActive: lipgloss.NewStyle().Foreground(amber),
		StatusFailed: lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75")).Bold(true),
		StatusClosed: lipgloss.NewStyle().Foreground(slate),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(glass).
			Padding(0, 1),
		Title:     lipgloss.NewStyle().Foreground(glass).Bold(true),
		Header:    lipgloss.NewStyle().Foreground(lipgloss.Color("#ABB2BF")).Bold(true),
		Dim:       lipgloss.NewStyle().Foreground(slate),
		Highlight: lipgloss.NewStyle().Foreground(amber).Bold(true),

		TickerActive:   lipgloss.NewStyle().Foreground(glass),
		TickerInactive: lipgloss.NewStyle().Foreground(lipgloss.Color("#3E4451")),
	}
}
