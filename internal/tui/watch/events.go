package watch

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/vitrine/internal/events"
)

const maxLogLines = 10

func renderNoticeStream(log []events.Notice, theme Theme, width int) string {
	innerWidth := width - 4

	if len(log) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("NOTICES"),
			theme.Dim.Render("  Waiting for notices..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, n := range log {
		if i >= maxLogLines {
			break
		}
		lines = append(lines, formatNotice(n, theme))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("NOTICES"),
		lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n")),
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatNotice(n events.Notice, theme Theme) string {
	var typeStyle lipgloss.Style
	switch n.Type {
	case events.TopicSurfaceCreated:
		typeStyle = theme.StatusActive
	case events.TopicSurfaceClosed:
		typeStyle = theme.StatusClosed
	case events.TopicBlobWritten, events.TopicDownloadMoved, events.TopicResultEmitted:
		typeStyle = theme.StatusOK
	default:
		typeStyle = theme.Dim
	}

	return fmt.Sprintf("%s %s %s",
		theme.Dim.Render(n.At.Format("15:04:05")),
		typeStyle.Render(fmt.Sprintf("%-16s", n.Type)),
		describeNotice(n),
	)
}

// describeNotice picks the interesting fields out of a notice payload.
func describeNotice(n events.Notice) string {
	data := make(map[string]any)
	_ = json.Unmarshal(n.Data, &data)

	var parts []string
	id, _ := data["surface_id"].(string)
	if id == "" {
		id, _ = data["id"].(string)
	}
	if id != "" {
		parts = append(parts, fmt.Sprintf("[%s]", shortID(id)))
	}
	if title, ok := data["title"].(string); ok && title != "" {
		parts = append(parts, title)
	}
	if reason, ok := data["reason"].(string); ok {
		parts = append(parts, reason)
	}
	if bytes, ok := data["bytes"].(float64); ok {
		parts = append(parts, fmt.Sprintf("%d bytes", int(bytes)))
	}
	if path, ok := data["path"].(string); ok {
		parts = append(parts, filepath.Base(path))
	}

	if len(parts) == 0 {
		raw := string(n.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}
	return strings.Join(parts, " ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
