package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(9)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// DetailView renders the metadata and readable content of one entry
func DetailView(entry *Entry, width, height int) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Width(width).
		Height(height - 4)

	if entry == nil {
		return style.Render(dimStyle.Render("Nothing selected"))
	}

	item := entry.Item
	var b strings.Builder
	field := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}

	b.WriteString(lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Item #%d", item.ID)) + "\n")
	field("kind", item.Kind.String())
	field("created", time.UnixMilli(item.CreatedAt).Local().Format("2006-01-02 15:04:05"))
	if item.SourceApp != nil {
		field("source", *item.SourceApp)
	}
	if item.Pinned {
		field("pinned", "yes")
	}
	if len(item.Tags) > 0 {
		field("tags", "#"+strings.Join(item.Tags, " #"))
	}
	b.WriteString("\n")

	used := strings.Count(b.String(), "\n")
	room := max(height-6-used, 0)

	if entry.Body == "" {
		b.WriteString(dimStyle.Render(entry.Preview))
		return style.Render(b.String())
	}

	lines := wrapLines(entry.Body, width-4)
	if len(lines) > room {
		lines = lines[:room]
	}
	b.WriteString(strings.Join(lines, "\n"))

	return style.Render(b.String())
}
