package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/yiblet/clipvault/internal/store"
)

var (
	idStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	pinStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	kindStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	tagStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	labelStyle  = lipgloss.NewStyle().Bold(true).Width(10)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// renderRow formats one search result line
func renderRow(item *store.Item, summary string) string {
	var b strings.Builder

	b.WriteString(idStyle.Render(fmt.Sprintf("#%-5d", item.ID)))
	b.WriteString(" ")
	if item.Pinned {
		b.WriteString(pinStyle.Render("*"))
	} else {
		b.WriteString(" ")
	}
	b.WriteString(" ")
	b.WriteString(kindStyle.Render(fmt.Sprintf("%-5s", item.Kind)))
	b.WriteString(" ")
	b.WriteString(summary)

	if len(item.Tags) > 0 {
		b.WriteString(" ")
		b.WriteString(tagStyle.Render(renderTags(item.Tags)))
	}
	return b.String()
}

// renderDetail formats the full metadata of one item
func renderDetail(item *store.Item, summary string) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(fmt.Sprintf("Item #%d", item.ID)))
	b.WriteString("\n")

	field := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	field("kind", item.Kind.String())
	field("created", formatMillis(item.CreatedAt))
	if item.LastSeenAt != nil {
		field("seen", formatMillis(*item.LastSeenAt))
	}
	if item.SourceApp != nil {
		field("source", *item.SourceApp)
	}
	if item.Pinned {
		field("pinned", pinStyle.Render("yes"))
	}
	if len(item.Tags) > 0 {
		field("tags", tagStyle.Render(renderTags(item.Tags)))
	}
	if item.InBlob {
		field("blob", item.ContentRef)
	}
	field("preview", summary)

	return b.String()
}

func renderTags(tags []string) string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = "#" + t
	}
	return strings.Join(out, " ")
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
