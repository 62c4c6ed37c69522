package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ListMsg represents messages that the list pane handles
type ListMsg interface {
	isListMsg()
}

type MoveUpMsg struct {
	Lines int
}

func (MoveUpMsg) isListMsg() {}

type MoveDownMsg struct {
	Lines    int
	MaxIndex int
}

func (MoveDownMsg) isListMsg() {}

type GoToTopMsg struct{}

func (GoToTopMsg) isListMsg() {}

type GoToBottomMsg struct {
	MaxIndex int
}

func (GoToBottomMsg) isListMsg() {}

type JumpToIndexMsg struct {
	Index    int
	MaxIndex int
}

func (JumpToIndexMsg) isListMsg() {}

type ResizeListMsg struct {
	Width  int
	Height int
}

func (ResizeListMsg) isListMsg() {}

// ListModel holds the cursor and scroll state of the result list
type ListModel struct {
	Cursor int // Index of the selected entry
	Offset int // Index of the first visible entry
	Width  int
	Height int
}

// NewListModel creates a list pane of the given size
func NewListModel(width, height int) ListModel {
	return ListModel{Width: width, Height: height}
}

// rows is the number of entries that fit inside the border and title
func (l *ListModel) rows() int {
	return max(l.Height-6, 1)
}

// Update applies a list message
func (l *ListModel) Update(msg ListMsg) {
	switch m := msg.(type) {
	case MoveUpMsg:
		l.Cursor = max(l.Cursor-max(m.Lines, 1), 0)
	case MoveDownMsg:
		if m.MaxIndex >= 0 {
			l.Cursor = min(l.Cursor+max(m.Lines, 1), m.MaxIndex)
		}
	case GoToTopMsg:
		l.Cursor = 0
	case GoToBottomMsg:
		l.Cursor = max(m.MaxIndex, 0)
	case JumpToIndexMsg:
		if m.Index >= 0 && m.Index <= m.MaxIndex {
			l.Cursor = m.Index
		}
	case ResizeListMsg:
		l.Width = m.Width
		l.Height = m.Height
	}
	l.scroll()
}

// scroll keeps the cursor inside the visible window
func (l *ListModel) scroll() {
	if l.Cursor < l.Offset {
		l.Offset = l.Cursor
	}
	if l.Cursor >= l.Offset+l.rows() {
		l.Offset = l.Cursor - l.rows() + 1
	}
}

// ListView renders the list pane
func ListView(model ListModel, entries []*Entry, title string) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("205")).
		Padding(0, 1).
		Width(model.Width).
		Height(model.Height - 4)

	var content strings.Builder
	content.WriteString(lipgloss.NewStyle().Bold(true).Render(title) + "\n\n")

	if len(entries) == 0 {
		content.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render("No items"))
		return style.Render(content.String())
	}

	end := min(model.Offset+model.rows(), len(entries))
	for i := model.Offset; i < end; i++ {
		entry := entries[i]
		marker := " "
		if entry.Item.Pinned {
			marker = "*"
		}
		line := clip(fmt.Sprintf("%s #%d %s", marker, entry.Item.ID, entry.Preview), model.Width-4)

		if i == model.Cursor {
			line = lipgloss.NewStyle().
				Background(lipgloss.Color("62")).
				Foreground(lipgloss.Color("230")).
				Width(model.Width - 4).
				Render(line)
		}
		content.WriteString(line + "\n")
	}

	return style.Render(content.String())
}

// clip cuts s to at most width runes, marking the cut with "...".
func clip(s string, width int) string {
	runes := []rune(strings.ReplaceAll(s, "\n", " "))
	if width <= 0 {
		return ""
	}
	if len(runes) <= width {
		return string(runes)
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
