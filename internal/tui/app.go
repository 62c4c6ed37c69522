// Package tui is the interactive history browser behind 'clipvault browse'.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yiblet/clipvault/internal/clipboard"
	"github.com/yiblet/clipvault/internal/search"
	"github.com/yiblet/clipvault/internal/store"
)

// UIMode represents the current modal state of the browser
type UIMode int

const (
	NormalMode UIMode = iota
	QueryMode
	DeleteMode
)

// Source is the part of a session the browser drives.
type Source interface {
	Search(query string, limit int) ([]*store.Item, error)
	Content(id int64) ([]byte, error)
	Pin(id int64, pinned bool) error
	Delete(id int64) (bool, error)
}

// Summarizer turns an item and its content into a one-line preview.
type Summarizer func(item *store.Item, content []byte) string

// Entry is one row of the list
type Entry struct {
	Item    *store.Item
	Preview string
	Body    string // readable text for the detail pane; empty for binary kinds
}

type flashExpiredMsg struct{}

// AppModel is the browser state
type AppModel struct {
	Width       int
	Height      int
	ListWidth   int
	DetailWidth int
	CurrentMode UIMode

	List    ListModel
	Query   QueryModel
	Entries []*Entry
	Limit   int

	FlashMessage string
	FlashExpiry  time.Time

	source    Source
	board     clipboard.Clipboard
	summarize Summarizer
}

// NewAppModel creates a browser over source listing up to limit items and
// loads the recent history.
func NewAppModel(source Source, board clipboard.Clipboard, limit int, summarize Summarizer) *AppModel {
	defaultWidth, defaultHeight := 120, 20
	defaultListWidth := 50

	a := &AppModel{
		Width:       defaultWidth,
		Height:      defaultHeight,
		ListWidth:   defaultListWidth,
		DetailWidth: defaultWidth - defaultListWidth - 2,
		CurrentMode: NormalMode,
		List:        NewListModel(defaultListWidth, defaultHeight),
		Query:       NewQueryModel(),
		Limit:       limit,
		source:      source,
		board:       board,
		summarize:   summarize,
	}
	if err := a.reload(); err != nil {
		a.FlashMessage = err.Error()
		a.FlashExpiry = time.Now().Add(5 * time.Second)
	}
	return a
}

// Run starts the browser on the alternate screen and blocks until it quits.
func Run(a *AppModel) error {
	_, err := tea.NewProgram(a, tea.WithAltScreen()).Run()
	return err
}

// Init implements tea.Model
func (a *AppModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (a *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(m.Width, m.Height)
	case tea.KeyMsg:
		return a.handleKeyPress(m)
	case flashExpiredMsg:
		if !time.Now().Before(a.FlashExpiry) {
			a.FlashMessage = ""
			a.FlashExpiry = time.Time{}
		}
	}
	return a, nil
}

// View implements tea.Model
func (a *AppModel) View() string {
	return AppView(*a)
}

// Selected returns the entry under the cursor, or nil for an empty list
func (a *AppModel) Selected() *Entry {
	if a.List.Cursor < 0 || a.List.Cursor >= len(a.Entries) {
		return nil
	}
	return a.Entries[a.List.Cursor]
}

// SetQuery applies query as if it had been typed after '/'
func (a *AppModel) SetQuery(query string) error {
	a.Query.Update(StartQueryMsg{})
	a.Query.Update(UpdateQueryInputMsg{Input: query})
	a.Query.Update(ApplyQueryMsg{})
	return a.requery()
}

// requery reloads after the applied query changed and selects the best match
func (a *AppModel) requery() error {
	err := a.reload()
	a.List.Update(GoToTopMsg{})
	return err
}

func (a *AppModel) resize(width, height int) {
	a.Width = max(width, 30)
	a.Height = height

	minListWidth := 20
	a.ListWidth = max(min(50, a.Width*2/5), minListWidth)
	a.DetailWidth = max(a.Width-a.ListWidth-2, 10)

	a.List.Update(ResizeListMsg{Width: a.ListWidth, Height: a.Height})
}

// reload re-runs the applied query and keeps the cursor on the same item
// when it is still listed.
func (a *AppModel) reload() error {
	var keep int64
	if e := a.Selected(); e != nil {
		keep = e.Item.ID
	}

	items, err := a.source.Search(a.Query.Applied, a.Limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	entries := make([]*Entry, 0, len(items))
	for _, item := range items {
		content, err := a.source.Content(item.ID)
		if err != nil {
			// Deleted by another process between search and read.
			continue
		}
		entries = append(entries, &Entry{
			Item:    item,
			Preview: a.summarize(item, content),
			Body:    body(item, content),
		})
	}
	a.Entries = entries

	cursor := min(a.List.Cursor, len(entries)-1)
	for i, e := range entries {
		if e.Item.ID == keep {
			cursor = i
			break
		}
	}
	a.List.Update(JumpToIndexMsg{Index: max(cursor, 0), MaxIndex: max(len(entries)-1, 0)})
	return nil
}

func (a *AppModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.CurrentMode {
	case QueryMode:
		return a.handleQueryModeKeys(msg)
	case DeleteMode:
		return a.handleDeleteModeKeys(msg.String())
	default:
		return a.handleNormalModeKeys(msg.String())
	}
}

func (a *AppModel) handleQueryModeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return a, tea.Quit
	case tea.KeyEsc:
		a.Query.Update(CancelQueryMsg{})
		a.CurrentMode = NormalMode
		return a, nil
	case tea.KeyEnter:
		a.Query.Update(ApplyQueryMsg{})
		a.CurrentMode = NormalMode
		if err := a.requery(); err != nil {
			return a, a.setFlashMessage(err.Error(), 3*time.Second)
		}
		return a, nil
	case tea.KeyBackspace, tea.KeyCtrlH:
		a.Query.Backspace()
		return a, nil
	case tea.KeySpace:
		a.Query.Update(UpdateQueryInputMsg{Input: a.Query.Input + " "})
		return a, nil
	case tea.KeyRunes:
		a.Query.Update(UpdateQueryInputMsg{Input: a.Query.Input + string(msg.Runes)})
		return a, nil
	}
	return a, nil
}

func (a *AppModel) handleDeleteModeKeys(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c":
		return a, tea.Quit
	case "y", "Y":
		a.CurrentMode = NormalMode
		entry := a.Selected()
		if entry == nil {
			return a, nil
		}
		if _, err := a.source.Delete(entry.Item.ID); err != nil {
			return a, a.setFlashMessage(fmt.Sprintf("Failed to delete item: %v", err), 3*time.Second)
		}
		if err := a.reload(); err != nil {
			return a, a.setFlashMessage(err.Error(), 3*time.Second)
		}
		return a, a.setFlashMessage(fmt.Sprintf("Deleted #%d", entry.Item.ID), 2*time.Second)
	case "n", "N", "esc":
		a.CurrentMode = NormalMode
	}
	return a, nil
}

func (a *AppModel) handleNormalModeKeys(key string) (tea.Model, tea.Cmd) {
	maxIndex := len(a.Entries) - 1

	switch key {
	case "ctrl+c", "q":
		return a, tea.Quit
	case "esc":
		if a.Query.Applied == "" {
			return a, tea.Quit
		}
		a.Query.Update(ClearQueryMsg{})
		if err := a.requery(); err != nil {
			return a, a.setFlashMessage(err.Error(), 3*time.Second)
		}
	case "up", "k":
		a.List.Update(MoveUpMsg{Lines: 1})
	case "down", "j":
		a.List.Update(MoveDownMsg{Lines: 1, MaxIndex: maxIndex})
	case "pgup", "ctrl+u":
		a.List.Update(MoveUpMsg{Lines: a.List.rows()})
	case "pgdown", "ctrl+d":
		a.List.Update(MoveDownMsg{Lines: a.List.rows(), MaxIndex: maxIndex})
	case "g", "home":
		a.List.Update(GoToTopMsg{})
	case "G", "end":
		a.List.Update(GoToBottomMsg{MaxIndex: maxIndex})
	case "/":
		a.Query.Update(StartQueryMsg{})
		a.CurrentMode = QueryMode
	case "r":
		if err := a.reload(); err != nil {
			return a, a.setFlashMessage(err.Error(), 3*time.Second)
		}
	case "p":
		return a, a.togglePin()
	case "d":
		if a.Selected() != nil {
			a.CurrentMode = DeleteMode
		}
	case "enter", "c":
		return a, a.copyToClipboard()
	}
	return a, nil
}

func (a *AppModel) togglePin() tea.Cmd {
	entry := a.Selected()
	if entry == nil {
		return nil
	}
	pinned := !entry.Item.Pinned
	if err := a.source.Pin(entry.Item.ID, pinned); err != nil {
		return a.setFlashMessage(fmt.Sprintf("Failed to pin item: %v", err), 3*time.Second)
	}
	if err := a.reload(); err != nil {
		return a.setFlashMessage(err.Error(), 3*time.Second)
	}
	if pinned {
		return a.setFlashMessage(fmt.Sprintf("Pinned #%d", entry.Item.ID), 2*time.Second)
	}
	return a.setFlashMessage(fmt.Sprintf("Unpinned #%d", entry.Item.ID), 2*time.Second)
}

// copyToClipboard writes the selected item's content to the clipboard
func (a *AppModel) copyToClipboard() tea.Cmd {
	entry := a.Selected()
	if entry == nil {
		return a.setFlashMessage("No item selected", 2*time.Second)
	}

	content, err := a.source.Content(entry.Item.ID)
	if err != nil {
		return a.setFlashMessage(fmt.Sprintf("Error reading content: %v", err), 3*time.Second)
	}
	if err := a.board.Write(entry.Item.Kind, content); err != nil {
		return a.setFlashMessage(fmt.Sprintf("Error writing clipboard: %v", err), 3*time.Second)
	}
	return a.setFlashMessage(fmt.Sprintf("Copied %d bytes to clipboard", len(content)), 2*time.Second)
}

// setFlashMessage shows message in the status line until duration passes
func (a *AppModel) setFlashMessage(message string, duration time.Duration) tea.Cmd {
	a.FlashMessage = message
	a.FlashExpiry = time.Now().Add(duration)
	return tea.Tick(duration, func(time.Time) tea.Msg {
		return flashExpiredMsg{}
	})
}

// AppView renders the whole browser
func AppView(model AppModel) string {
	title := "History"
	if model.Query.Applied != "" {
		title = "Search: " + model.Query.Applied
	}
	title = fmt.Sprintf("%s (%d)", title, len(model.Entries))

	var selected *Entry
	if model.List.Cursor < len(model.Entries) {
		selected = model.Entries[model.List.Cursor]
	}

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		ListView(model.List, model.Entries, title),
		DetailView(selected, model.DetailWidth, model.Height),
	)
	return panes + "\n" + renderStatusLine(model)
}

// renderStatusLine renders the bottom line: a flash message, the prompt of
// the current mode, or key hints.
func renderStatusLine(model AppModel) string {
	style := lipgloss.NewStyle().Width(model.Width)

	if model.FlashMessage != "" && time.Now().Before(model.FlashExpiry) {
		return style.Foreground(lipgloss.Color("10")).Render(model.FlashMessage)
	}

	switch model.CurrentMode {
	case QueryMode:
		return style.Render(fmt.Sprintf("/%s (Enter to search, Esc to cancel)", model.Query.Input))
	case DeleteMode:
		if e := model.List.Cursor; e < len(model.Entries) {
			return style.Foreground(lipgloss.Color("9")).
				Render(fmt.Sprintf("Delete #%d? (y/n)", model.Entries[e].Item.ID))
		}
	}
	return style.Render("j/k move  / search  p pin  d delete  enter copy  r reload  q quit")
}

// body returns the readable text of an item for the detail pane
func body(item *store.Item, content []byte) string {
	switch item.Kind {
	case store.KindText:
		return string(content)
	case store.KindRtf:
		return search.StripRTF(string(content))
	default:
		return ""
	}
}

// wrapLines splits text into display lines no wider than width, dropping
// control characters other than newlines.
func wrapLines(text string, width int) []string {
	text = strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r == '\n':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, text)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		runes := []rune(line)
		for len(runes) > width && width > 0 {
			lines = append(lines, string(runes[:width]))
			runes = runes[width:]
		}
		lines = append(lines, string(runes))
	}
	return lines
}
