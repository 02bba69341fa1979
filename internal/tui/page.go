package tui

import tea "github.com/charmbracelet/bubbletea"

// Page identifiers.
const (
	PageDeck  = "deck"
	PageStats = "stats"
)

// Page represents a top-level screen in the TUI.
type Page interface {
	ID() string
	Init() tea.Cmd
	// Activate is called each time the page becomes visible.
	Activate() tea.Cmd
	Update(msg tea.Msg) (tea.Cmd, *PageNav)
	View(width, height int) string
}

// PageNav is returned from Update to request a page switch.
type PageNav struct {
	PageID string
}

func navTo(id string) *PageNav { return &PageNav{PageID: id} }
