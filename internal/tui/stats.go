package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/cardeck/internal/model"
)

const (
	statsTopLimit     = 8
	statsQueryTimeout = 5 * time.Second
)

// statsLoadedMsg carries a verdict history query result.
type statsLoadedMsg struct {
	tally model.VerdictTally
	top   []model.CharacterTally
	err   error
}

// StatItem is one key/value row of a stats section.
type StatItem struct {
	Key   string
	Value string
}

// StatsPage shows the recorded like/pass history.
type StatsPage struct {
	ctx    context.Context
	reader model.VerdictReader
	keys   KeyMap

	loading  bool
	loaded   bool
	tally    model.VerdictTally
	top      []model.CharacterTally
	err      error
	loadedAt time.Time
}

// NewStatsPage creates the stats page. reader may be nil when no verdict
// database is configured.
func NewStatsPage(ctx context.Context, reader model.VerdictReader) *StatsPage {
	return &StatsPage{ctx: ctx, reader: reader, keys: DefaultKeyMap()}
}

func (p *StatsPage) ID() string    { return PageStats }
func (p *StatsPage) Init() tea.Cmd { return nil }

// Activate reloads the history every time the page is shown.
func (p *StatsPage) Activate() tea.Cmd { return p.load() }

func (p *StatsPage) load() tea.Cmd {
	if p.reader == nil || p.loading {
		return nil
	}
	p.loading = true
	ctx, reader := p.ctx, p.reader
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, statsQueryTimeout)
		defer cancel()
		tally, err := reader.VerdictTally(ctx)
		if err != nil {
			return statsLoadedMsg{err: err}
		}
		top, err := reader.TopLiked(ctx, statsTopLimit)
		return statsLoadedMsg{tally: tally, top: top, err: err}
	}
}

func (p *StatsPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case statsLoadedMsg:
		p.loading = false
		p.loaded = true
		p.err = msg.err
		if msg.err == nil {
			p.tally = msg.tally
			p.top = msg.top
			p.loadedAt = time.Now()
		}
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.Quit):
			return tea.Quit, nil
		case key.Matches(msg, p.keys.Stats):
			return nil, navTo(PageDeck)
		case key.Matches(msg, p.keys.Refresh):
			return p.load(), nil
		}
	}
	return nil, nil
}

func (p *StatsPage) View(width, height int) string {
	titleStyle := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Align(lipgloss.Center).
		Width(width)
	footer := lipgloss.NewStyle().Foreground(ColorGray).Render(" tab: back to cards • r: refresh • q: quit")

	sections := []string{titleStyle.Render("Verdict History"), ""}
	switch {
	case p.reader == nil:
		sections = append(sections, lipgloss.PlaceHorizontal(width, lipgloss.Center,
			lipgloss.NewStyle().Foreground(ColorGray).Render("verdict history is disabled (no database configured)")))
	case p.loading && !p.loaded:
		sections = append(sections, renderLoadingPlaceholder(width, max(3, height-4)))
	case p.err != nil:
		sections = append(sections, lipgloss.PlaceHorizontal(width, lipgloss.Center,
			lipgloss.NewStyle().Foreground(ColorPass).Render("could not load history: "+p.err.Error())))
	default:
		sections = append(sections, p.renderSummary(width), "", p.renderTopLiked(width))
	}
	sections = append(sections, "", footer)
	return strings.Join(sections, "\n")
}

func (p *StatsPage) renderSummary(width int) string {
	total := p.tally.Likes + p.tally.Passes
	rate := "n/a"
	if total > 0 {
		rate = fmt.Sprintf("%.0f%%", 100*float64(p.tally.Likes)/float64(total))
	}
	items := []StatItem{
		{"Cards judged", strconv.FormatInt(total, 10)},
		{"Liked", strconv.FormatInt(p.tally.Likes, 10)},
		{"Passed", strconv.FormatInt(p.tally.Passes, 10)},
		{"Like rate", rate},
	}
	if !p.loadedAt.IsZero() {
		items = append(items, StatItem{"Updated", p.loadedAt.Format("15:04:05")})
	}
	return renderStatsSection("Summary", items, width)
}

// renderTopLiked draws one bar per character, numbered, with a legend.
func (p *StatsPage) renderTopLiked(width int) string {
	if len(p.top) == 0 {
		return renderStatsSection("Most Liked", []StatItem{{"No likes yet", "swipe right on a card"}}, width)
	}

	bc := barchart.New(len(p.top)*4, 8,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(3),
	)
	barStyle := lipgloss.NewStyle().Foreground(ColorLike).Background(ColorLike)
	for i, t := range p.top {
		bc.Push(barchart.BarData{
			Label: strconv.Itoa(i + 1),
			Values: []barchart.BarValue{
				{Name: t.Name, Value: float64(t.Count), Style: barStyle},
			},
		})
	}
	bc.Draw()

	legend := make([]StatItem, len(p.top))
	for i, t := range p.top {
		legend[i] = StatItem{fmt.Sprintf("%d. %s", i+1, t.Name), strconv.FormatInt(t.Count, 10)}
	}
	chart := lipgloss.NewStyle().PaddingRight(3).Render(bc.View())
	return lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().PaddingLeft(2).Render(chart),
		renderStatsSection("Most Liked", legend, max(20, width-lipgloss.Width(chart)-2)))
}

// renderStatsSection renders a titled block of aligned key/value rows.
func renderStatsSection(title string, items []StatItem, width int) string {
	titleContent := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Render(title)

	maxKeyLen := 0
	for _, item := range items {
		maxKeyLen = max(maxKeyLen, lipgloss.Width(item.Key))
	}
	maxKeyLen += 3

	keyStyle := lipgloss.NewStyle().Foreground(ColorWhite).Width(maxKeyLen)
	valueStyle := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)

	lines := []string{titleContent}
	for _, item := range items {
		lines = append(lines, keyStyle.Render(item.Key+":")+" "+valueStyle.Render(item.Value))
	}
	return lipgloss.NewStyle().PaddingLeft(2).MaxWidth(width).Render(strings.Join(lines, "\n"))
}
