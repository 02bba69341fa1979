package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/cardeck/internal/model"
)

const (
	cardWidth  = 36
	cardHeight = 20
	// content area inside the rounded border and one column of padding
	cardInner = cardWidth - 4
)

// relationLabels abbreviates model.CharacterRecord.Relations for chart axes.
var relationLabels = []string{"Flm", "Sht", "TV", "Gam", "Att", "Aly", "Enm"}

func cardStyle(edge lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(edge).
		Padding(0, 1).
		Width(cardWidth - 2).
		Height(cardHeight - 2).
		MaxHeight(cardHeight)
}

func clip(s string, w int) string {
	return lipgloss.NewStyle().MaxWidth(w).Render(s)
}

func center(s string) string {
	return lipgloss.PlaceHorizontal(cardInner, lipgloss.Center, s)
}

// renderCardFront shows the name, portrait reference and headline counts.
func renderCardFront(c model.CharacterRecord, edge lipgloss.Color) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(ColorWhite)
	muted := lipgloss.NewStyle().Foreground(ColorGray)
	badge := lipgloss.NewStyle().Foreground(ColorAccent)

	var lines []string
	lines = append(lines, "", center(title.Render(clip(c.Name, cardInner))), "")
	if c.ImageURL != "" {
		lines = append(lines, center(muted.Render("◉ portrait")), center(muted.Render(clip(c.ImageURL, cardInner))))
	} else {
		lines = append(lines, center(muted.Render("◌ no portrait")), "")
	}
	lines = append(lines, "")

	counts := fmt.Sprintf("🎬 %d Films   📺 %d TV Shows", len(c.Films), len(c.TVShows))
	lines = append(lines, center(counts), "")

	if len(c.Films) > 0 {
		lines = append(lines, lipgloss.NewStyle().Bold(true).Render("Featured In:"))
		for _, f := range c.Films[:min(3, len(c.Films))] {
			lines = append(lines, badge.Render("• "+clip(f, cardInner-2)))
		}
		if extra := len(c.Films) - 3; extra > 0 {
			lines = append(lines, muted.Render(fmt.Sprintf("  +%d more", extra)))
		}
	}

	body := strings.Join(lines, "\n")
	footer := center(muted.Italic(true).Render("click or space to flip"))
	return cardStyle(edge).Render(padTo(body, cardHeight-3) + "\n" + footer)
}

// renderCardBack shows the relation chart and up to two entries per list.
func renderCardBack(c model.CharacterRecord, edge lipgloss.Color) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(ColorWhite)
	muted := lipgloss.NewStyle().Foreground(ColorGray)

	lines := []string{
		center(title.Render(clip(c.Name, cardInner))),
		center(muted.Render("Character Details")),
	}
	if chart := relationChart(c); chart != "" {
		lines = append(lines, chart)
	}

	sections := []struct {
		name  string
		items []string
		color lipgloss.Color
	}{
		{"Games", c.VideoGames, ColorCardBack},
		{"Attractions", c.ParkAttractions, ColorAccent},
		{"Allies", c.Allies, ColorLike},
		{"Enemies", c.Enemies, ColorPass},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		head := lipgloss.NewStyle().Bold(true).Foreground(s.color)
		lines = append(lines, head.Render(fmt.Sprintf("%s (%d)", s.name, len(s.items))))
		for _, it := range s.items[:min(2, len(s.items))] {
			lines = append(lines, muted.Render("• "+clip(it, cardInner-2)))
		}
	}

	body := strings.Join(lines, "\n")
	footer := center(muted.Italic(true).Render("click to flip back"))
	return cardStyle(edge).Render(padTo(body, cardHeight-3) + "\n" + footer)
}

// relationChart draws one bar per relation list. Returns "" when the
// character has no relations at all.
func relationChart(c model.CharacterRecord) string {
	rels := c.Relations()
	total := 0
	for _, r := range rels {
		total += len(r.Items)
	}
	if total == 0 {
		return center(lipgloss.NewStyle().Foreground(ColorGray).Render("no appearances recorded"))
	}

	bc := barchart.New(len(rels)*4, 6,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(3),
	)
	barStyle := lipgloss.NewStyle().Foreground(ColorCardBack).Background(ColorCardBack)
	for i, r := range rels {
		bc.Push(barchart.BarData{
			Label: relationLabels[i],
			Values: []barchart.BarValue{
				{Name: r.Name, Value: float64(len(r.Items)), Style: barStyle},
			},
		})
	}
	bc.Draw()
	return center(bc.View())
}

// renderCardLoading is the placeholder card shown while a draw is in flight.
func renderCardLoading(frame string) string {
	text := lipgloss.NewStyle().Bold(true).Foreground(ColorWhite).Render(frame + " Loading Cards...")
	return cardStyle(ColorCardBack).Render(lipgloss.Place(cardInner, cardHeight-2, lipgloss.Center, lipgloss.Center, text))
}

// padTo pads or truncates s to exactly n lines.
func padTo(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
