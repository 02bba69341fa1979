package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/cardeck/internal/deck"
	"github.com/tinytelemetry/cardeck/internal/model"
)

// DeckPageConfig tunes the deck page.
type DeckPageConfig struct {
	DrawSize int
	// Gesture units per terminal cell. Cells are roughly twice as tall as
	// they are wide, so ScaleY is usually about twice ScaleX.
	ScaleX, ScaleY float64
	Gesture        deck.GestureConfig
	// A release within this many units of the press is a click.
	TapTolerance float64
}

func (c DeckPageConfig) withDefaults() DeckPageConfig {
	if c.DrawSize < 1 {
		c.DrawSize = model.DefaultDrawSize
	}
	if c.ScaleX <= 0 {
		c.ScaleX = 5
	}
	if c.ScaleY <= 0 {
		c.ScaleY = 10
	}
	if c.Gesture.Threshold <= 0 {
		c.Gesture.Threshold = deck.DefaultGestureConfig().Threshold
	}
	if c.TapTolerance <= 0 {
		c.TapTolerance = c.ScaleX
	}
	return c
}

// deckUpdatedMsg is delivered after every controller state change.
type deckUpdatedMsg struct{}

// drawFinishedMsg reports the result of a draw started by the page.
type drawFinishedMsg struct{ err error }

// waitForDeckUpdate blocks on the controller's update channel. It returns
// nil once the channel closes, which ends the subscription.
func waitForDeckUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return deckUpdatedMsg{}
	}
}

type rect struct{ x, y, w, h int }

func (r rect) contains(x, y int) bool {
	return x >= r.x && x < r.x+r.w && y >= r.y && y < r.y+r.h
}

type button struct {
	label  string
	action string
	rect   rect
}

// deckLayout holds screen positions shared by View and mouse hit testing.
type deckLayout struct {
	card    rect
	shadowY int
	buttons []button
	buttonY int
	cta     rect
}

const headerLines = 3

// DeckPage is the interactive card stack.
type DeckPage struct {
	ctx     context.Context
	ctrl    *deck.Controller
	gesture *deck.Gesture
	updates <-chan struct{}
	cfg     DeckPageConfig

	keys     KeyMap
	help     help.Model
	spinner  spinner.Model
	spinning bool

	state  deck.State
	status string
	width  int
	height int
}

// NewDeckPage creates the deck page. ctx bounds the draws it starts.
func NewDeckPage(ctx context.Context, ctrl *deck.Controller, cfg DeckPageConfig) *DeckPage {
	cfg = cfg.withDefaults()
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(ColorAccent)
	return &DeckPage{
		ctx:     ctx,
		ctrl:    ctrl,
		gesture: deck.NewGesture(ctrl, cfg.Gesture),
		updates: ctrl.Updates(),
		cfg:     cfg,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		spinner: sp,
		state:   ctrl.Snapshot(),
		width:   80,
		height:  30,
	}
}

func (p *DeckPage) ID() string { return PageDeck }

// Init subscribes to the controller and deals the first hand.
func (p *DeckPage) Init() tea.Cmd {
	return tea.Batch(waitForDeckUpdate(p.updates), p.draw())
}

func (p *DeckPage) Activate() tea.Cmd {
	p.state = p.ctrl.Snapshot()
	return nil
}

func (p *DeckPage) draw() tea.Cmd {
	ctrl, ctx, n := p.ctrl, p.ctx, p.cfg.DrawSize
	return func() tea.Msg {
		return drawFinishedMsg{err: ctrl.Initialize(ctx, n)}
	}
}

func (p *DeckPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width, p.height = msg.Width, msg.Height
		p.help.Width = msg.Width
		return nil, nil

	case deckUpdatedMsg:
		p.state = p.ctrl.Snapshot()
		cmds := []tea.Cmd{waitForDeckUpdate(p.updates)}
		if p.state.Loading() && !p.spinning {
			p.spinning = true
			cmds = append(cmds, p.spinner.Tick)
		}
		return tea.Batch(cmds...), nil

	case drawFinishedMsg:
		p.state = p.ctrl.Snapshot()
		switch {
		case errors.Is(msg.err, deck.ErrDrawInFlight):
			p.status = "a draw is already in progress"
		case msg.err == nil:
			p.status = ""
		}
		return nil, nil

	case spinner.TickMsg:
		if !p.state.Loading() {
			p.spinning = false
			return nil, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return cmd, nil

	case tea.KeyMsg:
		return p.handleKey(msg)

	case tea.MouseMsg:
		return p.handleMouse(msg), nil
	}
	return nil, nil
}

func (p *DeckPage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	switch {
	case key.Matches(msg, p.keys.Quit):
		return tea.Quit, nil
	case key.Matches(msg, p.keys.Stats):
		return nil, navTo(PageStats)
	case key.Matches(msg, p.keys.Help):
		p.help.ShowAll = !p.help.ShowAll
	case key.Matches(msg, p.keys.Pass):
		p.swipe(deck.Left)
	case key.Matches(msg, p.keys.Like):
		p.swipe(deck.Right)
	case key.Matches(msg, p.keys.Flip):
		p.flipTop()
	case key.Matches(msg, p.keys.Draw):
		return p.draw(), nil
	}
	return nil, nil
}

func (p *DeckPage) swipe(dir deck.Direction) {
	top, ok := p.ctrl.Top()
	if !ok {
		return
	}
	if p.ctrl.RemoveTop(dir) {
		p.status = verdictStatus(top.Character.Name, dir)
	}
	p.state = p.ctrl.Snapshot()
}

func (p *DeckPage) flipTop() {
	if top, ok := p.ctrl.Top(); ok {
		p.ctrl.Flip(top.ID)
		p.state = p.ctrl.Snapshot()
	}
}

func verdictStatus(name string, dir deck.Direction) string {
	if dir == deck.Left {
		return "✗ passed on " + name
	}
	return "♥ liked " + name
}

// toUnits converts a terminal cell to gesture units.
func (p *DeckPage) toUnits(x, y int) deck.Point {
	return deck.Point{X: float64(x) * p.cfg.ScaleX, Y: float64(y) * p.cfg.ScaleY}
}

func (p *DeckPage) handleMouse(msg tea.MouseMsg) tea.Cmd {
	pt := p.toUnits(msg.X, msg.Y)
	lay := p.layout()

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return nil
		}
		if p.showCTA() && lay.cta.contains(msg.X, msg.Y) {
			return p.draw()
		}
		if p.showButtons() {
			for _, b := range lay.buttons {
				if b.rect.contains(msg.X, msg.Y) {
					p.runButton(b.action)
					return nil
				}
			}
		}
		if lay.card.contains(msg.X, msg.Y) {
			p.gesture.Press(pt)
		}

	case tea.MouseActionMotion:
		if p.gesture.Dragging() {
			p.gesture.Move(pt)
		}

	case tea.MouseActionRelease:
		if !p.gesture.Dragging() {
			return nil
		}
		top, hadTop := p.ctrl.Top()
		r := p.gesture.Release()
		switch {
		case r.Swiped:
			p.status = verdictStatus(top.Character.Name, r.Direction)
		case r.IsTap(p.cfg.TapTolerance) && hadTop:
			p.ctrl.Flip(top.ID)
		}
		p.state = p.ctrl.Snapshot()
	}
	return nil
}

func (p *DeckPage) runButton(action string) {
	switch action {
	case "pass":
		p.swipe(deck.Left)
	case "flip":
		p.flipTop()
	case "like":
		p.swipe(deck.Right)
	}
}

func (p *DeckPage) showCTA() bool {
	return len(p.state.Cards) == 0 && !p.state.Loading()
}

func (p *DeckPage) showButtons() bool {
	_, ok := p.state.Top()
	return ok && !p.state.Loading()
}

var buttonDefs = []struct{ label, action string }{
	{"[ ✗ Pass ]", "pass"},
	{"[ ↻ Flip ]", "flip"},
	{"[ ♥ Like ]", "like"},
}

func (p *DeckPage) layout() deckLayout {
	var lay deckLayout
	lay.card = rect{x: max(0, (p.width-cardWidth)/2), y: headerLines, w: cardWidth, h: cardHeight}
	lay.shadowY = lay.card.y + cardHeight
	lay.buttonY = lay.shadowY + 3

	const gap = 3
	total := -gap
	for _, b := range buttonDefs {
		total += lipgloss.Width(b.label) + gap
	}
	x := max(0, (p.width-total)/2)
	for _, b := range buttonDefs {
		w := lipgloss.Width(b.label)
		lay.buttons = append(lay.buttons, button{label: b.label, action: b.action, rect: rect{x: x, y: lay.buttonY, w: w, h: 1}})
		x += w + gap
	}

	ctaW := lipgloss.Width(ctaLabel) + 4
	lay.cta = rect{x: max(0, (p.width-ctaW)/2), y: lay.card.y + cardHeight/2 - 1, w: ctaW, h: 3}
	return lay
}

const ctaLabel = "⇄ Draw Cards"

func indent(s string, n int) string {
	if n <= 0 {
		return s
	}
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = pad + lines[i]
	}
	return strings.Join(lines, "\n")
}

func (p *DeckPage) View(width, height int) string {
	if width > 0 {
		p.width, p.height = width, height
	}
	lay := p.layout()
	st := p.state

	title := lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Render("✨ Disney Character Cards")
	sub := lipgloss.NewStyle().Foreground(ColorGray).Render("swipe right to like, left to pass")
	if st.Loading() {
		sub = p.spinner.View() + " drawing cards..."
	} else if n := st.Remaining(); n > 0 {
		sub = lipgloss.NewStyle().Foreground(ColorWhite).Render(fmt.Sprintf("%d cards remaining", n))
	}
	var b strings.Builder
	b.WriteString(lipgloss.PlaceHorizontal(p.width, lipgloss.Center, title) + "\n")
	b.WriteString(lipgloss.PlaceHorizontal(p.width, lipgloss.Center, sub) + "\n\n")

	b.WriteString(p.renderStack(lay) + "\n")
	b.WriteString(p.renderShadows(lay) + "\n\n")

	if p.showButtons() {
		b.WriteString(p.renderButtons(lay))
	}
	b.WriteString("\n\n")

	switch {
	case st.Phase == deck.PhaseError:
		msg := lipgloss.NewStyle().Foreground(ColorPass).Bold(true).Render(st.Message + " (press d to retry)")
		b.WriteString(lipgloss.PlaceHorizontal(p.width, lipgloss.Center, msg))
	case p.status != "":
		b.WriteString(lipgloss.PlaceHorizontal(p.width, lipgloss.Center,
			lipgloss.NewStyle().Foreground(ColorGray).Render(p.status)))
	}
	b.WriteString("\n\n")
	b.WriteString(indent(p.help.View(p.keys), 1))
	return b.String()
}

func (p *DeckPage) renderStack(lay deckLayout) string {
	st := p.state
	if p.showCTA() {
		btn := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Bold(true).
			Padding(0, 1).
			Render(ctaLabel)
		return lipgloss.Place(p.width, cardHeight, lipgloss.Center, lipgloss.Center, btn)
	}

	top, ok := st.Top()
	if !ok {
		return indent(renderCardLoading(p.spinner.View()), lay.card.x)
	}

	edge := ColorCardEdge
	dx := 0
	if p.gesture.Dragging() {
		d := p.gesture.Delta()
		dx = int(math.Round(d.X / p.cfg.ScaleX))
		dx = max(-lay.card.x, min(dx, p.width-cardWidth-lay.card.x))
		if math.Abs(d.X) > p.cfg.Gesture.Threshold {
			edge = ColorLike
			if d.X < 0 {
				edge = ColorPass
			}
		}
	}

	var face string
	if top.Revealed {
		face = renderCardBack(top.Character, edge)
	} else {
		face = renderCardFront(top.Character, edge)
	}
	return indent(face, lay.card.x+dx)
}

// renderShadows draws the edges of the cards below the top one, narrowing
// with depth like the perspective scale.
func (p *DeckPage) renderShadows(lay deckLayout) string {
	below := p.state.Remaining() - 1
	var lines []string
	for depth := 1; depth <= 2; depth++ {
		if depth > below {
			lines = append(lines, "")
			continue
		}
		w := int(float64(cardWidth-2*depth*2) * deck.Scale(depth))
		line := lipgloss.NewStyle().Foreground(ColorGray).Render(strings.Repeat("▀", w))
		lines = append(lines, lipgloss.PlaceHorizontal(p.width, lipgloss.Center, line))
	}
	return strings.Join(lines, "\n")
}

func (p *DeckPage) renderButtons(lay deckLayout) string {
	colors := map[string]lipgloss.Color{"pass": ColorPass, "flip": ColorCardEdge, "like": ColorLike}
	var b strings.Builder
	cursor := 0
	for _, btn := range lay.buttons {
		b.WriteString(strings.Repeat(" ", btn.rect.x-cursor))
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(colors[btn.action]).Render(btn.label))
		cursor = btn.rect.x + btn.rect.w
	}
	return b.String()
}
