// Package deck implements the card stack: drawing characters from the
// catalog, flipping and swiping cards, and replenishing the stack when it
// runs low. Front ends (the terminal UI, the HTTP API) drive a Controller and
// a Gesture and render the State they publish.
package deck

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/cardeck/internal/model"
)

// Placement decides where top-up cards land in the sequence.
type Placement int

const (
	// TopUpOnTop appends new cards after the survivors, so they are played next.
	TopUpOnTop Placement = iota
	// TopUpUnder slides new cards beneath the survivors.
	TopUpUnder
)

// ParsePlacement accepts "top" and "under".
func ParsePlacement(s string) (Placement, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "top":
		return TopUpOnTop, nil
	case "under", "bottom":
		return TopUpUnder, nil
	default:
		return 0, fmt.Errorf("invalid top-up placement %q", s)
	}
}

// Config holds the stack tuning knobs. Zero fields take the defaults.
type Config struct {
	TopUpSize    int
	TopUpFloor   int
	SettleDelay  time.Duration
	FetchTimeout time.Duration // 0 waits for the service indefinitely
	Placement    Placement

	ExitOffset   float64 // horizontal displacement of the exit pose
	ExitRotation float64 // rotation of the exit pose, degrees
	MaxRotation  float64 // creation jitter, +/- degrees
	MaxOffset    float64 // creation jitter, +/- units per axis
}

// DefaultConfig returns the stock stack behavior.
func DefaultConfig() Config {
	return Config{
		TopUpSize:    model.DefaultTopUpSize,
		TopUpFloor:   model.DefaultTopUpFloor,
		SettleDelay:  model.DefaultSettleDelay,
		ExitOffset:   400,
		ExitRotation: 30,
		MaxRotation:  3,
		MaxOffset:    4,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TopUpSize <= 0 {
		c.TopUpSize = d.TopUpSize
	}
	if c.TopUpFloor <= 0 {
		c.TopUpFloor = d.TopUpFloor
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = d.SettleDelay
	}
	if c.ExitOffset == 0 {
		c.ExitOffset = d.ExitOffset
	}
	if c.ExitRotation == 0 {
		c.ExitRotation = d.ExitRotation
	}
	if c.MaxRotation == 0 {
		c.MaxRotation = d.MaxRotation
	}
	if c.MaxOffset == 0 {
		c.MaxOffset = d.MaxOffset
	}
	return c
}

// Option customizes a Controller.
type Option func(*Controller)

// WithRNG sets the source of pose jitter.
func WithRNG(r RNG) Option {
	return func(c *Controller) { c.rng = r }
}

// WithScheduler sets the scheduler used for delayed removals.
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) { c.sched = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithRecorder records every swipe as a verdict.
func WithRecorder(w model.VerdictWriter) Option {
	return func(c *Controller) { c.recorder = w }
}

// WithIDGenerator replaces the card id generator.
func WithIDGenerator(f func() string) Option {
	return func(c *Controller) { c.newID = f }
}

// Controller owns one card stack. It is safe for concurrent use; all state
// transitions happen under one lock and are published as a whole State.
type Controller struct {
	drawer   Drawer
	cfg      Config
	rng      RNG
	sched    Scheduler
	newID    func() string
	logger   *slog.Logger
	recorder model.VerdictWriter

	// Lifetime of the controller; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	state   State
	drawing bool // single-flight guard for Initialize and top-ups
	closed  bool
	pending map[string]Timer
	subs    []chan struct{}
}

// New creates a controller drawing from drawer. The stack starts empty and
// idle; call Initialize to deal the first cards.
func New(drawer Drawer, cfg Config, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		drawer:  drawer,
		cfg:     cfg.withDefaults(),
		rng:     DefaultRNG(),
		sched:   RealScheduler(),
		newID:   func() string { return "card-" + uuid.NewString() },
		logger:  slog.Default(),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]Timer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize replaces the stack with drawSize freshly drawn cards. It blocks
// for the duration of the fetch; other operations stay available meanwhile.
// A draw already in flight makes it fail with ErrDrawInFlight.
func (c *Controller) Initialize(ctx context.Context, drawSize int) error {
	if drawSize < 1 || drawSize > model.MaxDrawSize {
		return ErrInvalidDrawSize
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.drawing {
		c.mu.Unlock()
		return ErrDrawInFlight
	}
	c.drawing = true
	c.stopPendingLocked()
	c.state = State{Phase: PhaseLoading}
	c.notifyLocked()
	c.mu.Unlock()

	// A panicking drawer must not leave the guard set.
	settled := false
	defer func() {
		if settled {
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.drawing = false
		if !c.closed {
			c.state = State{Phase: PhaseError, Message: UserMessage}
			c.notifyLocked()
		}
	}()

	records, err := c.fetch(ctx, drawSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	settled = true
	c.drawing = false
	if c.closed {
		return ErrClosed
	}
	if err != nil {
		c.state = State{Phase: PhaseError, Message: UserMessage}
		c.notifyLocked()
		c.logger.Error("draw failed", "size", drawSize, "error", err)
		return fmt.Errorf("initialize: %w", err)
	}

	cards := c.buildCards(records)
	renumber(cards)
	c.state = State{Phase: PhaseReady, Cards: cards}
	c.notifyLocked()
	c.logger.Debug("deck dealt", "size", len(cards))
	return nil
}

// Flip toggles the revealed face of the card with the given id.
func (c *Controller) Flip(cardID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	i := c.state.indexOf(cardID)
	if i < 0 {
		return false
	}
	c.state.Cards[i].Revealed = !c.state.Cards[i].Revealed
	c.notifyLocked()
	return true
}

// RemoveTop sends the interactive card off the stack. The card takes its exit
// pose immediately and leaves the sequence after the settle delay.
func (c *Controller) RemoveTop(dir Direction) bool {
	if dir != Left && dir != Right {
		return false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	i := c.state.topIndex()
	if i < 0 {
		c.mu.Unlock()
		return false
	}

	card := &c.state.Cards[i]
	card.Exiting = true
	card.Pose.OffsetX = float64(dir) * c.cfg.ExitOffset
	card.Pose.Rotation = float64(dir) * c.cfg.ExitRotation

	id := card.ID
	verdict := model.Verdict{
		CardID:      id,
		CharacterID: card.Character.ID,
		Name:        card.Character.Name,
		Direction:   dir.String(),
		Verdict:     dir.Verdict(),
		At:          time.Now().UTC(),
	}
	c.pending[id] = c.sched.AfterFunc(c.cfg.SettleDelay, func() { c.settle(id) })
	c.notifyLocked()
	c.mu.Unlock()

	c.record(verdict)
	return true
}

// settle drops an exited card and starts a top-up when the stack runs low.
func (c *Controller) settle(cardID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	delete(c.pending, cardID)
	i := c.state.indexOf(cardID)
	if i < 0 {
		// Stack was redealt during the settle delay.
		c.mu.Unlock()
		return
	}
	c.state.Cards = append(c.state.Cards[:i], c.state.Cards[i+1:]...)
	renumber(c.state.Cards)

	startTopUp := len(c.state.Cards) <= c.cfg.TopUpFloor && !c.drawing
	if startTopUp {
		c.drawing = true
		c.state.Phase = PhaseLoading
		c.state.Message = ""
		c.wg.Add(1)
	} else if len(c.state.Cards) <= c.cfg.TopUpFloor {
		c.logger.Debug("top-up skipped, draw in flight", "remaining", len(c.state.Cards))
	}
	c.notifyLocked()
	c.mu.Unlock()

	if startTopUp {
		go c.topUp()
	}
}

func (c *Controller) topUp() {
	defer c.wg.Done()

	records, err := c.fetch(c.ctx, c.cfg.TopUpSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.drawing = false
	if c.closed {
		return
	}
	if err != nil {
		c.state.Phase = PhaseError
		c.state.Message = UserMessage
		c.notifyLocked()
		c.logger.Error("top-up failed", "size", c.cfg.TopUpSize, "error", err)
		return
	}

	fresh := c.buildCards(records)
	if c.cfg.Placement == TopUpUnder {
		c.state.Cards = append(fresh, c.state.Cards...)
	} else {
		c.state.Cards = append(c.state.Cards, fresh...)
	}
	renumber(c.state.Cards)
	c.state.Phase = PhaseReady
	c.state.Message = ""
	c.notifyLocked()
	c.logger.Debug("deck topped up", "added", len(fresh), "size", len(c.state.Cards))
}

// fetch bounds a draw by the caller context, the controller lifetime and the
// optional fetch timeout.
func (c *Controller) fetch(ctx context.Context, n int) ([]model.CharacterRecord, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	if c.cfg.FetchTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, c.cfg.FetchTimeout)
		defer cancelTimeout()
	}
	return c.drawer.FetchRandomCharacters(ctx, n)
}

func (c *Controller) buildCards(records []model.CharacterRecord) []Card {
	cards := make([]Card, len(records))
	for i, r := range records {
		cards[i] = Card{
			ID:        c.newID(),
			Character: r,
			Pose: Pose{
				Rotation: (c.rng.Float64() - 0.5) * 2 * c.cfg.MaxRotation,
				OffsetX:  (c.rng.Float64() - 0.5) * 2 * c.cfg.MaxOffset,
				OffsetY:  (c.rng.Float64() - 0.5) * 2 * c.cfg.MaxOffset,
			},
		}
	}
	return cards
}

// renumber restores Order = len - index, front of the sequence highest.
func renumber(cards []Card) {
	for i := range cards {
		cards[i].Order = len(cards) - i
	}
}

func (c *Controller) record(v model.Verdict) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, 5*time.Second)
	defer cancel()
	if err := c.recorder.RecordVerdict(ctx, v); err != nil {
		c.logger.Warn("record verdict", "card", v.CardID, "error", err)
	}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Top returns the interactive card.
func (c *Controller) Top() (Card, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Top()
}

// Len returns the number of cards in the sequence, exiting ones included.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.state.Cards)
}

// Updates returns a channel that receives a value after every state change.
// Notifications coalesce; the channel is closed by Close.
func (c *Controller) Updates() <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch
	}
	c.subs = append(c.subs, ch)
	return ch
}

func (c *Controller) notifyLocked() {
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (c *Controller) stopPendingLocked() {
	for id, t := range c.pending {
		t.Stop()
		delete(c.pending, id)
	}
}

// Close cancels in-flight fetches and pending removals and waits for
// background top-ups to finish. The controller is unusable afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopPendingLocked()
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = nil
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}
