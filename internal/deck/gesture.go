package deck

import "math"

// Point is a pointer position in gesture units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Swiper is the part of the stack a gesture acts on.
type Swiper interface {
	Top() (Card, bool)
	RemoveTop(dir Direction) bool
}

// GestureConfig tunes the swipe classification.
type GestureConfig struct {
	Threshold       float64 // |dx| must exceed this to swipe
	RotationPerUnit float64 // live rotation, degrees per horizontal unit
}

// DefaultGestureConfig returns the stock thresholds.
func DefaultGestureConfig() GestureConfig {
	return GestureConfig{Threshold: 100, RotationPerUnit: 0.1}
}

// Release describes how a drag ended.
type Release struct {
	Swiped    bool
	Direction Direction
	Delta     Point // delta at the moment of release
}

// IsTap reports whether the gesture barely moved. Callers use it to treat a
// press and release as a click.
func (r Release) IsTap(tolerance float64) bool {
	return !r.Swiped && math.Abs(r.Delta.X) <= tolerance && math.Abs(r.Delta.Y) <= tolerance
}

// Gesture turns a press/move/release sequence into swipe commands.
// It has two states, idle and dragging. A Gesture belongs to one event loop
// and is not safe for concurrent use.
type Gesture struct {
	stack    Swiper
	cfg      GestureConfig
	dragging bool
	origin   Point
	delta    Point
}

// NewGesture binds a gesture interpreter to a stack. Zero config fields take
// the defaults.
func NewGesture(stack Swiper, cfg GestureConfig) *Gesture {
	d := DefaultGestureConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = d.Threshold
	}
	if cfg.RotationPerUnit == 0 {
		cfg.RotationPerUnit = d.RotationPerUnit
	}
	return &Gesture{stack: stack, cfg: cfg}
}

// Press starts a drag over the top card. It is ignored on an empty stack.
func (g *Gesture) Press(p Point) bool {
	if _, ok := g.stack.Top(); !ok {
		return false
	}
	g.dragging = true
	g.origin = p
	g.delta = Point{}
	return true
}

// Move updates the live delta while dragging.
func (g *Gesture) Move(p Point) {
	if !g.dragging {
		return
	}
	if _, ok := g.stack.Top(); !ok {
		return
	}
	g.delta = p.Sub(g.origin)
}

// Release ends the drag. A horizontal delta beyond the threshold swipes the
// top card toward the sign of the delta; anything shorter snaps back.
func (g *Gesture) Release() Release {
	if !g.dragging {
		return Release{}
	}
	r := Release{Delta: g.delta}
	g.dragging = false
	g.delta = Point{}

	if math.Abs(r.Delta.X) <= g.cfg.Threshold {
		return r
	}
	dir := Right
	if r.Delta.X < 0 {
		dir = Left
	}
	r.Direction = dir
	r.Swiped = g.stack.RemoveTop(dir)
	return r
}

// Cancel ends the drag when the pointer leaves the card. It classifies the
// gesture exactly like Release.
func (g *Gesture) Cancel() Release {
	return g.Release()
}

// Dragging reports whether a drag is in progress.
func (g *Gesture) Dragging() bool { return g.dragging }

// Delta returns the live drag delta (zero when idle).
func (g *Gesture) Delta() Point { return g.delta }

// Transform composes the card's static pose with the live drag. Only the top
// card moves with the pointer; callers pass other cards unchanged.
func (g *Gesture) Transform(c Card) Pose {
	p := c.Pose
	if !g.dragging {
		return p
	}
	p.OffsetX += g.delta.X
	p.OffsetY += g.delta.Y
	p.Rotation += g.delta.X * g.cfg.RotationPerUnit
	return p
}
