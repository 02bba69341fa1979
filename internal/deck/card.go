package deck

import (
	"fmt"
	"strings"

	"github.com/tinytelemetry/cardeck/internal/model"
)

// Direction is the side a card leaves the stack on.
type Direction int

const (
	Left  Direction = -1 // pass
	Right Direction = 1  // like
)

func (d Direction) String() string {
	if d == Left {
		return "left"
	}
	return "right"
}

// Verdict returns the player-facing meaning of the direction.
func (d Direction) Verdict() string {
	if d == Left {
		return model.VerdictPass
	}
	return model.VerdictLike
}

// ParseDirection accepts "left"/"right" and their verdict aliases "pass"/"like".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", model.VerdictPass:
		return Left, nil
	case "right", model.VerdictLike:
		return Right, nil
	default:
		return 0, fmt.Errorf("invalid direction %q", s)
	}
}

// Pose is the presentation transform of a card, in gesture units and degrees.
type Pose struct {
	Rotation float64 `json:"rotation"`
	OffsetX  float64 `json:"offsetX"`
	OffsetY  float64 `json:"offsetY"`
}

// Card is one physical card in the stack.
type Card struct {
	ID        string                `json:"id"`
	Character model.CharacterRecord `json:"character"`
	Revealed  bool                  `json:"revealed"`
	Order     int                   `json:"order"`
	Pose      Pose                  `json:"pose"`
	Exiting   bool                  `json:"exiting"`
}

// Scale returns the perspective scale of a card depth positions below the top.
func Scale(depth int) float64 {
	s := 1 - float64(depth)*0.05
	if s < 0 {
		return 0
	}
	return s
}
