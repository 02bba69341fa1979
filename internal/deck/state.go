package deck

// Phase tags the controller state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	default:
		return "idle"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is the whole observable controller state. It is replaced as one value,
// never patched field by field from outside the controller lock.
//
// Cards is carried by every phase: Loading keeps the survivors during a top-up
// and Error keeps them after a failed one. Message is only set in PhaseError.
type State struct {
	Phase   Phase  `json:"phase"`
	Cards   []Card `json:"cards"`
	Message string `json:"message,omitempty"`
}

// Loading reports whether a draw is outstanding.
func (s State) Loading() bool { return s.Phase == PhaseLoading }

// Top returns the interactive card: the topmost card that is not exiting.
func (s State) Top() (Card, bool) {
	for i := len(s.Cards) - 1; i >= 0; i-- {
		if !s.Cards[i].Exiting {
			return s.Cards[i], true
		}
	}
	return Card{}, false
}

// Remaining counts the cards that are still playable.
func (s State) Remaining() int {
	n := 0
	for _, c := range s.Cards {
		if !c.Exiting {
			n++
		}
	}
	return n
}

func (s State) clone() State {
	out := s
	out.Cards = append([]Card(nil), s.Cards...)
	return out
}

func (s State) indexOf(cardID string) int {
	for i := range s.Cards {
		if s.Cards[i].ID == cardID {
			return i
		}
	}
	return -1
}

func (s State) topIndex() int {
	for i := len(s.Cards) - 1; i >= 0; i-- {
		if !s.Cards[i].Exiting {
			return i
		}
	}
	return -1
}
