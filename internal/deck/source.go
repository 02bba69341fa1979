package deck

import (
	"context"

	"github.com/tinytelemetry/cardeck/internal/model"
)

// Drawer supplies random character records. Source is the production
// implementation; tests substitute their own.
type Drawer interface {
	FetchRandomCharacters(ctx context.Context, n int) ([]model.CharacterRecord, error)
}

// Source adapts the character service into random draws.
type Source struct {
	svc model.CharacterService
	rng RNG
}

// NewSource wraps a long-lived character service. A nil rng uses DefaultRNG.
func NewSource(svc model.CharacterService, rng RNG) *Source {
	if rng == nil {
		rng = DefaultRNG()
	}
	return &Source{svc: svc, rng: rng}
}

// FetchRandomCharacters fetches the catalog once and picks n records uniformly
// at random with replacement, so duplicates within and across draws happen.
// n must be within [1, model.MaxDrawSize].
func (s *Source) FetchRandomCharacters(ctx context.Context, n int) ([]model.CharacterRecord, error) {
	if n < 1 || n > model.MaxDrawSize {
		return nil, ErrInvalidDrawSize
	}

	catalog, err := s.svc.GetAllCharacters(ctx)
	if err != nil {
		return nil, &FetchError{Kind: ServiceError, Err: err}
	}
	if len(catalog) == 0 {
		return nil, &FetchError{Kind: EmptyCatalog}
	}

	out := make([]model.CharacterRecord, n)
	for i := range n {
		out[i] = catalog[s.rng.Intn(len(catalog))]
	}
	return out, nil
}
