package deck

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCatalog    = errors.New("character service returned no characters")
	ErrService         = errors.New("character service failure")
	ErrInvalidDrawSize = errors.New("draw size must be between 1 and 100")
	ErrDrawInFlight    = errors.New("a draw is already in flight")
	ErrClosed          = errors.New("deck controller closed")
)

// FetchErrorKind categorizes a failed draw.
type FetchErrorKind string

const (
	// EmptyCatalog means the service answered with zero records.
	EmptyCatalog FetchErrorKind = "EMPTY_CATALOG"

	// ServiceError means the call itself failed (transport, status, decoding).
	ServiceError FetchErrorKind = "SERVICE_ERROR"
)

// FetchError is returned by Source.FetchRandomCharacters.
type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels so callers can use errors.Is(err, ErrEmptyCatalog).
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrEmptyCatalog:
		return e.Kind == EmptyCatalog
	case ErrService:
		return e.Kind == ServiceError
	}
	return false
}

// UserMessage is the single message surfaced to players for any failed draw.
const UserMessage = "Failed to fetch characters. Please try again."
