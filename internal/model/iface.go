package model

import "context"

// CharacterService is the external character catalog.
type CharacterService interface {
	// GetAllCharacters returns the catalog as served in one call.
	GetAllCharacters(ctx context.Context) ([]CharacterRecord, error)
}

// VerdictWriter records swipe outcomes.
type VerdictWriter interface {
	RecordVerdict(ctx context.Context, v Verdict) error
}

// VerdictReader provides the read-side queries on recorded verdicts.
type VerdictReader interface {
	VerdictTally(ctx context.Context) (VerdictTally, error)
	TopLiked(ctx context.Context, limit int) ([]CharacterTally, error)
}

// VerdictStore is the unified verdict contract used by the HTTP API and the TUI.
type VerdictStore interface {
	VerdictWriter
	VerdictReader
}
