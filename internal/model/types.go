package model

import "time"

// CharacterRecord is one character as returned by the character service.
// It is the canonical type for the deck, the HTTP API and display.
type CharacterRecord struct {
	ID              int      `json:"_id"`
	Name            string   `json:"name"`
	ImageURL        string   `json:"imageUrl,omitempty"`
	Films           []string `json:"films,omitempty"`
	ShortFilms      []string `json:"shortFilms,omitempty"`
	TVShows         []string `json:"tvShows,omitempty"`
	VideoGames      []string `json:"videoGames,omitempty"`
	ParkAttractions []string `json:"parkAttractions,omitempty"`
	Allies          []string `json:"allies,omitempty"`
	Enemies         []string `json:"enemies,omitempty"`
	SourceURL       string   `json:"sourceUrl,omitempty"`
}

// Relation is a named relation list of a character (films, allies, ...).
type Relation struct {
	Name  string
	Items []string
}

// Relations returns the relation lists in display order.
func (c CharacterRecord) Relations() []Relation {
	return []Relation{
		{Name: "Films", Items: c.Films},
		{Name: "Short Films", Items: c.ShortFilms},
		{Name: "TV Shows", Items: c.TVShows},
		{Name: "Video Games", Items: c.VideoGames},
		{Name: "Attractions", Items: c.ParkAttractions},
		{Name: "Allies", Items: c.Allies},
		{Name: "Enemies", Items: c.Enemies},
	}
}

// Verdict values recorded for a swipe.
const (
	VerdictPass = "pass"
	VerdictLike = "like"
)

// Verdict is the outcome of one swipe.
type Verdict struct {
	CardID      string
	CharacterID int
	Name        string
	Direction   string // "left" or "right"
	Verdict     string // VerdictPass or VerdictLike
	At          time.Time
}

// VerdictTally summarizes recorded verdicts.
type VerdictTally struct {
	Likes  int64
	Passes int64
}

// CharacterTally counts verdicts for one character.
type CharacterTally struct {
	CharacterID int    `json:"character_id"`
	Name        string `json:"name"`
	Count       int64  `json:"count"`
}
