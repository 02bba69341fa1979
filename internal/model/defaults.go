package model

import "time"

// Shared defaults used by the CLI, the terminal UI and the HTTP API.
const (
	DefaultBaseURL        = "https://api.disneyapi.dev"
	DefaultHTTPTimeout    = 15 * time.Second
	DefaultDrawSize       = 5
	MaxDrawSize           = 100
	DefaultTopUpSize      = 3
	DefaultTopUpFloor     = 2
	DefaultSettleDelay    = 300 * time.Millisecond
	DefaultSwipeThreshold = 100.0
	DefaultSkin           = "default"
	DefaultSessionTTL     = 30 * time.Minute
)
