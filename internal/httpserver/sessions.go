package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tinytelemetry/cardeck/internal/deck"
)

// ErrSessionNotFound is returned for unknown or reaped session ids.
var ErrSessionNotFound = errors.New("deck session not found")

// session is one player's deck. The controller is safe for concurrent use;
// mu serializes pointer events into the gesture interpreter. lastSeen is
// kept outside mu so the reaper never waits behind a gesture.
type session struct {
	id      string
	ctrl    *deck.Controller
	created time.Time

	mu      sync.Mutex
	gesture *deck.Gesture

	lastSeen atomic.Int64 // unix nanos
}

func (s *session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *session) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// RegistryConfig tunes session handling.
type RegistryConfig struct {
	TTL     time.Duration // idle sessions older than this are reaped; 0 disables
	Gesture deck.GestureConfig
	Logger  *slog.Logger
}

// Registry owns the live deck sessions.
type Registry struct {
	newController func() *deck.Controller
	cfg           RegistryConfig
	now           func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewRegistry creates a registry whose sessions are backed by controllers
// from newController.
func NewRegistry(newController func() *deck.Controller, cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Registry{
		newController: newController,
		cfg:           cfg,
		now:           time.Now,
		sessions:      make(map[string]*session),
	}
}

func (r *Registry) create() (*session, error) {
	now := r.now()
	ctrl := r.newController()
	s := &session{
		id:      uuid.NewString(),
		ctrl:    ctrl,
		created: now,
		gesture: deck.NewGesture(ctrl, r.cfg.Gesture),
	}
	s.touch(now)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		ctrl.Close()
		return nil, deck.ErrClosed
	}
	r.sessions[s.id] = s
	return s, nil
}

func (r *Registry) get(id string) (*session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(r.now())
	return s, nil
}

func (r *Registry) remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.ctrl.Close()
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Reap closes sessions idle for longer than the TTL and returns how many
// were closed.
func (r *Registry) Reap() int {
	if r.cfg.TTL <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.cfg.TTL)

	var expired []*session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.ctrl.Close()
		r.cfg.Logger.Info("deck session reaped", "session", s.id, "age", r.now().Sub(s.created).Round(time.Second))
	}
	return len(expired)
}

// RunReaper reaps idle sessions until ctx is done.
func (r *Registry) RunReaper(ctx context.Context) {
	if r.cfg.TTL <= 0 {
		return
	}
	interval := max(r.cfg.TTL/4, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Reap()
		case <-ctx.Done():
			return
		}
	}
}

// Close closes every session. New sessions are refused afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.closed = true
	r.mu.Unlock()

	for _, s := range sessions {
		s.ctrl.Close()
	}
}
